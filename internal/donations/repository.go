package donations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crh-church/backend/internal/models"
)

// ErrDonationNotFound is returned when no donation matches a tx_ref.
var ErrDonationNotFound = errors.New("donation not found")

// Repository abstracts donation and payment persistence. Status updates are
// forward-only: a terminal record is only ever re-marked with the same state.
type Repository interface {
	CreateDonation(ctx context.Context, d *models.Donation) error
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetDonationByRef(ctx context.Context, txRef string) (*models.Donation, error)
	MarkDonationVerified(ctx context.Context, txRef, transactionID string) error
	MarkDonationFailed(ctx context.Context, txRef, transactionID string) error
	MarkPaymentCompleted(ctx context.Context, reference string) error
	MarkPaymentFailed(ctx context.Context, reference string) error
	ListDonations(ctx context.Context) ([]models.Donation, error)
}

// PostgresRepository stores donations and payments in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a Postgres-backed donations repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CreateDonation inserts a pending donation.
func (r *PostgresRepository) CreateDonation(ctx context.Context, d *models.Donation) error {
	const q = `INSERT INTO donations (tx_ref, amount, currency, donation_type, name, email, phone, message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, d.TxRef, d.Amount, d.Currency, d.DonationType, d.Name, d.Email, d.Phone, d.Message, d.Status).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

// CreatePayment inserts the pending gateway-tracking companion record.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	const q = `INSERT INTO payments (reference, gateway, amount, currency, donation_type, name, email, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.Reference, p.Gateway, p.Amount, p.Currency, p.DonationType, p.Name, p.Email, p.Status).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetDonationByRef returns the donation with the given tx_ref.
func (r *PostgresRepository) GetDonationByRef(ctx context.Context, txRef string) (*models.Donation, error) {
	const q = `SELECT id, tx_ref, COALESCE(transaction_id, ''), amount, currency, donation_type, name, email, phone, message, status, verified_at, created_at, updated_at
		FROM donations WHERE tx_ref = $1`
	var d models.Donation
	err := r.pool.QueryRow(ctx, q, txRef).Scan(&d.ID, &d.TxRef, &d.TransactionID, &d.Amount, &d.Currency, &d.DonationType,
		&d.Name, &d.Email, &d.Phone, &d.Message, &d.Status, &d.VerifiedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, lookupErr(err, ErrDonationNotFound)
	}
	return &d, nil
}

// lookupErr maps a missing row to the package's not-found sentinel and
// passes every other error (connection loss, scan failure) through.
func lookupErr(err, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return err
}

// MarkDonationVerified moves a pending donation to verified. Re-applying
// verified is a no-op overwrite; a failed donation is left untouched.
func (r *PostgresRepository) MarkDonationVerified(ctx context.Context, txRef, transactionID string) error {
	const q = `UPDATE donations SET status = 'verified', transaction_id = $1, verified_at = NOW(), updated_at = NOW()
		WHERE tx_ref = $2 AND status IN ('pending', 'verified')`
	_, err := r.pool.Exec(ctx, q, transactionID, txRef)
	return err
}

// MarkDonationFailed moves a pending donation to failed.
func (r *PostgresRepository) MarkDonationFailed(ctx context.Context, txRef, transactionID string) error {
	const q = `UPDATE donations SET status = 'failed', transaction_id = $1, updated_at = NOW()
		WHERE tx_ref = $2 AND status IN ('pending', 'failed')`
	_, err := r.pool.Exec(ctx, q, transactionID, txRef)
	return err
}

// MarkPaymentCompleted moves the companion payment to completed.
func (r *PostgresRepository) MarkPaymentCompleted(ctx context.Context, reference string) error {
	const q = `UPDATE payments SET status = 'completed', verified_at = NOW(), updated_at = NOW()
		WHERE reference = $1 AND status IN ('pending', 'completed')`
	_, err := r.pool.Exec(ctx, q, reference)
	return err
}

// MarkPaymentFailed moves the companion payment to failed.
func (r *PostgresRepository) MarkPaymentFailed(ctx context.Context, reference string) error {
	const q = `UPDATE payments SET status = 'failed', verified_at = NOW(), updated_at = NOW()
		WHERE reference = $1 AND status IN ('pending', 'failed')`
	_, err := r.pool.Exec(ctx, q, reference)
	return err
}

// ListDonations returns all donations, newest first.
func (r *PostgresRepository) ListDonations(ctx context.Context) ([]models.Donation, error) {
	const q = `SELECT id, tx_ref, COALESCE(transaction_id, ''), amount, currency, donation_type, name, email, phone, message, status, verified_at, created_at, updated_at
		FROM donations ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Donation
	for rows.Next() {
		var d models.Donation
		if err := rows.Scan(&d.ID, &d.TxRef, &d.TransactionID, &d.Amount, &d.Currency, &d.DonationType,
			&d.Name, &d.Email, &d.Phone, &d.Message, &d.Status, &d.VerifiedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}
