package donations

import (
	"context"
	"sort"
	"time"

	"github.com/crh-church/backend/internal/models"
	"github.com/crh-church/backend/pkg/jsonstore"
)

const (
	donationsCollection = "donations"
	paymentsCollection  = "payments"
)

// FileRepository stores donations and payments as JSON collections. Every
// write rewrites the whole collection under the store's per-collection lock.
type FileRepository struct {
	store *jsonstore.Store
}

// NewFileRepository creates a file-backed donations repository.
func NewFileRepository(store *jsonstore.Store) *FileRepository {
	return &FileRepository{store: store}
}

// CreateDonation appends a pending donation, assigning a millisecond id.
func (r *FileRepository) CreateDonation(ctx context.Context, d *models.Donation) error {
	now := time.Now().UTC()
	d.ID = now.UnixMilli()
	d.CreatedAt = now
	d.UpdatedAt = now
	return jsonstore.Append(r.store, donationsCollection, *d)
}

// CreatePayment appends the pending companion payment record.
func (r *FileRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	now := time.Now().UTC()
	p.ID = now.UnixMilli()
	p.CreatedAt = now
	p.UpdatedAt = now
	return jsonstore.Append(r.store, paymentsCollection, *p)
}

// GetDonationByRef returns the donation with the given tx_ref.
func (r *FileRepository) GetDonationByRef(ctx context.Context, txRef string) (*models.Donation, error) {
	d, ok, err := jsonstore.FindBy(r.store, donationsCollection, func(d models.Donation) bool {
		return d.TxRef == txRef
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDonationNotFound
	}
	return d, nil
}

// MarkDonationVerified moves a pending donation to verified.
func (r *FileRepository) MarkDonationVerified(ctx context.Context, txRef, transactionID string) error {
	now := time.Now().UTC()
	_, err := jsonstore.UpdateWhere(r.store, donationsCollection,
		func(d models.Donation) bool {
			return d.TxRef == txRef && (d.Status == models.DonationStatusPending || d.Status == models.DonationStatusVerified)
		},
		func(d *models.Donation) {
			d.Status = models.DonationStatusVerified
			d.TransactionID = transactionID
			d.VerifiedAt = &now
			d.UpdatedAt = now
		})
	return err
}

// MarkDonationFailed moves a pending donation to failed.
func (r *FileRepository) MarkDonationFailed(ctx context.Context, txRef, transactionID string) error {
	now := time.Now().UTC()
	_, err := jsonstore.UpdateWhere(r.store, donationsCollection,
		func(d models.Donation) bool {
			return d.TxRef == txRef && (d.Status == models.DonationStatusPending || d.Status == models.DonationStatusFailed)
		},
		func(d *models.Donation) {
			d.Status = models.DonationStatusFailed
			d.TransactionID = transactionID
			d.UpdatedAt = now
		})
	return err
}

// MarkPaymentCompleted moves the companion payment to completed.
func (r *FileRepository) MarkPaymentCompleted(ctx context.Context, reference string) error {
	now := time.Now().UTC()
	_, err := jsonstore.UpdateWhere(r.store, paymentsCollection,
		func(p models.Payment) bool {
			return p.Reference == reference && (p.Status == models.PaymentStatusPending || p.Status == models.PaymentStatusCompleted)
		},
		func(p *models.Payment) {
			p.Status = models.PaymentStatusCompleted
			p.VerifiedAt = &now
			p.UpdatedAt = now
		})
	return err
}

// MarkPaymentFailed moves the companion payment to failed.
func (r *FileRepository) MarkPaymentFailed(ctx context.Context, reference string) error {
	now := time.Now().UTC()
	_, err := jsonstore.UpdateWhere(r.store, paymentsCollection,
		func(p models.Payment) bool {
			return p.Reference == reference && (p.Status == models.PaymentStatusPending || p.Status == models.PaymentStatusFailed)
		},
		func(p *models.Payment) {
			p.Status = models.PaymentStatusFailed
			p.VerifiedAt = &now
			p.UpdatedAt = now
		})
	return err
}

// ListDonations returns all donations, newest first.
func (r *FileRepository) ListDonations(ctx context.Context) ([]models.Donation, error) {
	list, err := jsonstore.ReadAll[models.Donation](r.store, donationsCollection)
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}
