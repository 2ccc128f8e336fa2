package meetings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crh-church/backend/internal/models"
)

// ErrMeetingNotFound is returned when no meeting matches the given id.
var ErrMeetingNotFound = errors.New("meeting not found")

// Repository abstracts meeting persistence. Create assigns the id; the
// caller derives the room name from it and stores it with SetRoomName.
type Repository interface {
	Create(ctx context.Context, m *models.Meeting) error
	SetRoomName(ctx context.Context, id int64, roomName string) error
	GetByID(ctx context.Context, id int64) (*models.Meeting, error)
	List(ctx context.Context, status string) ([]models.Meeting, error)
	Update(ctx context.Context, m *models.Meeting) error
	Cancel(ctx context.Context, id int64, reason string) error
	AddInvitations(ctx context.Context, meetingID int64, emails []string) error
}

// PostgresRepository stores meetings in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a Postgres-backed meetings repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a scheduled meeting and assigns its id.
func (r *PostgresRepository) Create(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (title, description, start_time, end_time, status, join_token, room_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, m.Title, m.Description, m.StartTime, m.EndTime, m.Status, m.JoinToken, m.RoomName).
		Scan(&m.ID, &m.CreatedAt)
}

// SetRoomName stores the derived room name after the id is known.
func (r *PostgresRepository) SetRoomName(ctx context.Context, id int64, roomName string) error {
	const q = `UPDATE meetings SET room_name = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, roomName, id)
	return err
}

// GetByID returns one meeting with its invitation emails.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Meeting, error) {
	const q = `SELECT id, title, description, start_time, end_time, status, join_token, room_name,
			COALESCE(cancel_reason, ''), cancelled_at, created_at
		FROM meetings WHERE id = $1`
	var m models.Meeting
	err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.Title, &m.Description, &m.StartTime, &m.EndTime,
		&m.Status, &m.JoinToken, &m.RoomName, &m.CancelReason, &m.CancelledAt, &m.CreatedAt)
	if err != nil {
		return nil, lookupErr(err, ErrMeetingNotFound)
	}
	emails, err := r.invitationEmails(ctx, id)
	if err != nil {
		return nil, err
	}
	m.InviteEmails = emails
	return &m, nil
}

// lookupErr maps a missing row to the package's not-found sentinel and
// passes every other error (connection loss, scan failure) through.
func lookupErr(err, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return err
}

// List returns meetings, optionally filtered by status, soonest first.
func (r *PostgresRepository) List(ctx context.Context, status string) ([]models.Meeting, error) {
	q := `SELECT id, title, description, start_time, end_time, status, join_token, room_name,
			COALESCE(cancel_reason, ''), cancelled_at, created_at
		FROM meetings`
	args := []interface{}{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	q += ` ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Meeting
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.StartTime, &m.EndTime,
			&m.Status, &m.JoinToken, &m.RoomName, &m.CancelReason, &m.CancelledAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Update overwrites the mutable fields of a scheduled meeting.
func (r *PostgresRepository) Update(ctx context.Context, m *models.Meeting) error {
	const q = `UPDATE meetings SET title = $1, description = $2, start_time = $3, end_time = $4
		WHERE id = $5 AND status = 'scheduled'`
	tag, err := r.pool.Exec(ctx, q, m.Title, m.Description, m.StartTime, m.EndTime, m.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

// Cancel marks a meeting cancelled. Cancelling an already-cancelled meeting
// leaves the original reason and timestamp intact.
func (r *PostgresRepository) Cancel(ctx context.Context, id int64, reason string) error {
	const q = `UPDATE meetings SET status = 'cancelled', cancel_reason = $1, cancelled_at = NOW()
		WHERE id = $2 AND status = 'scheduled'`
	_, err := r.pool.Exec(ctx, q, reason, id)
	return err
}

// AddInvitations records invitation intents, ignoring duplicates.
func (r *PostgresRepository) AddInvitations(ctx context.Context, meetingID int64, emails []string) error {
	const q = `INSERT INTO meeting_invitations (meeting_id, email) VALUES ($1, $2)
		ON CONFLICT (meeting_id, email) DO NOTHING`
	for _, email := range emails {
		if _, err := r.pool.Exec(ctx, q, meetingID, email); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) invitationEmails(ctx context.Context, meetingID int64) ([]string, error) {
	const q = `SELECT email FROM meeting_invitations WHERE meeting_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
