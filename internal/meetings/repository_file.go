package meetings

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/crh-church/backend/internal/models"
	"github.com/crh-church/backend/pkg/jsonstore"
)

const meetingsCollection = "meetings"

// FileRepository stores meetings as a JSON collection. Invitation emails are
// embedded in the meeting record rather than held in a side table.
type FileRepository struct {
	store *jsonstore.Store
}

// NewFileRepository creates a file-backed meetings repository.
func NewFileRepository(store *jsonstore.Store) *FileRepository {
	return &FileRepository{store: store}
}

// fileMeeting is the on-disk meeting shape; unlike models.Meeting it
// persists the join token.
type fileMeeting struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Status       string     `json:"status"`
	JoinToken    string     `json:"join_token"`
	RoomName     string     `json:"room_name"`
	InviteEmails []string   `json:"invite_emails"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toFile(m *models.Meeting) fileMeeting {
	return fileMeeting{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		StartTime:    m.StartTime,
		EndTime:      m.EndTime,
		Status:       m.Status,
		JoinToken:    m.JoinToken,
		RoomName:     m.RoomName,
		InviteEmails: m.InviteEmails,
		CancelReason: m.CancelReason,
		CancelledAt:  m.CancelledAt,
		CreatedAt:    m.CreatedAt,
	}
}

func fromFile(rec fileMeeting) models.Meeting {
	return models.Meeting{
		ID:           rec.ID,
		Title:        rec.Title,
		Description:  rec.Description,
		StartTime:    rec.StartTime,
		EndTime:      rec.EndTime,
		Status:       rec.Status,
		JoinToken:    rec.JoinToken,
		RoomName:     rec.RoomName,
		InviteEmails: rec.InviteEmails,
		CancelReason: rec.CancelReason,
		CancelledAt:  rec.CancelledAt,
		CreatedAt:    rec.CreatedAt,
	}
}

// Create appends a scheduled meeting, assigning the next sequential id
// inside the collection's read-modify-write lock.
func (r *FileRepository) Create(ctx context.Context, m *models.Meeting) error {
	m.CreatedAt = time.Now().UTC()
	return jsonstore.Mutate(r.store, meetingsCollection, func(records []fileMeeting) ([]fileMeeting, error) {
		var maxID int64
		for _, rec := range records {
			if rec.ID > maxID {
				maxID = rec.ID
			}
		}
		m.ID = maxID + 1
		return append(records, toFile(m)), nil
	})
}

// SetRoomName stores the derived room name after the id is known.
func (r *FileRepository) SetRoomName(ctx context.Context, id int64, roomName string) error {
	_, err := jsonstore.UpdateWhere(r.store, meetingsCollection,
		func(m fileMeeting) bool { return m.ID == id },
		func(m *fileMeeting) { m.RoomName = roomName })
	return err
}

// GetByID returns one meeting.
func (r *FileRepository) GetByID(ctx context.Context, id int64) (*models.Meeting, error) {
	rec, ok, err := jsonstore.FindBy(r.store, meetingsCollection, func(m fileMeeting) bool {
		return m.ID == id
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMeetingNotFound
	}
	m := fromFile(*rec)
	return &m, nil
}

// List returns meetings, optionally filtered by status, soonest first.
func (r *FileRepository) List(ctx context.Context, status string) ([]models.Meeting, error) {
	all, err := jsonstore.ReadAll[fileMeeting](r.store, meetingsCollection)
	if err != nil {
		return nil, err
	}
	var list []models.Meeting
	for _, rec := range all {
		if status == "" || rec.Status == status {
			list = append(list, fromFile(rec))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartTime.Before(list[j].StartTime) })
	return list, nil
}

// Update overwrites the mutable fields of a scheduled meeting.
func (r *FileRepository) Update(ctx context.Context, m *models.Meeting) error {
	n, err := jsonstore.UpdateWhere(r.store, meetingsCollection,
		func(rec fileMeeting) bool {
			return rec.ID == m.ID && rec.Status == models.MeetingStatusScheduled
		},
		func(rec *fileMeeting) {
			rec.Title = m.Title
			rec.Description = m.Description
			rec.StartTime = m.StartTime
			rec.EndTime = m.EndTime
		})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

// Cancel marks a scheduled meeting cancelled; repeat cancels are no-ops.
func (r *FileRepository) Cancel(ctx context.Context, id int64, reason string) error {
	now := time.Now().UTC()
	_, err := jsonstore.UpdateWhere(r.store, meetingsCollection,
		func(m fileMeeting) bool {
			return m.ID == id && m.Status == models.MeetingStatusScheduled
		},
		func(m *fileMeeting) {
			m.Status = models.MeetingStatusCancelled
			m.CancelReason = reason
			m.CancelledAt = &now
		})
	return err
}

// AddInvitations merges new emails into the meeting's invite list,
// case-insensitively deduplicated.
func (r *FileRepository) AddInvitations(ctx context.Context, meetingID int64, emails []string) error {
	_, err := jsonstore.UpdateWhere(r.store, meetingsCollection,
		func(m fileMeeting) bool { return m.ID == meetingID },
		func(m *fileMeeting) {
			seen := make(map[string]bool, len(m.InviteEmails))
			for _, e := range m.InviteEmails {
				seen[strings.ToLower(e)] = true
			}
			for _, e := range emails {
				if !seen[strings.ToLower(e)] {
					m.InviteEmails = append(m.InviteEmails, e)
					seen[strings.ToLower(e)] = true
				}
			}
		})
	return err
}
