package meetings

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crh-church/backend/internal/conference"
	"github.com/crh-church/backend/internal/models"
	"github.com/crh-church/backend/pkg/queue"
)

var (
	// ErrInvalidToken means the presented join token does not match.
	ErrInvalidToken = errors.New("invalid join token")
	// ErrMeetingCancelled means the meeting can no longer be joined or edited.
	ErrMeetingCancelled = errors.New("meeting is cancelled")
)

// ValidationError reports bad meeting input (HTTP 400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var roomNameStrip = regexp.MustCompile(`[^A-Za-z0-9-]`)

// Enqueuer dispatches invitation email jobs. Nil disables dispatch; the
// invitations are still recorded.
type Enqueuer interface {
	EnqueueInvite(ctx context.Context, payload queue.InvitePayload) error
}

// Service manages the meeting lifecycle and token-gated room access.
type Service struct {
	repo           Repository
	resolver       *conference.Resolver
	enqueuer       Enqueuer
	frontendOrigin string
	logger         *zap.Logger
}

// NewService creates a meetings service. enqueuer may be nil when no job
// queue is configured.
func NewService(repo Repository, resolver *conference.Resolver, enqueuer Enqueuer, frontendOrigin string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, resolver: resolver, enqueuer: enqueuer, frontendOrigin: frontendOrigin, logger: logger}
}

// CreateParams is the admin's meeting definition.
type CreateParams struct {
	Title        string
	Description  string
	StartTime    time.Time
	EndTime      time.Time
	InviteEmails []string
}

// Create schedules a meeting: generates the join token, persists the record,
// derives the room name from the assigned id, records invitations and
// dispatches invite emails.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Meeting, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, &ValidationError{Message: "Title is required"}
	}
	if p.StartTime.IsZero() || p.EndTime.IsZero() {
		return nil, &ValidationError{Message: "Start and end time are required"}
	}
	if !p.EndTime.After(p.StartTime) {
		return nil, &ValidationError{Message: "End time must be after start time"}
	}

	m := &models.Meeting{
		Title:       title,
		Description: strings.TrimSpace(p.Description),
		StartTime:   p.StartTime.UTC(),
		EndTime:     p.EndTime.UTC(),
		Status:      models.MeetingStatusScheduled,
		JoinToken:   newJoinToken(),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("persist meeting: %w", err)
	}

	m.RoomName = deriveRoomName(m.ID, m.JoinToken)
	if err := s.repo.SetRoomName(ctx, m.ID, m.RoomName); err != nil {
		return nil, fmt.Errorf("store room name: %w", err)
	}

	emails := normalizeEmails(p.InviteEmails)
	if len(emails) > 0 {
		if err := s.repo.AddInvitations(ctx, m.ID, emails); err != nil {
			return nil, fmt.Errorf("record invitations: %w", err)
		}
		m.InviteEmails = emails
		s.dispatchInvites(ctx, m, emails)
	}

	s.logger.Info("meeting scheduled",
		zap.Int64("meeting_id", m.ID),
		zap.Time("start_time", m.StartTime),
		zap.Int("invites", len(emails)),
	)
	return m, nil
}

// UpdateParams carries a partial edit; nil fields are left unchanged.
type UpdateParams struct {
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
}

// Update edits a scheduled meeting. Cancelled meetings are immutable.
func (s *Service) Update(ctx context.Context, id int64, p UpdateParams) (*models.Meeting, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == models.MeetingStatusCancelled {
		return nil, ErrMeetingCancelled
	}

	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return nil, &ValidationError{Message: "Title cannot be empty"}
		}
		m.Title = t
	}
	if p.Description != nil {
		m.Description = strings.TrimSpace(*p.Description)
	}
	if p.StartTime != nil {
		m.StartTime = p.StartTime.UTC()
	}
	if p.EndTime != nil {
		m.EndTime = p.EndTime.UTC()
	}
	if !m.EndTime.After(m.StartTime) {
		return nil, &ValidationError{Message: "End time must be after start time"}
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Cancel moves a meeting to cancelled. Cancelling twice is a no-op that
// keeps the original reason and timestamp.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (*models.Meeting, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.Cancel(ctx, id, strings.TrimSpace(reason)); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Get returns one meeting.
func (s *Service) Get(ctx context.Context, id int64) (*models.Meeting, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns meetings, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string) ([]models.Meeting, error) {
	return s.repo.List(ctx, status)
}

// ResolveJoin validates the join token and returns the room reference.
// Token comparison is constant-time; the existence check runs first so a
// wrong id reads as 404, not 403.
func (s *Service) ResolveJoin(ctx context.Context, id int64, token string) (*conference.JoinInfo, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(m.JoinToken), []byte(token)) != 1 {
		return nil, ErrInvalidToken
	}
	if m.Status == models.MeetingStatusCancelled {
		return nil, ErrMeetingCancelled
	}
	info := s.resolver.Resolve(m)
	return &info, nil
}

// SendInvites records and dispatches invitations to additional recipients
// of an existing scheduled meeting. It returns the number of addresses
// accepted for processing, not the number delivered.
func (s *Service) SendInvites(ctx context.Context, id int64, emails []string) (int, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if m.Status == models.MeetingStatusCancelled {
		return 0, ErrMeetingCancelled
	}
	normalized := normalizeEmails(emails)
	if len(normalized) == 0 {
		return 0, &ValidationError{Message: "At least one valid email is required"}
	}
	if err := s.repo.AddInvitations(ctx, id, normalized); err != nil {
		return 0, fmt.Errorf("record invitations: %w", err)
	}
	s.dispatchInvites(ctx, m, normalized)
	return len(normalized), nil
}

// dispatchInvites enqueues one email job per recipient. Enqueue failures are
// logged, never surfaced; email delivery is best-effort.
func (s *Service) dispatchInvites(ctx context.Context, m *models.Meeting, emails []string) {
	if s.enqueuer == nil {
		s.logger.Warn("job queue not configured, invitations recorded but not emailed",
			zap.Int64("meeting_id", m.ID))
		return
	}
	link := fmt.Sprintf("%s/meetings/room/%d?token=%s", s.frontendOrigin, m.ID, url.QueryEscape(m.JoinToken))
	for _, email := range emails {
		err := s.enqueuer.EnqueueInvite(ctx, queue.InvitePayload{
			MeetingID:      m.ID,
			MeetingTitle:   m.Title,
			StartTime:      m.StartTime,
			RecipientEmail: email,
			JoinLink:       link,
		})
		if err != nil {
			s.logger.Error("enqueue invite failed",
				zap.Int64("meeting_id", m.ID), zap.String("recipient", email), zap.Error(err))
		}
	}
}

// newJoinToken returns 24 random bytes hex-encoded (48 characters).
func newJoinToken() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// deriveRoomName builds the provider room name from the meeting id and the
// token prefix, stripped to [A-Za-z0-9-].
func deriveRoomName(id int64, token string) string {
	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return roomNameStrip.ReplaceAllString(fmt.Sprintf("CRH-Meeting-%d-%s", id, prefix), "")
}

func normalizeEmails(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	var out []string
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || !strings.Contains(e, "@") || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
