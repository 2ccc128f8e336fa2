package meetings

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/crh-church/backend/internal/conference"
	"github.com/crh-church/backend/internal/models"
	"github.com/crh-church/backend/pkg/jsonstore"
	"github.com/crh-church/backend/pkg/queue"
)

type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []queue.InvitePayload
	fail bool
}

func (m *mockEnqueuer) EnqueueInvite(ctx context.Context, payload queue.InvitePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("queue down")
	}
	m.jobs = append(m.jobs, payload)
	return nil
}

func newTestService(t *testing.T, enq Enqueuer) *Service {
	t.Helper()
	store, err := jsonstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("jsonstore: %v", err)
	}
	repo := NewFileRepository(store)
	return NewService(repo, conference.NewResolver("meet.jit.si"), enq, "https://church.example.com", nil)
}

func validParams() CreateParams {
	start := time.Now().Add(24 * time.Hour)
	return CreateParams{
		Title:     "Midweek Service",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"missing title", func(p *CreateParams) { p.Title = "  " }},
		{"missing start", func(p *CreateParams) { p.StartTime = time.Time{} }},
		{"missing end", func(p *CreateParams) { p.EndTime = time.Time{} }},
		{"end before start", func(p *CreateParams) { p.EndTime = p.StartTime.Add(-time.Hour) }},
		{"end equals start", func(p *CreateParams) { p.EndTime = p.StartTime }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, nil)
			p := validParams()
			tt.mutate(&p)
			_, err := svc.Create(context.Background(), p)
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestCreateGeneratesTokenAndRoomName(t *testing.T) {
	svc := newTestService(t, nil)
	m, err := svc.Create(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(m.JoinToken) != 48 {
		t.Fatalf("join token length = %d, want 48", len(m.JoinToken))
	}
	if !regexp.MustCompile(`^[0-9a-f]{48}$`).MatchString(m.JoinToken) {
		t.Fatalf("join token %q is not lowercase hex", m.JoinToken)
	}
	if !regexp.MustCompile(`^[A-Za-z0-9-]+$`).MatchString(m.RoomName) {
		t.Fatalf("room name %q contains forbidden characters", m.RoomName)
	}
	want := regexp.MustCompile(`^CRH-Meeting-\d+-[0-9a-f]{8}$`)
	if !want.MatchString(m.RoomName) {
		t.Fatalf("room name %q does not match expected shape", m.RoomName)
	}
	if m.Status != models.MeetingStatusScheduled {
		t.Fatalf("status = %q", m.Status)
	}
}

func TestCreateTokensAreUnique(t *testing.T) {
	svc := newTestService(t, nil)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		m, err := svc.Create(context.Background(), validParams())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[m.JoinToken] {
			t.Fatalf("duplicate join token: %s", m.JoinToken)
		}
		seen[m.JoinToken] = true
	}
}

func TestCreateDispatchesInvites(t *testing.T) {
	enq := &mockEnqueuer{}
	svc := newTestService(t, enq)

	p := validParams()
	p.InviteEmails = []string{"A@example.com", "b@example.com", "a@example.com", "not-an-email", ""}
	m, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(m.InviteEmails) != 2 {
		t.Fatalf("invite emails = %v, want 2 after dedup", m.InviteEmails)
	}
	if len(enq.jobs) != 2 {
		t.Fatalf("enqueued %d jobs, want 2", len(enq.jobs))
	}
	for _, job := range enq.jobs {
		if job.MeetingID != m.ID {
			t.Fatalf("job meeting id = %d, want %d", job.MeetingID, m.ID)
		}
		wantLink := "https://church.example.com/meetings/room/"
		if len(job.JoinLink) == 0 || job.JoinLink[:len(wantLink)] != wantLink {
			t.Fatalf("join link = %q", job.JoinLink)
		}
	}
}

func TestCreateSucceedsWhenEnqueueFails(t *testing.T) {
	enq := &mockEnqueuer{fail: true}
	svc := newTestService(t, enq)

	p := validParams()
	p.InviteEmails = []string{"a@example.com"}
	m, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(m.InviteEmails) != 1 {
		t.Fatal("invitation not recorded despite queue failure")
	}
}

func TestResolveJoin(t *testing.T) {
	svc := newTestService(t, nil)
	m, err := svc.Create(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	t.Run("valid token", func(t *testing.T) {
		info, err := svc.ResolveJoin(context.Background(), m.ID, m.JoinToken)
		if err != nil {
			t.Fatalf("ResolveJoin: %v", err)
		}
		if info.RoomName != m.RoomName {
			t.Fatalf("room = %q, want %q", info.RoomName, m.RoomName)
		}
		if info.URL != "https://meet.jit.si/"+m.RoomName {
			t.Fatalf("url = %q", info.URL)
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		_, err := svc.ResolveJoin(context.Background(), m.ID, "deadbeef")
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("err = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.ResolveJoin(context.Background(), m.ID, "")
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("err = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("unknown meeting", func(t *testing.T) {
		_, err := svc.ResolveJoin(context.Background(), 9999, m.JoinToken)
		if !errors.Is(err, ErrMeetingNotFound) {
			t.Fatalf("err = %v, want ErrMeetingNotFound", err)
		}
	})
}

func TestResolveJoinCancelledMeeting(t *testing.T) {
	svc := newTestService(t, nil)
	m, _ := svc.Create(context.Background(), validParams())
	if _, err := svc.Cancel(context.Background(), m.ID, "weather"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	_, err := svc.ResolveJoin(context.Background(), m.ID, m.JoinToken)
	if !errors.Is(err, ErrMeetingCancelled) {
		t.Fatalf("err = %v, want ErrMeetingCancelled", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	svc := newTestService(t, nil)
	m, _ := svc.Create(context.Background(), validParams())

	first, err := svc.Cancel(context.Background(), m.ID, "first reason")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if first.Status != models.MeetingStatusCancelled || first.CancelReason != "first reason" {
		t.Fatalf("unexpected meeting after cancel: %+v", first)
	}

	second, err := svc.Cancel(context.Background(), m.ID, "second reason")
	if err != nil {
		t.Fatalf("repeat Cancel: %v", err)
	}
	if second.CancelReason != "first reason" {
		t.Fatalf("repeat cancel overwrote reason: %q", second.CancelReason)
	}
	if second.CancelledAt == nil || !second.CancelledAt.Equal(*first.CancelledAt) {
		t.Fatal("repeat cancel changed cancelled_at")
	}
}

func TestUpdateScheduledMeeting(t *testing.T) {
	svc := newTestService(t, nil)
	m, _ := svc.Create(context.Background(), validParams())

	newTitle := "Prayer Night"
	updated, err := svc.Update(context.Background(), m.ID, UpdateParams{Title: &newTitle})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Prayer Night" {
		t.Fatalf("title = %q", updated.Title)
	}
	if updated.JoinToken != m.JoinToken {
		t.Fatal("update must not rotate the join token")
	}
}

func TestUpdateRejectsInvertedTimes(t *testing.T) {
	svc := newTestService(t, nil)
	m, _ := svc.Create(context.Background(), validParams())

	bad := m.StartTime.Add(-time.Hour)
	_, err := svc.Update(context.Background(), m.ID, UpdateParams{EndTime: &bad})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestUpdateCancelledMeetingRejected(t *testing.T) {
	svc := newTestService(t, nil)
	m, _ := svc.Create(context.Background(), validParams())
	svc.Cancel(context.Background(), m.ID, "")

	newTitle := "New Title"
	_, err := svc.Update(context.Background(), m.ID, UpdateParams{Title: &newTitle})
	if !errors.Is(err, ErrMeetingCancelled) {
		t.Fatalf("err = %v, want ErrMeetingCancelled", err)
	}
}

func TestSendInvites(t *testing.T) {
	enq := &mockEnqueuer{}
	svc := newTestService(t, enq)
	m, _ := svc.Create(context.Background(), validParams())

	sent, err := svc.SendInvites(context.Background(), m.ID, []string{"x@example.com", "y@example.com"})
	if err != nil {
		t.Fatalf("SendInvites: %v", err)
	}
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	if len(enq.jobs) != 2 {
		t.Fatalf("enqueued %d jobs", len(enq.jobs))
	}

	// Re-inviting the same address records nothing new but is still
	// accepted for processing and re-dispatched.
	sent, err = svc.SendInvites(context.Background(), m.ID, []string{"x@example.com"})
	if err != nil {
		t.Fatalf("SendInvites: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	got, err := svc.Get(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.InviteEmails) != 2 {
		t.Fatalf("duplicate invite recorded: %v", got.InviteEmails)
	}
}

func TestSendInvitesCancelledMeeting(t *testing.T) {
	svc := newTestService(t, nil)
	m, _ := svc.Create(context.Background(), validParams())
	svc.Cancel(context.Background(), m.ID, "")

	_, err := svc.SendInvites(context.Background(), m.ID, []string{"x@example.com"})
	if !errors.Is(err, ErrMeetingCancelled) {
		t.Fatalf("err = %v, want ErrMeetingCancelled", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	svc := newTestService(t, nil)
	a, _ := svc.Create(context.Background(), validParams())
	svc.Create(context.Background(), validParams())
	svc.Cancel(context.Background(), a.ID, "")

	scheduled, err := svc.List(context.Background(), models.MeetingStatusScheduled)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("scheduled = %d, want 1", len(scheduled))
	}

	all, err := svc.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d, want 2", len(all))
	}
}

func TestDeriveRoomNameStripsForbiddenRunes(t *testing.T) {
	got := deriveRoomName(7, "abc123def456")
	if got != "CRH-Meeting-7-abc123de" {
		t.Fatalf("deriveRoomName = %q", got)
	}
}
