package meetings

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestLookupErr(t *testing.T) {
	if got := lookupErr(pgx.ErrNoRows, ErrMeetingNotFound); !errors.Is(got, ErrMeetingNotFound) {
		t.Fatalf("no rows mapped to %v, want ErrMeetingNotFound", got)
	}

	// A connection failure must not read as a missing meeting.
	connErr := errors.New("connection refused")
	got := lookupErr(connErr, ErrMeetingNotFound)
	if errors.Is(got, ErrMeetingNotFound) {
		t.Fatal("connection failure collapsed into not-found")
	}
	if !errors.Is(got, connErr) {
		t.Fatalf("connection failure not propagated: %v", got)
	}
}
