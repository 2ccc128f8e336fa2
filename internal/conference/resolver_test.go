package conference

import (
	"testing"

	"github.com/crh-church/backend/internal/models"
)

func TestResolve(t *testing.T) {
	r := NewResolver("meet.jit.si")
	info := r.Resolve(&models.Meeting{
		Title:    "Sunday Service",
		RoomName: "CRH-Meeting-3-0a1b2c3d",
	})
	if info.URL != "https://meet.jit.si/CRH-Meeting-3-0a1b2c3d" {
		t.Fatalf("url = %q", info.URL)
	}
	if info.RoomName != "CRH-Meeting-3-0a1b2c3d" {
		t.Fatalf("room = %q", info.RoomName)
	}
	if info.Subject != "Sunday Service" {
		t.Fatalf("subject = %q", info.Subject)
	}
}

func TestResolveCustomDomain(t *testing.T) {
	r := NewResolver("meet.crh.church")
	info := r.Resolve(&models.Meeting{RoomName: "CRH-Meeting-1-deadbeef"})
	if info.URL != "https://meet.crh.church/CRH-Meeting-1-deadbeef" {
		t.Fatalf("url = %q", info.URL)
	}
}
