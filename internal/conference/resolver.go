// Package conference maps meeting records to joinable rooms on the external
// video provider (Jitsi). Rooms are plain URLs; access control happens in the
// meetings package via join tokens, not at the provider.
package conference

import (
	"fmt"

	"github.com/crh-church/backend/internal/models"
)

// JoinInfo is everything a client needs to embed or open a meeting room.
type JoinInfo struct {
	URL      string `json:"url"`
	RoomName string `json:"roomName"`
	Subject  string `json:"subject"`
}

// Resolver builds room references for a configured conferencing domain.
type Resolver struct {
	domain string
}

// NewResolver creates a resolver for the given Jitsi domain (e.g. meet.jit.si).
func NewResolver(domain string) *Resolver {
	return &Resolver{domain: domain}
}

// Resolve returns the joinable room reference for a meeting.
func (r *Resolver) Resolve(m *models.Meeting) JoinInfo {
	return JoinInfo{
		URL:      fmt.Sprintf("https://%s/%s", r.domain, m.RoomName),
		RoomName: m.RoomName,
		Subject:  m.Title,
	}
}
