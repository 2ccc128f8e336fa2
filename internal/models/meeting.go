package models

import "time"

// Meeting statuses. Cancelled is terminal.
const (
	MeetingStatusScheduled = "scheduled"
	MeetingStatusCancelled = "cancelled"
)

// Meeting represents a schedulable video session. JoinToken is an opaque
// random secret generated at creation; it is never serialized, so public
// listings cannot leak it. RoomName contains only [A-Za-z0-9-].
type Meeting struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      time.Time  `json:"endTime"`
	Status       string     `json:"status"`
	JoinToken    string     `json:"-"`
	RoomName     string     `json:"roomName"`
	InviteEmails []string   `json:"inviteEmails"`
	CancelReason string     `json:"cancelReason,omitempty"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// MeetingInvitation records the intent to notify one email address about a
// meeting. Delivery is delegated to the mail worker.
type MeetingInvitation struct {
	ID        int64     `json:"id"`
	MeetingID int64     `json:"meeting_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
