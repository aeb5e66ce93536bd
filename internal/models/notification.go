package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds.
const (
	NotificationKindDecision = "decision"
)

// Notification delivery status.
const (
	NotificationStatusQueued = "queued"
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// NotificationLog records queued and sent decision emails.
type NotificationLog struct {
	ID             uuid.UUID  `json:"id"`
	EventID        uuid.UUID  `json:"event_id"`
	PaperID        *uuid.UUID `json:"paper_id,omitempty"`
	RecipientEmail string     `json:"recipient_email"`
	Kind           string     `json:"kind"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
