package models

import (
	"time"

	"github.com/google/uuid"
)

// PaperStatus is the review workflow status of a paper.
type PaperStatus string

const (
	PaperDraft            PaperStatus = "draft"
	PaperPending          PaperStatus = "pending"
	PaperUnderReview      PaperStatus = "under_review"
	PaperRevisionRequired PaperStatus = "revision_required"
	PaperAccepted         PaperStatus = "accepted"
	PaperRejected         PaperStatus = "rejected"
	PaperPublished        PaperStatus = "published"
	PaperWithdrawn        PaperStatus = "withdrawn"
)

// ValidPaperStatus reports whether s is a known paper status.
func ValidPaperStatus(s string) bool {
	switch PaperStatus(s) {
	case PaperDraft, PaperPending, PaperUnderReview, PaperRevisionRequired,
		PaperAccepted, PaperRejected, PaperPublished, PaperWithdrawn:
		return true
	}
	return false
}

// Paper is a submission to an event.
//
// Status always equals the status of the newest PaperHistory row once a
// transition has gone through the documented mutation paths.
type Paper struct {
	ID          uuid.UUID   `json:"id"`
	EventID     uuid.UUID   `json:"event_id"`
	AreaID      *uuid.UUID  `json:"area_id,omitempty"`
	PaperTypeID *uuid.UUID  `json:"paper_type_id,omitempty"`
	Title       string      `json:"title"`
	Abstract    string      `json:"abstract"`
	Keywords    string      `json:"keywords,omitempty"`
	Status      PaperStatus `json:"status"`
	FileKey     string      `json:"file_key,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	Authors []PaperAuthor `json:"authors,omitempty"`
}

// PaperAuthor links a user as author of a paper, ordered by AuthorOrder.
type PaperAuthor struct {
	PaperID      uuid.UUID `json:"paper_id"`
	UserID       uuid.UUID `json:"user_id"`
	AuthorOrder  int       `json:"author_order"`
	IsMainAuthor bool      `json:"is_main_author"`
	IsPresenter  bool      `json:"is_presenter"`

	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// PaperHistory is one append-only audit entry of a status change.
type PaperHistory struct {
	ID         uuid.UUID   `json:"id"`
	PaperID    uuid.UUID   `json:"paper_id"`
	Status     PaperStatus `json:"status"`
	ActorID    uuid.UUID   `json:"actor_id"`
	Comment    string      `json:"comment,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
}
