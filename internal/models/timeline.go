package models

import (
	"time"

	"github.com/google/uuid"
)

// TimelineItemType is the milestone kind of a timeline item.
type TimelineItemType string

const (
	TimelineSubmissionStart TimelineItemType = "submission_start"
	TimelineSubmissionEnd   TimelineItemType = "submission_end"
	TimelineReviewStart     TimelineItemType = "review_start"
	TimelineReviewEnd       TimelineItemType = "review_end"
	TimelineEventStart      TimelineItemType = "event_start"
	TimelineEventEnd        TimelineItemType = "event_end"
	TimelineCustom          TimelineItemType = "custom"
)

// ValidTimelineItemType reports whether s is a known milestone type.
func ValidTimelineItemType(s string) bool {
	switch TimelineItemType(s) {
	case TimelineSubmissionStart, TimelineSubmissionEnd,
		TimelineReviewStart, TimelineReviewEnd,
		TimelineEventStart, TimelineEventEnd, TimelineCustom:
		return true
	}
	return false
}

// TimelineItem is one milestone in an event's schedule.
//
// Per event, sort orders are unique and contiguous 1..N after a delete
// completes; display order is (sort_order asc, date asc).
type TimelineItem struct {
	ID          uuid.UUID        `json:"id"`
	EventID     uuid.UUID        `json:"event_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Date        time.Time        `json:"date"`
	Type        TimelineItemType `json:"type"`
	SortOrder   int              `json:"sort_order"`
	IsPublic    bool             `json:"is_public"`
	IsCompleted bool             `json:"is_completed"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
