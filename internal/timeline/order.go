package timeline

import (
	"sort"

	"github.com/google/uuid"

	"github.com/confera/backend/internal/models"
)

// Move directions accepted by POST /timeline/:id/move.
const (
	MoveUp   = "up"
	MoveDown = "down"
)

// ValidDirection reports whether s is a known move direction.
func ValidDirection(s string) bool {
	return s == MoveUp || s == MoveDown
}

// sortForDisplay returns a copy of items in display order:
// sort_order ascending, date as tiebreak for seeded/migrated rows.
func sortForDisplay(items []models.TimelineItem) []models.TimelineItem {
	out := make([]models.TimelineItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// planMove locates id in the display-ordered sequence and returns the item and
// its neighbor whose sort orders should be swapped. ok is false when the item
// is missing or already at the boundary in the requested direction (a no-op).
func planMove(items []models.TimelineItem, id uuid.UUID, direction string) (cur, adj models.TimelineItem, ok bool) {
	ordered := sortForDisplay(items)
	idx := -1
	for i := range ordered {
		if ordered[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return cur, adj, false
	}
	switch direction {
	case MoveUp:
		if idx == 0 {
			return cur, adj, false
		}
		return ordered[idx], ordered[idx-1], true
	case MoveDown:
		if idx == len(ordered)-1 {
			return cur, adj, false
		}
		return ordered[idx], ordered[idx+1], true
	}
	return cur, adj, false
}
