package timeline

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/backend/internal/models"
)

func makeItems(n int) []models.TimelineItem {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	items := make([]models.TimelineItem, n)
	for i := range items {
		items[i] = models.TimelineItem{
			ID:        uuid.New(),
			SortOrder: i + 1,
			Date:      base.AddDate(0, 0, i),
		}
	}
	return items
}

func TestSortForDisplayOrdersBySortOrder(t *testing.T) {
	items := makeItems(4)
	shuffled := []models.TimelineItem{items[2], items[0], items[3], items[1]}

	ordered := sortForDisplay(shuffled)

	for i, it := range ordered {
		assert.Equal(t, i+1, it.SortOrder)
	}
}

func TestSortForDisplayBreaksTiesByDate(t *testing.T) {
	early := models.TimelineItem{ID: uuid.New(), SortOrder: 1, Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	late := models.TimelineItem{ID: uuid.New(), SortOrder: 1, Date: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}

	ordered := sortForDisplay([]models.TimelineItem{late, early})

	require.Len(t, ordered, 2)
	assert.Equal(t, early.ID, ordered[0].ID)
	assert.Equal(t, late.ID, ordered[1].ID)
}

func TestPlanMoveSwapsWithNeighbor(t *testing.T) {
	items := makeItems(3)

	cur, adj, ok := planMove(items, items[1].ID, MoveUp)
	require.True(t, ok)
	assert.Equal(t, items[1].ID, cur.ID)
	assert.Equal(t, items[0].ID, adj.ID)

	cur, adj, ok = planMove(items, items[1].ID, MoveDown)
	require.True(t, ok)
	assert.Equal(t, items[1].ID, cur.ID)
	assert.Equal(t, items[2].ID, adj.ID)
}

func TestPlanMoveBoundariesAreNoOps(t *testing.T) {
	items := makeItems(3)

	_, _, ok := planMove(items, items[0].ID, MoveUp)
	assert.False(t, ok, "first item cannot move up")

	_, _, ok = planMove(items, items[2].ID, MoveDown)
	assert.False(t, ok, "last item cannot move down")
}

func TestPlanMoveUnknownItem(t *testing.T) {
	items := makeItems(2)

	_, _, ok := planMove(items, uuid.New(), MoveUp)
	assert.False(t, ok)
}

func TestPlanMoveRoundTrip(t *testing.T) {
	items := makeItems(4)
	id := items[2].ID

	cur, adj, ok := planMove(items, id, MoveUp)
	require.True(t, ok)
	// apply the swap
	for i := range items {
		switch items[i].ID {
		case cur.ID:
			items[i].SortOrder = adj.SortOrder
		case adj.ID:
			items[i].SortOrder = cur.SortOrder
		}
	}

	cur, adj, ok = planMove(items, id, MoveDown)
	require.True(t, ok)
	for i := range items {
		switch items[i].ID {
		case cur.ID:
			items[i].SortOrder = adj.SortOrder
		case adj.ID:
			items[i].SortOrder = cur.SortOrder
		}
	}

	ordered := sortForDisplay(items)
	assert.Equal(t, id, ordered[2].ID, "up then down restores the original position")
	for i, it := range ordered {
		assert.Equal(t, i+1, it.SortOrder, "sequence stays contiguous")
	}
}
