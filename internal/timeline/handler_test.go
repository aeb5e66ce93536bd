package timeline

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/backend/internal/middleware"
	"github.com/confera/backend/internal/models"
)

type fakeStore struct {
	items map[uuid.UUID]*models.TimelineItem
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[uuid.UUID]*models.TimelineItem)}
}

func (s *fakeStore) Create(_ context.Context, item *models.TimelineItem) error {
	max := 0
	for _, it := range s.items {
		if it.EventID == item.EventID && it.SortOrder > max {
			max = it.SortOrder
		}
	}
	item.ID = uuid.New()
	item.SortOrder = max + 1
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.TimelineItem, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}

func (s *fakeStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.TimelineItem, error) {
	var list []models.TimelineItem
	for _, it := range s.items {
		if it.EventID == eventID {
			list = append(list, *it)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SortOrder < list[j].SortOrder })
	return list, nil
}

func (s *fakeStore) ListPublicByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TimelineItem, error) {
	all, _ := s.ListByEvent(ctx, eventID)
	var list []models.TimelineItem
	for _, it := range all {
		if it.IsPublic {
			list = append(list, it)
		}
	}
	return list, nil
}

func (s *fakeStore) Update(_ context.Context, id uuid.UUID, p UpdateParams) error {
	it, ok := s.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Date != nil {
		it.Date = *p.Date
	}
	if p.Type != nil {
		it.Type = models.TimelineItemType(*p.Type)
	}
	if p.SortOrder != nil {
		it.SortOrder = *p.SortOrder
	}
	if p.IsPublic != nil {
		it.IsPublic = *p.IsPublic
	}
	if p.IsCompleted != nil {
		it.IsCompleted = *p.IsCompleted
	}
	return nil
}

func (s *fakeStore) SwapOrder(_ context.Context, a, b models.TimelineItem) error {
	s.items[a.ID].SortOrder, s.items[b.ID].SortOrder = b.SortOrder, a.SortOrder
	return nil
}

func (s *fakeStore) DeleteAndReindex(ctx context.Context, id, eventID uuid.UUID) error {
	if _, ok := s.items[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.items, id)
	rest, _ := s.ListByEvent(ctx, eventID)
	for i, it := range rest {
		s.items[it.ID].SortOrder = i + 1
	}
	return nil
}

type fakeGate struct {
	allow bool
}

func (g fakeGate) CanManageEvent(context.Context, uuid.UUID, uuid.UUID) bool { return g.allow }

func newTestRouter(h *Handler, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
	})
	r.GET("/timeline/admin", h.ListAdmin)
	r.POST("/timeline", h.Create)
	r.POST("/timeline/:id/move", h.Move)
	r.PATCH("/timeline/:id", h.Update)
	r.DELETE("/timeline/:id", h.Delete)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeItems(t *testing.T, w *httptest.ResponseRecorder) []models.TimelineItem {
	t.Helper()
	var body struct {
		Success bool                  `json:"success"`
		Data    []models.TimelineItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

func seedItems(t *testing.T, store *fakeStore, eventID uuid.UUID, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		item := &models.TimelineItem{
			EventID:  eventID,
			Name:     "item",
			Date:     time.Date(2026, 3, 1+i, 9, 0, 0, 0, time.UTC),
			Type:     models.TimelineSubmissionStart,
			IsPublic: true,
		}
		require.NoError(t, store.Create(context.Background(), item))
		ids[i] = item.ID
	}
	return ids
}

func TestCreateAppendsAtTail(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, fakeGate{allow: true}, nil, nil)
	eventID := uuid.New()
	r := newTestRouter(h, uuid.New())

	for i := 1; i <= 3; i++ {
		w := doJSON(t, r, http.MethodPost, "/timeline", gin.H{
			"event_id": eventID.String(),
			"name":     "milestone",
			"date":     "2026-03-01T09:00:00Z",
			"type":     string(models.TimelineSubmissionStart),
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var body struct {
			Data models.TimelineItem `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, i, body.Data.SortOrder)
	}
}

func TestCreateRejectsUnknownType(t *testing.T) {
	h := NewHandler(newFakeStore(), fakeGate{allow: true}, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPost, "/timeline", gin.H{
		"event_id": uuid.New().String(),
		"name":     "x",
		"date":     "2026-03-01T09:00:00Z",
		"type":     "party",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateForbiddenWithoutEventAccess(t *testing.T) {
	h := NewHandler(newFakeStore(), fakeGate{allow: false}, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPost, "/timeline", gin.H{
		"event_id": uuid.New().String(),
		"name":     "x",
		"date":     "2026-03-01T09:00:00Z",
		"type":     string(models.TimelineSubmissionStart),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMoveSwapsAdjacentItems(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, fakeGate{allow: true}, nil, nil)
	eventID := uuid.New()
	ids := seedItems(t, store, eventID, 3)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPost, "/timeline/"+ids[1].String()+"/move", gin.H{"direction": "up"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	items := decodeItems(t, w)
	require.Len(t, items, 3)
	assert.Equal(t, ids[1], items[0].ID)
	assert.Equal(t, ids[0], items[1].ID)
	assert.Equal(t, ids[2], items[2].ID)
	for i, it := range items {
		assert.Equal(t, i+1, it.SortOrder)
	}
}

func TestMoveAtBoundaryIsNoOp(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, fakeGate{allow: true}, nil, nil)
	eventID := uuid.New()
	ids := seedItems(t, store, eventID, 2)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPost, "/timeline/"+ids[0].String()+"/move", gin.H{"direction": "up"})
	require.Equal(t, http.StatusOK, w.Code)

	items := decodeItems(t, w)
	assert.Equal(t, ids[0], items[0].ID)
	assert.Equal(t, ids[1], items[1].ID)
}

func TestMoveUnknownItemReturns404(t *testing.T) {
	h := NewHandler(newFakeStore(), fakeGate{allow: true}, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPost, "/timeline/"+uuid.New().String()+"/move", gin.H{"direction": "down"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMoveRejectsBadDirection(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, fakeGate{allow: true}, nil, nil)
	ids := seedItems(t, store, uuid.New(), 2)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPost, "/timeline/"+ids[0].String()+"/move", gin.H{"direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateLeavesAbsentFieldsUntouched(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, fakeGate{allow: true}, nil, nil)
	eventID := uuid.New()
	ids := seedItems(t, store, eventID, 1)
	orig, _ := store.GetByID(context.Background(), ids[0])
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPatch, "/timeline/"+ids[0].String(), gin.H{"name": "renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated, err := store.GetByID(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, orig.Date, updated.Date)
	assert.Equal(t, orig.Type, updated.Type)
	assert.Equal(t, orig.SortOrder, updated.SortOrder)
	assert.Equal(t, orig.IsPublic, updated.IsPublic)
}

func TestDeleteRenumbersRemainingItems(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, fakeGate{allow: true}, nil, nil)
	eventID := uuid.New()
	ids := seedItems(t, store, eventID, 4)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodDelete, "/timeline/"+ids[1].String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	items, err := store.ListByEvent(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []uuid.UUID{ids[0], ids[2], ids[3]}, []uuid.UUID{items[0].ID, items[1].ID, items[2].ID})
	for i, it := range items {
		assert.Equal(t, i+1, it.SortOrder, "sequence must stay contiguous after delete")
	}
}

func TestDeleteForbiddenWithoutEventAccess(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, fakeGate{allow: false}, nil, nil)
	ids := seedItems(t, store, uuid.New(), 1)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodDelete, "/timeline/"+ids[0].String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, err := store.GetByID(context.Background(), ids[0])
	require.NoError(t, err)
}

func TestListAdminIncludesPrivateItems(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, fakeGate{allow: true}, nil, nil)
	eventID := uuid.New()
	seedItems(t, store, eventID, 2)
	hidden := &models.TimelineItem{EventID: eventID, Name: "internal", Date: time.Now(), Type: models.TimelineCustom}
	require.NoError(t, store.Create(context.Background(), hidden))
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodGet, "/timeline/admin?event_id="+eventID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeItems(t, w), 3)

	public, _ := store.ListPublicByEvent(context.Background(), eventID)
	assert.Len(t, public, 2)
}
