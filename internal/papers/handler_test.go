package papers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/backend/internal/middleware"
	"github.com/confera/backend/internal/models"
)

type fakeStore struct {
	papers  map[uuid.UUID]*models.Paper
	history map[uuid.UUID][]models.PaperHistory
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		papers:  make(map[uuid.UUID]*models.Paper),
		history: make(map[uuid.UUID][]models.PaperHistory),
	}
}

func (s *fakeStore) addPaper(eventID uuid.UUID, status models.PaperStatus) uuid.UUID {
	id := uuid.New()
	s.papers[id] = &models.Paper{ID: id, EventID: eventID, Title: "paper", Status: status}
	return id
}

func (s *fakeStore) Create(_ context.Context, p *models.Paper, authors []models.PaperAuthor, actorID uuid.UUID) error {
	p.ID = uuid.New()
	cp := *p
	s.papers[p.ID] = &cp
	s.history[p.ID] = append(s.history[p.ID], models.PaperHistory{
		PaperID: p.ID, Status: p.Status, ActorID: actorID,
	})
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Paper, error) {
	p, ok := s.papers[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.Paper, error) {
	var list []models.Paper
	for _, p := range s.papers {
		if p.EventID == eventID {
			list = append(list, *p)
		}
	}
	return list, nil
}

func (s *fakeStore) ListByEventAndAuthor(_ context.Context, _, _ uuid.UUID) ([]models.Paper, error) {
	return nil, nil
}

func (s *fakeStore) EventExists(_ context.Context, _ uuid.UUID) (bool, error) { return true, nil }

func (s *fakeStore) Update(_ context.Context, id uuid.UUID, p UpdateParams) error {
	paper := s.papers[id]
	if p.Title != nil {
		paper.Title = *p.Title
	}
	if p.Abstract != nil {
		paper.Abstract = *p.Abstract
	}
	if p.Keywords != nil {
		paper.Keywords = *p.Keywords
	}
	return nil
}

func (s *fakeStore) SetFileKey(_ context.Context, id uuid.UUID, key string) error {
	s.papers[id].FileKey = key
	return nil
}

func (s *fakeStore) Transition(_ context.Context, id uuid.UUID, status models.PaperStatus, actorID uuid.UUID, comment string, at time.Time) error {
	s.papers[id].Status = status
	s.history[id] = append(s.history[id], models.PaperHistory{
		PaperID: id, Status: status, ActorID: actorID, Comment: comment, RecordedAt: at,
	})
	return nil
}

func (s *fakeStore) BulkTransition(_ context.Context, ids []uuid.UUID, status models.PaperStatus, actorID uuid.UUID, comment string, at time.Time) ([]uuid.UUID, error) {
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := s.papers[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return missing, nil
	}
	for _, id := range ids {
		s.papers[id].Status = status
		s.history[id] = append(s.history[id], models.PaperHistory{
			PaperID: id, Status: status, ActorID: actorID, Comment: comment, RecordedAt: at,
		})
	}
	return nil, nil
}

func (s *fakeStore) ListPaperEvents(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID)
	for _, id := range ids {
		if p, ok := s.papers[id]; ok {
			out[id] = p.EventID
		}
	}
	return out, nil
}

func (s *fakeStore) ReplaceAuthors(_ context.Context, paperID uuid.UUID, authors []models.PaperAuthor) error {
	s.papers[paperID].Authors = authors
	return nil
}

func (s *fakeStore) History(_ context.Context, paperID uuid.UUID) ([]models.PaperHistory, error) {
	return s.history[paperID], nil
}

func (s *fakeStore) MainAuthorContacts(_ context.Context, ids []uuid.UUID) ([]AuthorContact, error) {
	var list []AuthorContact
	for _, id := range ids {
		if p, ok := s.papers[id]; ok {
			list = append(list, AuthorContact{PaperID: id, EventID: p.EventID, Title: p.Title, Email: "author@example.com"})
		}
	}
	return list, nil
}

type fakeGate struct {
	manageEvent bool
	managePaper bool
}

func (g fakeGate) CanManageEvent(context.Context, uuid.UUID, uuid.UUID) bool { return g.manageEvent }
func (g fakeGate) CanManagePaper(context.Context, uuid.UUID, uuid.UUID) bool { return g.managePaper }

type recordingNotifier struct {
	queued []uuid.UUID
}

func (n *recordingNotifier) QueueDecision(_ context.Context, _, paperID uuid.UUID, _, _ string, _ models.PaperStatus) error {
	n.queued = append(n.queued, paperID)
	return nil
}

func newTestRouter(h *Handler, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
	})
	r.POST("/papers", h.Submit)
	r.GET("/papers/:id", h.Get)
	r.PATCH("/papers/:id", h.Update)
	r.DELETE("/papers/:id", h.Withdraw)
	r.POST("/papers/:id/status", h.Transition)
	r.GET("/papers/:id/history", h.History)
	r.PUT("/papers/bulk-status", h.BulkStatus)
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

func TestBulkStatusRejectsEmptyIDs(t *testing.T) {
	h := NewHandler(newFakeStore(), fakeGate{manageEvent: true}, nil, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPut, "/papers/bulk-status", gin.H{
		"paper_ids":  []string{},
		"new_status": string(models.PaperAccepted),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkStatusRejectsUnknownStatus(t *testing.T) {
	store := newFakeStore()
	id := store.addPaper(uuid.New(), models.PaperUnderReview)
	h := NewHandler(store, fakeGate{manageEvent: true}, nil, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPut, "/papers/bulk-status", gin.H{
		"paper_ids":  []string{id.String()},
		"new_status": "approved-ish",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.PaperUnderReview, store.papers[id].Status)
}

func TestBulkStatusForbiddenWithoutEventAccess(t *testing.T) {
	store := newFakeStore()
	id := store.addPaper(uuid.New(), models.PaperUnderReview)
	h := NewHandler(store, fakeGate{manageEvent: false}, nil, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPut, "/papers/bulk-status", gin.H{
		"paper_ids":  []string{id.String()},
		"new_status": string(models.PaperAccepted),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, models.PaperUnderReview, store.papers[id].Status)
}

func TestBulkStatusMissingIDsAbortWholeBatch(t *testing.T) {
	store := newFakeStore()
	eventID := uuid.New()
	existing := store.addPaper(eventID, models.PaperUnderReview)
	ghost := uuid.New()
	h := NewHandler(store, fakeGate{manageEvent: true}, nil, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPut, "/papers/bulk-status", gin.H{
		"paper_ids":  []string{existing.String(), ghost.String()},
		"new_status": string(models.PaperAccepted),
	})
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	var body struct {
		Data struct {
			MissingIDs []string `json:"missing_ids"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{ghost.String()}, body.Data.MissingIDs)

	assert.Equal(t, models.PaperUnderReview, store.papers[existing].Status, "nothing is applied on a partial miss")
	assert.Empty(t, store.history[existing])
}

func TestBulkStatusUpdatesAllPapersWithHistory(t *testing.T) {
	store := newFakeStore()
	eventID := uuid.New()
	actorID := uuid.New()
	ids := []uuid.UUID{
		store.addPaper(eventID, models.PaperUnderReview),
		store.addPaper(eventID, models.PaperUnderReview),
		store.addPaper(eventID, models.PaperPending),
	}
	notifier := &recordingNotifier{}
	h := NewHandler(store, fakeGate{manageEvent: true}, notifier, nil, nil)
	r := newTestRouter(h, actorID)

	w := doJSON(t, r, http.MethodPut, "/papers/bulk-status", gin.H{
		"paper_ids":  []string{ids[0].String(), ids[1].String(), ids[2].String()},
		"new_status": string(models.PaperAccepted),
		"comment":    "camera-ready invited",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data struct {
			UpdatedCount int `json:"updated_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Data.UpdatedCount)

	for _, id := range ids {
		assert.Equal(t, models.PaperAccepted, store.papers[id].Status)
		require.Len(t, store.history[id], 1)
		assert.Equal(t, models.PaperAccepted, store.history[id][0].Status)
		assert.Equal(t, actorID, store.history[id][0].ActorID)
		assert.Equal(t, "camera-ready invited", store.history[id][0].Comment)
	}
	assert.Len(t, notifier.queued, 3, "each accepted paper queues a decision email")
}

func TestBulkStatusDeduplicatesIDs(t *testing.T) {
	store := newFakeStore()
	id := store.addPaper(uuid.New(), models.PaperUnderReview)
	h := NewHandler(store, fakeGate{manageEvent: true}, nil, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPut, "/papers/bulk-status", gin.H{
		"paper_ids":  []string{id.String(), id.String()},
		"new_status": string(models.PaperRejected),
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, store.history[id], 1, "duplicate ids produce a single history row")
}

func TestTransitionRecordsHistory(t *testing.T) {
	store := newFakeStore()
	actorID := uuid.New()
	id := store.addPaper(uuid.New(), models.PaperPending)
	h := NewHandler(store, fakeGate{manageEvent: true, managePaper: true}, nil, nil, nil)
	r := newTestRouter(h, actorID)

	w := doJSON(t, r, http.MethodPost, "/papers/"+id.String()+"/status", gin.H{
		"status":  string(models.PaperUnderReview),
		"comment": "assigned to reviewers",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, models.PaperUnderReview, store.papers[id].Status)
	require.Len(t, store.history[id], 1)
	assert.Equal(t, "assigned to reviewers", store.history[id][0].Comment)
}

func TestTransitionForbiddenForNonManagers(t *testing.T) {
	store := newFakeStore()
	id := store.addPaper(uuid.New(), models.PaperPending)
	h := NewHandler(store, fakeGate{manageEvent: false, managePaper: true}, nil, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPost, "/papers/"+id.String()+"/status", gin.H{
		"status": string(models.PaperAccepted),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, models.PaperPending, store.papers[id].Status)
}

func TestWithdrawKeepsPaperWithHistory(t *testing.T) {
	store := newFakeStore()
	id := store.addPaper(uuid.New(), models.PaperPending)
	h := NewHandler(store, fakeGate{managePaper: true}, nil, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodDelete, "/papers/"+id.String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	require.Contains(t, store.papers, id, "withdraw must not delete the paper")
	assert.Equal(t, models.PaperWithdrawn, store.papers[id].Status)
	require.Len(t, store.history[id], 1)
	assert.Equal(t, models.PaperWithdrawn, store.history[id][0].Status)
}

func TestUpdateLeavesAbsentFieldsUntouched(t *testing.T) {
	store := newFakeStore()
	id := store.addPaper(uuid.New(), models.PaperDraft)
	store.papers[id].Abstract = "original abstract"
	h := NewHandler(store, fakeGate{managePaper: true}, nil, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodPatch, "/papers/"+id.String(), gin.H{"title": "better title"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "better title", store.papers[id].Title)
	assert.Equal(t, "original abstract", store.papers[id].Abstract)
}

func TestSubmitCreatesDraftWithSubmitterAsMainAuthor(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	h := NewHandler(store, fakeGate{}, nil, nil, nil)
	r := newTestRouter(h, userID)

	w := doJSON(t, r, http.MethodPost, "/papers", gin.H{
		"event_id": uuid.New().String(),
		"title":    "A Study of Things",
		"abstract": "We study things.",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Data models.Paper `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.PaperDraft, body.Data.Status)
	require.Len(t, body.Data.Authors, 1)
	assert.Equal(t, userID, body.Data.Authors[0].UserID)
	assert.True(t, body.Data.Authors[0].IsMainAuthor)
}

func TestGetUnknownPaperReturns404(t *testing.T) {
	h := NewHandler(newFakeStore(), fakeGate{managePaper: true}, nil, nil, nil)
	r := newTestRouter(h, uuid.New())

	w := doJSON(t, r, http.MethodGet, "/papers/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
