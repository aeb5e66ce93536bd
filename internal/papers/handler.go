package papers

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/middleware"
	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/pkg/response"
	"github.com/confera/backend/pkg/storage"
)

// Store is the persistence surface the handler needs.
type Store interface {
	Create(ctx context.Context, p *models.Paper, authors []models.PaperAuthor, actorID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Paper, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Paper, error)
	ListByEventAndAuthor(ctx context.Context, eventID, userID uuid.UUID) ([]models.Paper, error)
	EventExists(ctx context.Context, eventID uuid.UUID) (bool, error)
	Update(ctx context.Context, id uuid.UUID, p UpdateParams) error
	SetFileKey(ctx context.Context, id uuid.UUID, key string) error
	Transition(ctx context.Context, id uuid.UUID, status models.PaperStatus, actorID uuid.UUID, comment string, at time.Time) error
	BulkTransition(ctx context.Context, ids []uuid.UUID, status models.PaperStatus, actorID uuid.UUID, comment string, at time.Time) ([]uuid.UUID, error)
	ListPaperEvents(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	ReplaceAuthors(ctx context.Context, paperID uuid.UUID, authors []models.PaperAuthor) error
	History(ctx context.Context, paperID uuid.UUID) ([]models.PaperHistory, error)
	MainAuthorContacts(ctx context.Context, ids []uuid.UUID) ([]AuthorContact, error)
}

// Authorizer is the permission gate for paper operations.
type Authorizer interface {
	CanManageEvent(ctx context.Context, userID, eventID uuid.UUID) bool
	CanManagePaper(ctx context.Context, userID, paperID uuid.UUID) bool
}

// Notifier queues decision emails. Nil disables notifications.
type Notifier interface {
	QueueDecision(ctx context.Context, eventID, paperID uuid.UUID, email, title string, status models.PaperStatus) error
}

// Handler handles paper HTTP endpoints.
type Handler struct {
	store    Store
	gate     Authorizer
	notifier Notifier
	s3       *storage.S3 // optional; nil disables manuscript endpoints
	logger   *zap.Logger
}

// NewHandler creates a papers handler.
func NewHandler(store Store, gate Authorizer, notifier Notifier, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, gate: gate, notifier: notifier, s3: s3, logger: logger}
}

// CoAuthorRequest is one co-author entry in a submission.
type CoAuthorRequest struct {
	UserID      string `json:"user_id" binding:"required,uuid"`
	IsPresenter bool   `json:"is_presenter"`
}

// SubmitRequest is the body for POST /papers.
type SubmitRequest struct {
	EventID     string            `json:"event_id" binding:"required,uuid"`
	Title       string            `json:"title" binding:"required"`
	Abstract    string            `json:"abstract"`
	Keywords    string            `json:"keywords"`
	AreaID      *string           `json:"area_id"`
	PaperTypeID *string           `json:"paper_type_id"`
	CoAuthors   []CoAuthorRequest `json:"co_authors"`
}

// UpdateRequest is the body for PATCH /papers/:id. Nil fields are left untouched.
type UpdateRequest struct {
	Title       *string `json:"title"`
	Abstract    *string `json:"abstract"`
	Keywords    *string `json:"keywords"`
	AreaID      *string `json:"area_id"`
	PaperTypeID *string `json:"paper_type_id"`
}

// TransitionRequest is the body for POST /papers/:id/status.
type TransitionRequest struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment"`
}

// AuthorEntry is one entry in a PUT /papers/:id/authors body.
type AuthorEntry struct {
	UserID       string `json:"user_id" binding:"required,uuid"`
	IsMainAuthor bool   `json:"is_main_author"`
	IsPresenter  bool   `json:"is_presenter"`
}

// BulkStatusRequest is the body for PUT /papers/bulk-status.
type BulkStatusRequest struct {
	PaperIDs  []string `json:"paper_ids" binding:"required"`
	NewStatus string   `json:"new_status" binding:"required"`
	Comment   string   `json:"comment"`
	Date      string   `json:"history_date"`
}

func parseOptionalUUID(s *string) (*uuid.UUID, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// Statuses that notify the main author when reached.
func isDecisionStatus(s models.PaperStatus) bool {
	switch s {
	case models.PaperAccepted, models.PaperRejected, models.PaperRevisionRequired:
		return true
	}
	return false
}

// loadManageable loads the paper and checks the caller may manage it.
// Writes the error response and returns nil when the caller may not proceed.
func (h *Handler) loadManageable(c *gin.Context) *models.Paper {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid paper id")
		return nil
	}
	paper, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("load paper failed", zap.Error(err), zap.String("paper_id", id.String()))
		response.Internal(c, "failed to load paper")
		return nil
	}
	if paper == nil {
		response.NotFound(c, "paper not found")
		return nil
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !h.gate.CanManagePaper(c.Request.Context(), userID, paper.ID) {
		response.Forbidden(c, "not authorized for this paper")
		return nil
	}
	return paper
}

// Submit handles POST /papers. The submitter becomes the main author.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		response.BadRequest(c, "invalid event_id")
		return
	}
	areaID, ok := parseOptionalUUID(req.AreaID)
	if !ok {
		response.BadRequest(c, "invalid area_id")
		return
	}
	typeID, ok := parseOptionalUUID(req.PaperTypeID)
	if !ok {
		response.BadRequest(c, "invalid paper_type_id")
		return
	}
	exists, err := h.store.EventExists(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to verify event")
		return
	}
	if !exists {
		response.NotFound(c, "event not found")
		return
	}

	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	authors := []models.PaperAuthor{{
		UserID:       userID,
		AuthorOrder:  1,
		IsMainAuthor: true,
		IsPresenter:  true,
	}}
	for i, ca := range req.CoAuthors {
		coID, err := uuid.Parse(ca.UserID)
		if err != nil {
			response.BadRequest(c, "invalid co-author user_id")
			return
		}
		if coID == userID {
			continue
		}
		authors = append(authors, models.PaperAuthor{
			UserID:      coID,
			AuthorOrder: i + 2,
			IsPresenter: ca.IsPresenter,
		})
	}

	paper := &models.Paper{
		EventID:     eventID,
		AreaID:      areaID,
		PaperTypeID: typeID,
		Title:       req.Title,
		Abstract:    req.Abstract,
		Keywords:    req.Keywords,
		Status:      models.PaperDraft,
	}
	if err := h.store.Create(c.Request.Context(), paper, authors, userID); err != nil {
		h.logger.Error("create paper failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to create paper")
		return
	}
	paper.Authors = authors
	response.Created(c, paper)
}

// ListByEvent handles GET /events/:id/papers. Event managers see every paper;
// everyone else sees only papers they author.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var papers []models.Paper
	if h.gate.CanManageEvent(c.Request.Context(), userID, eventID) {
		papers, err = h.store.ListByEvent(c.Request.Context(), eventID)
	} else {
		papers, err = h.store.ListByEventAndAuthor(c.Request.Context(), eventID, userID)
	}
	if err != nil {
		h.logger.Error("list papers failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to load papers")
		return
	}
	response.OK(c, papers)
}

// Get handles GET /papers/:id.
func (h *Handler) Get(c *gin.Context) {
	paper := h.loadManageable(c)
	if paper == nil {
		return
	}
	response.OK(c, paper)
}

// Update handles PATCH /papers/:id. Absent fields are left untouched.
func (h *Handler) Update(c *gin.Context) {
	paper := h.loadManageable(c)
	if paper == nil {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	areaID, ok := parseOptionalUUID(req.AreaID)
	if !ok {
		response.BadRequest(c, "invalid area_id")
		return
	}
	typeID, ok := parseOptionalUUID(req.PaperTypeID)
	if !ok {
		response.BadRequest(c, "invalid paper_type_id")
		return
	}
	p := UpdateParams{
		Title:       req.Title,
		Abstract:    req.Abstract,
		Keywords:    req.Keywords,
		AreaID:      areaID,
		PaperTypeID: typeID,
	}
	if err := h.store.Update(c.Request.Context(), paper.ID, p); err != nil {
		h.logger.Error("update paper failed", zap.Error(err), zap.String("paper_id", paper.ID.String()))
		response.Internal(c, "failed to update paper")
		return
	}
	updated, err := h.store.GetByID(c.Request.Context(), paper.ID)
	if err != nil || updated == nil {
		response.Internal(c, "failed to reload paper")
		return
	}
	response.OK(c, updated)
}

// Transition handles POST /papers/:id/status. Only event managers decide.
func (h *Handler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid paper id")
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !models.ValidPaperStatus(req.Status) {
		response.BadRequest(c, "invalid status")
		return
	}
	paper, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load paper")
		return
	}
	if paper == nil {
		response.NotFound(c, "paper not found")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !h.gate.CanManageEvent(c.Request.Context(), userID, paper.EventID) {
		response.Forbidden(c, "not authorized for this event")
		return
	}

	status := models.PaperStatus(req.Status)
	comment := req.Comment
	if comment == "" {
		comment = fmt.Sprintf("Status changed to %s", status)
	}
	if err := h.store.Transition(c.Request.Context(), id, status, userID, comment, time.Now()); err != nil {
		h.logger.Error("transition failed", zap.Error(err), zap.String("paper_id", id.String()))
		response.Internal(c, "failed to change status")
		return
	}
	if isDecisionStatus(status) {
		h.notifyDecisions(c.Request.Context(), []uuid.UUID{id}, status)
	}
	updated, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil || updated == nil {
		response.Internal(c, "failed to reload paper")
		return
	}
	response.OK(c, updated)
}

// Withdraw handles DELETE /papers/:id. Authors withdraw rather than delete,
// keeping the paper and its history intact.
func (h *Handler) Withdraw(c *gin.Context) {
	paper := h.loadManageable(c)
	if paper == nil {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	err := h.store.Transition(c.Request.Context(), paper.ID, models.PaperWithdrawn, userID, "Paper withdrawn", time.Now())
	if err != nil {
		h.logger.Error("withdraw failed", zap.Error(err), zap.String("paper_id", paper.ID.String()))
		response.Internal(c, "failed to withdraw paper")
		return
	}
	response.NoContent(c)
}

// History handles GET /papers/:id/history.
func (h *Handler) History(c *gin.Context) {
	paper := h.loadManageable(c)
	if paper == nil {
		return
	}
	history, err := h.store.History(c.Request.Context(), paper.ID)
	if err != nil {
		response.Internal(c, "failed to load history")
		return
	}
	response.OK(c, history)
}

// ReplaceAuthors handles PUT /papers/:id/authors.
func (h *Handler) ReplaceAuthors(c *gin.Context) {
	paper := h.loadManageable(c)
	if paper == nil {
		return
	}
	var req []AuthorEntry
	if err := c.ShouldBindJSON(&req); err != nil || len(req) == 0 {
		response.BadRequest(c, "author list required")
		return
	}
	var authors []models.PaperAuthor
	mainCount := 0
	for i, e := range req {
		userID, err := uuid.Parse(e.UserID)
		if err != nil {
			response.BadRequest(c, "invalid author user_id")
			return
		}
		if e.IsMainAuthor {
			mainCount++
		}
		authors = append(authors, models.PaperAuthor{
			PaperID:      paper.ID,
			UserID:       userID,
			AuthorOrder:  i + 1,
			IsMainAuthor: e.IsMainAuthor,
			IsPresenter:  e.IsPresenter,
		})
	}
	if mainCount != 1 {
		response.BadRequest(c, "exactly one main author required")
		return
	}
	if err := h.store.ReplaceAuthors(c.Request.Context(), paper.ID, authors); err != nil {
		h.logger.Error("replace authors failed", zap.Error(err), zap.String("paper_id", paper.ID.String()))
		response.Internal(c, "failed to update authors")
		return
	}
	updated, err := h.store.GetByID(c.Request.Context(), paper.ID)
	if err != nil || updated == nil {
		response.Internal(c, "failed to reload paper")
		return
	}
	response.OK(c, updated)
}

// UploadURL handles POST /papers/:id/upload-url. Returns a pre-signed PUT URL
// for the manuscript PDF and records the object key.
func (h *Handler) UploadURL(c *gin.Context) {
	if h.s3 == nil {
		response.Unavailable(c, "file storage not configured")
		return
	}
	paper := h.loadManageable(c)
	if paper == nil {
		return
	}
	key := storage.ManuscriptKey(paper.EventID.String(), paper.ID.String())
	url, err := h.s3.PresignUpload(c.Request.Context(), key, "application/pdf")
	if err != nil {
		h.logger.Error("presign upload failed", zap.Error(err), zap.String("paper_id", paper.ID.String()))
		response.Internal(c, "failed to create upload URL")
		return
	}
	if err := h.store.SetFileKey(c.Request.Context(), paper.ID, key); err != nil {
		response.Internal(c, "failed to record file key")
		return
	}
	response.OK(c, gin.H{"upload_url": url, "file_key": key})
}

// Upload handles POST /papers/:id/upload: server-side multipart manuscript upload.
func (h *Handler) Upload(c *gin.Context) {
	if h.s3 == nil {
		response.Unavailable(c, "file storage not configured")
		return
	}
	paper := h.loadManageable(c)
	if paper == nil {
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	defer file.Close()
	if header.Size > storage.MaxManuscriptSize {
		response.BadRequest(c, "file exceeds maximum size")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !storage.ValidManuscriptType(contentType, header.Filename) {
		response.BadRequest(c, "only PDF manuscripts are accepted")
		return
	}
	key := storage.ManuscriptKey(paper.EventID.String(), paper.ID.String())
	if err := h.s3.Upload(c.Request.Context(), key, "application/pdf", file); err != nil {
		h.logger.Error("manuscript upload failed", zap.Error(err), zap.String("paper_id", paper.ID.String()))
		response.Internal(c, "failed to upload manuscript")
		return
	}
	if err := h.store.SetFileKey(c.Request.Context(), paper.ID, key); err != nil {
		response.Internal(c, "failed to record file key")
		return
	}
	response.OK(c, gin.H{"file_key": key})
}

// DownloadURL handles GET /papers/:id/download-url.
func (h *Handler) DownloadURL(c *gin.Context) {
	if h.s3 == nil {
		response.Unavailable(c, "file storage not configured")
		return
	}
	paper := h.loadManageable(c)
	if paper == nil {
		return
	}
	if paper.FileKey == "" {
		response.NotFound(c, "no manuscript uploaded")
		return
	}
	url, err := h.s3.PresignDownload(c.Request.Context(), paper.FileKey)
	if err != nil {
		h.logger.Error("presign download failed", zap.Error(err), zap.String("paper_id", paper.ID.String()))
		response.Internal(c, "failed to create download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url})
}

// BulkStatus handles PUT /papers/bulk-status. All papers move to the new
// status atomically; any unknown id aborts the whole batch.
func (h *Handler) BulkStatus(c *gin.Context) {
	var req BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if len(req.PaperIDs) == 0 {
		response.BadRequest(c, "paper_ids must not be empty")
		return
	}
	if !models.ValidPaperStatus(req.NewStatus) {
		response.BadRequest(c, "invalid new_status")
		return
	}
	status := models.PaperStatus(req.NewStatus)

	seen := make(map[uuid.UUID]struct{}, len(req.PaperIDs))
	ids := make([]uuid.UUID, 0, len(req.PaperIDs))
	for _, raw := range req.PaperIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid paper id: "+raw)
			return
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	at := time.Now()
	if req.Date != "" {
		t, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			response.BadRequest(c, "invalid date")
			return
		}
		at = t
	}

	events, err := h.store.ListPaperEvents(c.Request.Context(), ids)
	if err != nil {
		response.Internal(c, "failed to resolve papers")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	checked := make(map[uuid.UUID]struct{}, 1)
	for _, eventID := range events {
		if _, done := checked[eventID]; done {
			continue
		}
		if !h.gate.CanManageEvent(c.Request.Context(), userID, eventID) {
			response.Forbidden(c, "not authorized for this event")
			return
		}
		checked[eventID] = struct{}{}
	}

	comment := req.Comment
	if comment == "" {
		comment = fmt.Sprintf("Status changed to %s", status)
	}
	missing, err := h.store.BulkTransition(c.Request.Context(), ids, status, userID, comment, at)
	if err != nil {
		h.logger.Error("bulk transition failed", zap.Error(err), zap.Int("count", len(ids)))
		response.Internal(c, "failed to change statuses")
		return
	}
	if len(missing) > 0 {
		missingStrs := make([]string, len(missing))
		for i, id := range missing {
			missingStrs[i] = id.String()
		}
		response.NotFoundData(c, "some papers were not found", gin.H{"missing_ids": missingStrs})
		return
	}

	if isDecisionStatus(status) {
		h.notifyDecisions(c.Request.Context(), ids, status)
	}
	response.OK(c, gin.H{"updated_count": len(ids), "paper_ids": ids})
}

// notifyDecisions queues a decision email per paper, best effort.
func (h *Handler) notifyDecisions(ctx context.Context, ids []uuid.UUID, status models.PaperStatus) {
	if h.notifier == nil {
		return
	}
	contacts, err := h.store.MainAuthorContacts(ctx, ids)
	if err != nil {
		h.logger.Error("load author contacts failed", zap.Error(err))
		return
	}
	for _, ct := range contacts {
		if err := h.notifier.QueueDecision(ctx, ct.EventID, ct.PaperID, ct.Email, ct.Title, status); err != nil {
			h.logger.Error("queue decision email failed",
				zap.Error(err), zap.String("paper_id", ct.PaperID.String()))
		}
	}
}
