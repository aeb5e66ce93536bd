package timeline

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/middleware"
	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/pkg/response"
)

// Store is the persistence surface the handler needs.
type Store interface {
	Create(ctx context.Context, item *models.TimelineItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TimelineItem, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TimelineItem, error)
	ListPublicByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TimelineItem, error)
	Update(ctx context.Context, id uuid.UUID, p UpdateParams) error
	SwapOrder(ctx context.Context, a, b models.TimelineItem) error
	DeleteAndReindex(ctx context.Context, id, eventID uuid.UUID) error
}

// Authorizer is the permission gate for timeline mutations.
type Authorizer interface {
	CanManageEvent(ctx context.Context, userID, eventID uuid.UUID) bool
}

// Handler handles timeline HTTP endpoints.
type Handler struct {
	store  Store
	gate   Authorizer
	cache  *Cache // optional; nil disables public-list caching
	logger *zap.Logger
}

// NewHandler creates a timeline handler.
func NewHandler(store Store, gate Authorizer, cache *Cache, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, gate: gate, cache: cache, logger: logger}
}

// CreateRequest is the body for POST /timeline.
type CreateRequest struct {
	EventID     string `json:"event_id" binding:"required,uuid"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Date        string `json:"date" binding:"required"`
	Type        string `json:"type" binding:"required"`
	IsPublic    *bool  `json:"is_public"`
}

// UpdateRequest is the body for PATCH /timeline/:id. Nil fields are left untouched.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	Type        *string `json:"type"`
	SortOrder   *int    `json:"sort_order"`
	IsPublic    *bool   `json:"is_public"`
	IsCompleted *bool   `json:"is_completed"`
}

// MoveRequest is the body for POST /timeline/:id/move.
type MoveRequest struct {
	Direction string `json:"direction" binding:"required"`
}

func (h *Handler) invalidate(c *gin.Context, eventID uuid.UUID) {
	if h.cache != nil {
		h.cache.Invalidate(c.Request.Context(), eventID)
	}
}

// ListAdmin handles GET /timeline/admin?event_id=. Returns all items, private included.
func (h *Handler) ListAdmin(c *gin.Context) {
	eventID, err := uuid.Parse(c.Query("event_id"))
	if err != nil {
		response.BadRequest(c, "invalid event_id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !h.gate.CanManageEvent(c.Request.Context(), userID, eventID) {
		response.Forbidden(c, "not authorized for this event")
		return
	}
	items, err := h.store.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list timeline failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to load timeline")
		return
	}
	response.OK(c, items)
}

// ListPublic handles GET /events/:id/timeline. Public items only, cached.
func (h *Handler) ListPublic(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if h.cache != nil {
		if items, ok := h.cache.Get(c.Request.Context(), eventID); ok {
			response.OK(c, items)
			return
		}
	}
	items, err := h.store.ListPublicByEvent(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to load timeline")
		return
	}
	if h.cache != nil {
		h.cache.Set(c.Request.Context(), eventID, items)
	}
	response.OK(c, items)
}

// Create handles POST /timeline. Appends the item at the tail of the event's timeline.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		response.BadRequest(c, "invalid event_id")
		return
	}
	if !models.ValidTimelineItemType(req.Type) {
		response.BadRequest(c, "invalid type")
		return
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		response.BadRequest(c, "invalid date")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !h.gate.CanManageEvent(c.Request.Context(), userID, eventID) {
		response.Forbidden(c, "not authorized for this event")
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	item := &models.TimelineItem{
		EventID:     eventID,
		Name:        req.Name,
		Description: req.Description,
		Date:        date,
		Type:        models.TimelineItemType(req.Type),
		IsPublic:    isPublic,
	}
	if err := h.store.Create(c.Request.Context(), item); err != nil {
		h.logger.Error("create timeline item failed", zap.Error(err))
		response.Internal(c, "failed to create timeline item")
		return
	}
	h.invalidate(c, eventID)
	response.Created(c, item)
}

// Move handles POST /timeline/:id/move. Swaps sort orders with the adjacent
// item in the requested direction; boundary moves return the unchanged list.
func (h *Handler) Move(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid timeline item id")
		return
	}
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil || !ValidDirection(req.Direction) {
		response.BadRequest(c, "direction must be up or down")
		return
	}
	item, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load timeline item")
		return
	}
	if item == nil {
		response.NotFound(c, "timeline item not found")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !h.gate.CanManageEvent(c.Request.Context(), userID, item.EventID) {
		response.Forbidden(c, "not authorized for this event")
		return
	}

	items, err := h.store.ListByEvent(c.Request.Context(), item.EventID)
	if err != nil {
		response.Internal(c, "failed to load timeline")
		return
	}
	cur, adj, ok := planMove(items, id, req.Direction)
	if ok {
		if err := h.store.SwapOrder(c.Request.Context(), cur, adj); err != nil {
			h.logger.Error("swap failed", zap.Error(err), zap.String("item_id", id.String()))
			response.Internal(c, "failed to move timeline item")
			return
		}
		h.invalidate(c, item.EventID)
	}
	refreshed, err := h.store.ListByEvent(c.Request.Context(), item.EventID)
	if err != nil {
		response.Internal(c, "failed to reload timeline")
		return
	}
	response.OK(c, refreshed)
}

// Update handles PATCH /timeline/:id. Absent fields are left untouched.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid timeline item id")
		return
	}
	item, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load timeline item")
		return
	}
	if item == nil {
		response.NotFound(c, "timeline item not found")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !h.gate.CanManageEvent(c.Request.Context(), userID, item.EventID) {
		response.Forbidden(c, "not authorized for this event")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	if req.Type != nil && !models.ValidTimelineItemType(*req.Type) {
		response.BadRequest(c, "invalid type")
		return
	}
	p := UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		SortOrder:   req.SortOrder,
		IsPublic:    req.IsPublic,
		IsCompleted: req.IsCompleted,
	}
	if req.Date != nil {
		t, err := time.Parse(time.RFC3339, *req.Date)
		if err != nil {
			response.BadRequest(c, "invalid date")
			return
		}
		p.Date = &t
	}
	if err := h.store.Update(c.Request.Context(), id, p); err != nil {
		h.logger.Error("update timeline item failed", zap.Error(err), zap.String("item_id", id.String()))
		response.Internal(c, "failed to update timeline item")
		return
	}
	h.invalidate(c, item.EventID)
	updated, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil || updated == nil {
		response.Internal(c, "failed to reload timeline item")
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /timeline/:id. Removes the item and renumbers the
// remaining items to a contiguous sequence in one transaction.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid timeline item id")
		return
	}
	item, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load timeline item")
		return
	}
	if item == nil {
		response.NotFound(c, "timeline item not found")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !h.gate.CanManageEvent(c.Request.Context(), userID, item.EventID) {
		response.Forbidden(c, "not authorized for this event")
		return
	}
	if err := h.store.DeleteAndReindex(c.Request.Context(), id, item.EventID); err != nil {
		h.logger.Error("delete timeline item failed", zap.Error(err), zap.String("item_id", id.String()))
		response.Internal(c, "failed to delete timeline item")
		return
	}
	h.invalidate(c, item.EventID)
	response.NoContent(c)
}
