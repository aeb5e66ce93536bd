package events

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/confera/backend/internal/middleware"
	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/pkg/response"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Authorizer is the permission gate consulted when the resource id arrives in
// the request body rather than the path.
type Authorizer interface {
	CanManageOrganization(ctx context.Context, userID, orgID uuid.UUID) bool
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo *Repository
	gate Authorizer
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository, gate Authorizer) *Handler {
	return &Handler{repo: repo, gate: gate}
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	OrganizationID string  `json:"organization_id" binding:"required,uuid"`
	Name           string  `json:"name" binding:"required"`
	Slug           string  `json:"slug" binding:"required"`
	Description    string  `json:"description"`
	StartsAt       string  `json:"starts_at" binding:"required"`
	EndsAt         *string `json:"ends_at"`
}

// UpdateRequest is the body for PATCH /events/:id. Nil fields are left untouched.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	StartsAt    *string `json:"starts_at"`
	EndsAt      *string `json:"ends_at"`
	IsPublished *bool   `json:"is_published"`
}

// NameRequest is the body for area and paper type creation.
type NameRequest struct {
	Name string `json:"name" binding:"required"`
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Create handles POST /events. The actor must manage the owning organization.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !h.gate.CanManageOrganization(c.Request.Context(), userID, orgID) {
		response.Forbidden(c, "not authorized for this organization")
		return
	}

	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugRegex.MatchString(req.Slug) {
		response.BadRequest(c, "slug must be 2-64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	startsAt, err := parseTime(req.StartsAt)
	if err != nil {
		response.BadRequest(c, "invalid starts_at")
		return
	}
	var endsAt *time.Time
	if req.EndsAt != nil {
		t, err := parseTime(*req.EndsAt)
		if err != nil {
			response.BadRequest(c, "invalid ends_at")
			return
		}
		endsAt = &t
	}

	e := &models.Event{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(req.Name),
		Slug:           req.Slug,
		Description:    req.Description,
		StartsAt:       startsAt,
		EndsAt:         endsAt,
		CreatedBy:      userID,
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique") {
			response.Conflict(c, "an event with this slug already exists")
			return
		}
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// List handles GET /events. ?organization_id= lists an org's events,
// otherwise published events only.
func (h *Handler) List(c *gin.Context) {
	if orgStr := c.Query("organization_id"); orgStr != "" {
		orgID, err := uuid.Parse(orgStr)
		if err != nil {
			response.BadRequest(c, "invalid organization_id")
			return
		}
		list, err := h.repo.ListByOrganization(c.Request.Context(), orgID)
		if err != nil {
			response.Internal(c, "failed to list events")
			return
		}
		response.OK(c, list)
		return
	}
	list, err := h.repo.ListPublished(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, e)
}

// GetBySlug handles GET /events/slug/:slug.
func (h *Handler) GetBySlug(c *gin.Context) {
	slug := c.Param("slug")
	e, err := h.repo.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /events/:id (behind the event access gate).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	p := UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		IsPublished: req.IsPublished,
	}
	if req.StartsAt != nil {
		t, err := parseTime(*req.StartsAt)
		if err != nil {
			response.BadRequest(c, "invalid starts_at")
			return
		}
		p.StartsAt = &t
	}
	if req.EndsAt != nil {
		t, err := parseTime(*req.EndsAt)
		if err != nil {
			response.BadRequest(c, "invalid ends_at")
			return
		}
		p.EndsAt = &t
	}
	if err := h.repo.Update(c.Request.Context(), id, p); err != nil {
		response.Internal(c, "failed to update event")
		return
	}
	updated, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || updated == nil {
		response.Internal(c, "failed to reload event")
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /events/:id (behind the event access gate).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete event")
		return
	}
	response.NoContent(c)
}

// CreateArea handles POST /events/:id/areas (behind the event access gate).
func (h *Handler) CreateArea(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	a := &models.Area{EventID: eventID, Name: strings.TrimSpace(req.Name)}
	if err := h.repo.CreateArea(c.Request.Context(), a); err != nil {
		response.Internal(c, "failed to create area")
		return
	}
	response.Created(c, a)
}

// ListAreas handles GET /events/:id/areas.
func (h *Handler) ListAreas(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.repo.ListAreas(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to list areas")
		return
	}
	response.OK(c, list)
}

// DeleteArea handles DELETE /events/:id/areas/:areaId (behind the event access gate).
func (h *Handler) DeleteArea(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	areaID, err := uuid.Parse(c.Param("areaId"))
	if err != nil {
		response.BadRequest(c, "invalid area id")
		return
	}
	if err := h.repo.DeleteArea(c.Request.Context(), eventID, areaID); err != nil {
		response.Internal(c, "failed to delete area")
		return
	}
	response.NoContent(c)
}

// CreatePaperType handles POST /events/:id/paper-types (behind the event access gate).
func (h *Handler) CreatePaperType(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	t := &models.PaperType{EventID: eventID, Name: strings.TrimSpace(req.Name)}
	if err := h.repo.CreatePaperType(c.Request.Context(), t); err != nil {
		response.Internal(c, "failed to create paper type")
		return
	}
	response.Created(c, t)
}

// ListPaperTypes handles GET /events/:id/paper-types.
func (h *Handler) ListPaperTypes(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.repo.ListPaperTypes(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to list paper types")
		return
	}
	response.OK(c, list)
}

// DeletePaperType handles DELETE /events/:id/paper-types/:typeId (behind the event access gate).
func (h *Handler) DeletePaperType(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	typeID, err := uuid.Parse(c.Param("typeId"))
	if err != nil {
		response.BadRequest(c, "invalid paper type id")
		return
	}
	if err := h.repo.DeletePaperType(c.Request.Context(), eventID, typeID); err != nil {
		response.Internal(c, "failed to delete paper type")
		return
	}
	response.NoContent(c)
}
