package authz

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/confera/backend/internal/middleware"
	"github.com/confera/backend/pkg/response"
)

// ContextEventOrgID is the context key for the owning organization id once
// event access has been enforced.
const ContextEventOrgID = "event_organization_id"

// RequireEventAccess validates that the current user may manage the event in :id.
// Call after the JWT middleware. Responds 404 when the event does not exist.
func RequireEventAccess(gate *Gate, events EventStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}
		userVal, ok := c.Get(middleware.ContextUserID)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		orgID, err := events.GetEventOrganization(c.Request.Context(), eventID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				response.NotFound(c, "event not found")
			} else {
				response.Internal(c, "failed to resolve event")
			}
			c.Abort()
			return
		}
		userID := userVal.(uuid.UUID)
		if !gate.CanManageOrganization(c.Request.Context(), userID, orgID) {
			response.Forbidden(c, "not authorized for this event")
			c.Abort()
			return
		}
		c.Set(ContextEventOrgID, orgID)
		c.Next()
	}
}

// RequireOrgAccess validates that the current user may manage the organization in :id.
func RequireOrgAccess(gate *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid organization id")
			c.Abort()
			return
		}
		userVal, ok := c.Get(middleware.ContextUserID)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !gate.CanManageOrganization(c.Request.Context(), userVal.(uuid.UUID), orgID) {
			response.Forbidden(c, "not authorized for this organization")
			c.Abort()
			return
		}
		c.Next()
	}
}
