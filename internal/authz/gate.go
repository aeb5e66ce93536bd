// Package authz decides whether a principal may manage a resource.
// Every decision is fail-closed: lookup misses and store errors resolve
// to a deny, never to a panic or an error surfaced to the route.
package authz

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/models"
)

// MembershipStore resolves organization membership roles.
type MembershipStore interface {
	// GetMemberRole returns the user's role in the organization, or "" when not a member.
	GetMemberRole(ctx context.Context, orgID, userID uuid.UUID) (string, error)
}

// EventStore resolves an event's owning organization.
type EventStore interface {
	// GetEventOrganization returns pgx.ErrNoRows when the event does not exist.
	GetEventOrganization(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error)
}

// PaperStore resolves paper ownership for the manage-paper capability.
type PaperStore interface {
	// GetPaperEvent returns pgx.ErrNoRows when the paper does not exist.
	GetPaperEvent(ctx context.Context, paperID uuid.UUID) (uuid.UUID, error)
	IsPaperAuthor(ctx context.Context, paperID, userID uuid.UUID) (bool, error)
}

// Gate is the permission-check service consulted before every mutation.
type Gate struct {
	memberships MembershipStore
	events      EventStore
	papers      PaperStore
	systemOrgID uuid.UUID
	logger      *zap.Logger
}

// NewGate creates a Gate. systemOrgID is the id of the organization with
// slug "system"; admin membership there grants platform-wide rights.
func NewGate(memberships MembershipStore, events EventStore, papers PaperStore, systemOrgID uuid.UUID, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		memberships: memberships,
		events:      events,
		papers:      papers,
		systemOrgID: systemOrgID,
		logger:      logger,
	}
}

// IsSystemAdmin reports whether the user holds an admin membership in the system organization.
func (g *Gate) IsSystemAdmin(ctx context.Context, userID uuid.UUID) bool {
	if g.systemOrgID == uuid.Nil {
		return false
	}
	role, err := g.memberships.GetMemberRole(ctx, g.systemOrgID, userID)
	if err != nil {
		g.logger.Error("system admin check failed", zap.Error(err), zap.String("user_id", userID.String()))
		return false
	}
	return role == models.OrgRoleAdmin
}

// CanManageOrganization reports whether the user may manage the organization.
// Only the admin membership role grants management; the manager role does not.
func (g *Gate) CanManageOrganization(ctx context.Context, userID, orgID uuid.UUID) bool {
	role, err := g.memberships.GetMemberRole(ctx, orgID, userID)
	if err != nil {
		g.logger.Error("membership lookup failed", zap.Error(err),
			zap.String("org_id", orgID.String()), zap.String("user_id", userID.String()))
		return false
	}
	if role == models.OrgRoleAdmin {
		return true
	}
	return g.IsSystemAdmin(ctx, userID)
}

// CanManageEvent reports whether the user may manage the event, via admin
// membership in the owning organization or system admin rights.
func (g *Gate) CanManageEvent(ctx context.Context, userID, eventID uuid.UUID) bool {
	orgID, err := g.events.GetEventOrganization(ctx, eventID)
	if err != nil {
		// missing event denies like any other lookup miss
		return false
	}
	return g.CanManageOrganization(ctx, userID, orgID)
}

// CanManagePaper reports whether the user is an author of the paper or may
// manage the owning event's organization.
func (g *Gate) CanManagePaper(ctx context.Context, userID, paperID uuid.UUID) bool {
	isAuthor, err := g.papers.IsPaperAuthor(ctx, paperID, userID)
	if err != nil {
		g.logger.Error("author lookup failed", zap.Error(err), zap.String("paper_id", paperID.String()))
		return false
	}
	if isAuthor {
		return true
	}
	eventID, err := g.papers.GetPaperEvent(ctx, paperID)
	if err != nil {
		return false
	}
	return g.CanManageEvent(ctx, userID, eventID)
}
