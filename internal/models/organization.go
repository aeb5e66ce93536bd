package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemOrgSlug is the slug of the distinguished organization whose admin
// members are platform-wide administrators. Seeded by migration.
const SystemOrgSlug = "system"

// Organization owns events and carries its own membership roles.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Organization membership roles. Only OrgRoleAdmin grants management rights
// on the organization and its events; the other roles scope reviewing and
// plain membership.
const (
	OrgRoleAdmin    = "admin"
	OrgRoleManager  = "manager"
	OrgRoleReviewer = "reviewer"
	OrgRoleMember   = "member"
)

// ValidOrgRole reports whether s is a known membership role.
func ValidOrgRole(s string) bool {
	switch s {
	case OrgRoleAdmin, OrgRoleManager, OrgRoleReviewer, OrgRoleMember:
		return true
	}
	return false
}

// OrganizationMembership links a user to an organization with a role.
type OrganizationMembership struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
