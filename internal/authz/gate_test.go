package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/confera/backend/internal/models"
)

type memberKey struct{ org, user uuid.UUID }

type fakeMemberships struct {
	roles map[memberKey]string
	err   error
}

func (f *fakeMemberships) GetMemberRole(_ context.Context, orgID, userID uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.roles[memberKey{orgID, userID}], nil
}

type fakeEvents struct {
	orgs map[uuid.UUID]uuid.UUID
}

func (f *fakeEvents) GetEventOrganization(_ context.Context, eventID uuid.UUID) (uuid.UUID, error) {
	org, ok := f.orgs[eventID]
	if !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	return org, nil
}

type fakePapers struct {
	events  map[uuid.UUID]uuid.UUID
	authors map[memberKey]bool // paper, user
	err     error
}

func (f *fakePapers) GetPaperEvent(_ context.Context, paperID uuid.UUID) (uuid.UUID, error) {
	ev, ok := f.events[paperID]
	if !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	return ev, nil
}

func (f *fakePapers) IsPaperAuthor(_ context.Context, paperID, userID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.authors[memberKey{paperID, userID}], nil
}

type gateFixture struct {
	gate        *Gate
	memberships *fakeMemberships
	events      *fakeEvents
	papers      *fakePapers
	systemOrgID uuid.UUID
}

func newGateFixture() *gateFixture {
	f := &gateFixture{
		memberships: &fakeMemberships{roles: make(map[memberKey]string)},
		events:      &fakeEvents{orgs: make(map[uuid.UUID]uuid.UUID)},
		papers:      &fakePapers{events: make(map[uuid.UUID]uuid.UUID), authors: make(map[memberKey]bool)},
		systemOrgID: uuid.New(),
	}
	f.gate = NewGate(f.memberships, f.events, f.papers, f.systemOrgID, nil)
	return f
}

func TestCanManageOrganizationByRole(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{models.OrgRoleAdmin, true},
		{models.OrgRoleManager, false},
		{models.OrgRoleReviewer, false},
		{models.OrgRoleMember, false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run("role_"+tt.role, func(t *testing.T) {
			f := newGateFixture()
			orgID, userID := uuid.New(), uuid.New()
			if tt.role != "" {
				f.memberships.roles[memberKey{orgID, userID}] = tt.role
			}
			assert.Equal(t, tt.want, f.gate.CanManageOrganization(context.Background(), userID, orgID))
		})
	}
}

func TestSystemAdminManagesAnyOrganization(t *testing.T) {
	f := newGateFixture()
	userID, orgID := uuid.New(), uuid.New()
	f.memberships.roles[memberKey{f.systemOrgID, userID}] = models.OrgRoleAdmin

	assert.True(t, f.gate.IsSystemAdmin(context.Background(), userID))
	assert.True(t, f.gate.CanManageOrganization(context.Background(), userID, orgID))
}

func TestSystemOrgMemberIsNotSystemAdmin(t *testing.T) {
	f := newGateFixture()
	userID := uuid.New()
	f.memberships.roles[memberKey{f.systemOrgID, userID}] = models.OrgRoleMember

	assert.False(t, f.gate.IsSystemAdmin(context.Background(), userID))
}

func TestCanManageEventThroughOwningOrganization(t *testing.T) {
	f := newGateFixture()
	orgID, eventID := uuid.New(), uuid.New()
	f.events.orgs[eventID] = orgID

	admin := uuid.New()
	f.memberships.roles[memberKey{orgID, admin}] = models.OrgRoleAdmin
	assert.True(t, f.gate.CanManageEvent(context.Background(), admin, eventID))

	stranger := uuid.New()
	assert.False(t, f.gate.CanManageEvent(context.Background(), stranger, eventID))
}

func TestCanManageEventUnknownEventDenies(t *testing.T) {
	f := newGateFixture()
	assert.False(t, f.gate.CanManageEvent(context.Background(), uuid.New(), uuid.New()))
}

func TestCanManagePaperAsAuthor(t *testing.T) {
	f := newGateFixture()
	paperID, userID := uuid.New(), uuid.New()
	f.papers.events[paperID] = uuid.New()
	f.papers.authors[memberKey{paperID, userID}] = true

	assert.True(t, f.gate.CanManagePaper(context.Background(), userID, paperID))
}

func TestCanManagePaperAsEventManager(t *testing.T) {
	f := newGateFixture()
	orgID, eventID, paperID := uuid.New(), uuid.New(), uuid.New()
	f.events.orgs[eventID] = orgID
	f.papers.events[paperID] = eventID

	manager := uuid.New()
	f.memberships.roles[memberKey{orgID, manager}] = models.OrgRoleAdmin
	assert.True(t, f.gate.CanManagePaper(context.Background(), manager, paperID))

	stranger := uuid.New()
	assert.False(t, f.gate.CanManagePaper(context.Background(), stranger, paperID))
}

func TestStoreErrorsDeny(t *testing.T) {
	f := newGateFixture()
	f.memberships.err = errors.New("connection refused")

	userID := uuid.New()
	assert.False(t, f.gate.IsSystemAdmin(context.Background(), userID))
	assert.False(t, f.gate.CanManageOrganization(context.Background(), userID, uuid.New()))

	f2 := newGateFixture()
	paperID := uuid.New()
	f2.papers.events[paperID] = uuid.New()
	f2.papers.err = errors.New("connection refused")
	assert.False(t, f2.gate.CanManagePaper(context.Background(), userID, paperID))
}
