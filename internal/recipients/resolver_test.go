package recipients

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/repository"
)

type fakeDirectory struct {
	users map[string]domain.User
	staff []domain.StaffMember
	depts []domain.Department
	orgs  map[string]domain.Organization
}

func (f *fakeDirectory) GetUser(_ context.Context, id string) (*domain.User, error) {
	if u, ok := f.users[id]; ok {
		return &u, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeDirectory) GetStaff(_ context.Context, id string) (*domain.StaffMember, error) {
	for _, s := range f.staff {
		if s.ID == id {
			s := s
			return &s, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeDirectory) ListStaff(_ context.Context, filter repository.StaffFilter) ([]domain.StaffMember, error) {
	var out []domain.StaffMember
	for _, s := range f.staff {
		if filter.Role != nil && s.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && s.Active != *filter.Active {
			continue
		}
		if filter.OrganizationID != nil && (s.OrganizationID == nil || *s.OrganizationID != *filter.OrganizationID) {
			continue
		}
		if len(filter.DepartmentIDs) > 0 && (s.DepartmentID == nil || !contains(filter.DepartmentIDs, *s.DepartmentID)) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeDirectory) GetDepartment(_ context.Context, id string) (*domain.Department, error) {
	for _, d := range f.depts {
		if d.ID == id {
			d := d
			return &d, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeDirectory) ListDepartments(_ context.Context, orgID *string) ([]domain.Department, error) {
	var out []domain.Department
	for _, d := range f.depts {
		if orgID == nil || (d.OrganizationID != nil && *d.OrganizationID == *orgID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDirectory) GetOrganization(_ context.Context, id string) (*domain.Organization, error) {
	if o, ok := f.orgs[id]; ok {
		return &o, nil
	}
	return nil, pgx.ErrNoRows
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T { return &v }

func newDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: map[string]domain.User{"u1": {ID: "u1", Email: "creator@x.io"}},
		staff: []domain.StaffMember{
			{ID: "admin1", Email: "admin@x.io", Role: domain.StaffRoleAdmin, Active: true},
			{ID: "admin2", Email: "old-admin@x.io", Role: domain.StaffRoleAdmin, Active: false},
			{ID: "head1", Email: "head1@x.io", Role: domain.StaffRoleDepartmentHead, Active: true, DepartmentID: ptr("d1")},
			{ID: "head2", Email: "head2@x.io", Role: domain.StaffRoleDepartmentHead, Active: true, DepartmentID: ptr("d2")},
			{ID: "tech1", Email: "tech1@x.io", Role: domain.StaffRoleTechnician, Active: true, OrganizationID: ptr("o1")},
			{ID: "tech2", Email: "tech2@x.io", Role: domain.StaffRoleTechnician, Active: true, OrganizationID: ptr("o2")},
			{ID: "mgr", Email: "manager@x.io", Role: domain.StaffRoleTeamLead, Active: true},
		},
		depts: []domain.Department{
			{ID: "d1", OrganizationID: ptr("o1"), HeadID: ptr("head1")},
			{ID: "d2", OrganizationID: ptr("o2"), HeadID: ptr("head2")},
			{ID: "d3", OrganizationID: ptr("o1")},
		},
		orgs: map[string]domain.Organization{"o1": {ID: "o1", ManagerID: ptr("mgr")}},
	}
}

func TestEscalationRecipients(t *testing.T) {
	r := NewResolver(newDirectory(), nil)
	ticket := domain.Ticket{RequesterID: "u1", AssigneeID: ptr("head1"), DepartmentID: ptr("d1")}

	got := r.Escalation(context.Background(), ticket)
	assert.Equal(t, []string{"creator@x.io", "head1@x.io", "admin@x.io"}, got)
}

func TestEscalationSkipsMissingPeople(t *testing.T) {
	r := NewResolver(newDirectory(), nil)
	ticket := domain.Ticket{RequesterID: "ghost", AssigneeID: ptr("nobody"), DepartmentID: ptr("d3")}

	assert.Equal(t, []string{"admin@x.io"}, r.Escalation(context.Background(), ticket))
}

func TestWarningRecipients(t *testing.T) {
	r := NewResolver(newDirectory(), nil)

	assert.Equal(t, []string{"tech1@x.io", "head2@x.io"},
		r.Warning(context.Background(), domain.Ticket{AssigneeID: ptr("tech1"), DepartmentID: ptr("d2")}))
	assert.Empty(t, r.Warning(context.Background(), domain.Ticket{}))
}

func TestForAutomationGroups(t *testing.T) {
	r := NewResolver(newDirectory(), nil)
	ctx := context.Background()

	orgScoped := domain.Automation{
		Type:           domain.AutomationDailyOpenTickets,
		OrganizationID: ptr("o1"),
		Recipients:     domain.AutomationRecipients{Admins: true, OrganizationManagers: true, DepartmentHeads: true, Technicians: true},
	}
	got, err := r.ForAutomation(ctx, orgScoped)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin@x.io", "manager@x.io", "head1@x.io", "tech1@x.io"}, got)

	global := domain.Automation{
		Type:       domain.AutomationWeeklyReport,
		Recipients: domain.AutomationRecipients{DepartmentHeads: true, Technicians: true, OrganizationManagers: true},
	}
	got, err = r.ForAutomation(ctx, global)
	require.NoError(t, err)
	assert.Equal(t, []string{"head1@x.io", "head2@x.io"}, got)
}

func TestForAutomationNoGroups(t *testing.T) {
	got, err := NewResolver(newDirectory(), nil).ForAutomation(context.Background(), domain.Automation{Type: domain.AutomationDailyReport})
	require.NoError(t, err)
	assert.Empty(t, got)
}
