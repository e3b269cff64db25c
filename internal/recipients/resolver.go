// Package recipients turns tickets and automations into email address lists.
package recipients

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/notify"
	"github.com/deskops/helpdesk-engine/internal/repository"
)

// Directory is the people lookup the resolver reads from.
type Directory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetStaff(ctx context.Context, id string) (*domain.StaffMember, error)
	ListStaff(ctx context.Context, filter repository.StaffFilter) ([]domain.StaffMember, error)
	GetDepartment(ctx context.Context, id string) (*domain.Department, error)
	ListDepartments(ctx context.Context, organizationID *string) ([]domain.Department, error)
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
}

// Resolver builds deduplicated recipient lists. Missing people are skipped;
// other lookup failures are logged and skipped so one bad record never blocks
// a notification.
type Resolver struct {
	dir    Directory
	logger *zap.Logger
}

func NewResolver(dir Directory, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{dir: dir, logger: logger}
}

// Escalation returns the creator, the assignee, the department head and all admins.
func (r *Resolver) Escalation(ctx context.Context, t domain.Ticket) []string {
	var out []string
	if t.RequesterID != "" {
		if u := r.user(ctx, t.RequesterID); u != nil {
			out = append(out, u.Email)
		}
	}
	if t.AssigneeID != nil {
		out = append(out, r.staffEmail(ctx, *t.AssigneeID))
	}
	out = append(out, r.departmentHead(ctx, t.DepartmentID)...)
	out = append(out, r.admins(ctx)...)
	return notify.Dedupe(out)
}

// Warning returns the assignee and the department head.
func (r *Resolver) Warning(ctx context.Context, t domain.Ticket) []string {
	var out []string
	if t.AssigneeID != nil {
		out = append(out, r.staffEmail(ctx, *t.AssigneeID))
	}
	out = append(out, r.departmentHead(ctx, t.DepartmentID)...)
	return notify.Dedupe(out)
}

// Staff returns the address of a single staff member, or nil.
func (r *Resolver) Staff(ctx context.Context, id string) []string {
	return notify.Dedupe([]string{r.staffEmail(ctx, id)})
}

// ForAutomation expands the automation's recipient groups. Technicians are
// only included for the daily open tickets list.
func (r *Resolver) ForAutomation(ctx context.Context, a domain.Automation) ([]string, error) {
	var out []string
	groups := a.Recipients

	if groups.Admins {
		out = append(out, r.admins(ctx)...)
	}

	if groups.OrganizationManagers && a.OrganizationID != nil {
		org, err := r.dir.GetOrganization(ctx, *a.OrganizationID)
		switch {
		case err == nil && org.ManagerID != nil:
			out = append(out, r.staffEmail(ctx, *org.ManagerID))
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			return nil, err
		}
	}

	if groups.DepartmentHeads {
		heads, err := r.departmentHeads(ctx, a.OrganizationID)
		if err != nil {
			return nil, err
		}
		out = append(out, heads...)
	}

	if groups.Technicians && a.Type == domain.AutomationDailyOpenTickets {
		techs, err := r.dir.ListStaff(ctx, repository.StaffFilter{
			Role:           role(domain.StaffRoleTechnician),
			OrganizationID: a.OrganizationID,
			Active:         boolPtr(true),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, staffEmails(techs)...)
	}

	return notify.Dedupe(out), nil
}

// departmentHeads lists active department heads, limited to the
// organization's departments when organizationID is set.
func (r *Resolver) departmentHeads(ctx context.Context, organizationID *string) ([]string, error) {
	filter := repository.StaffFilter{Role: role(domain.StaffRoleDepartmentHead), Active: boolPtr(true)}
	if organizationID != nil {
		depts, err := r.dir.ListDepartments(ctx, organizationID)
		if err != nil {
			return nil, err
		}
		if len(depts) == 0 {
			return nil, nil
		}
		for _, d := range depts {
			filter.DepartmentIDs = append(filter.DepartmentIDs, d.ID)
		}
	}
	heads, err := r.dir.ListStaff(ctx, filter)
	if err != nil {
		return nil, err
	}
	return staffEmails(heads), nil
}

func (r *Resolver) user(ctx context.Context, id string) *domain.User {
	u, err := r.dir.GetUser(ctx, id)
	if err != nil {
		r.logLookup("user", id, err)
		return nil
	}
	return u
}

func (r *Resolver) staffEmail(ctx context.Context, id string) string {
	s, err := r.dir.GetStaff(ctx, id)
	if err != nil {
		r.logLookup("staff", id, err)
		return ""
	}
	if !s.Active {
		return ""
	}
	return s.Email
}

func (r *Resolver) departmentHead(ctx context.Context, departmentID *string) []string {
	if departmentID == nil {
		return nil
	}
	dept, err := r.dir.GetDepartment(ctx, *departmentID)
	if err != nil {
		r.logLookup("department", *departmentID, err)
		return nil
	}
	if dept.HeadID == nil {
		return nil
	}
	return []string{r.staffEmail(ctx, *dept.HeadID)}
}

func (r *Resolver) admins(ctx context.Context) []string {
	staff, err := r.dir.ListStaff(ctx, repository.StaffFilter{Role: role(domain.StaffRoleAdmin), Active: boolPtr(true)})
	if err != nil {
		r.logger.Warn("list admins failed", zap.Error(err))
		return nil
	}
	return staffEmails(staff)
}

func (r *Resolver) logLookup(kind, id string, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return
	}
	r.logger.Warn("recipient lookup failed", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
}

func staffEmails(staff []domain.StaffMember) []string {
	out := make([]string, 0, len(staff))
	for _, s := range staff {
		out = append(out, s.Email)
	}
	return out
}

func role(r domain.StaffRole) *domain.StaffRole { return &r }

func boolPtr(b bool) *bool { return &b }
