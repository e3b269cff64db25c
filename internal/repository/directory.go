package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

// Directory groups the people and org-structure lookups used to route
// notifications and label reports.
type Directory struct {
	Users         UserRepository
	Staff         StaffRepository
	Departments   DepartmentRepository
	Organizations OrganizationRepository
}

// NewDirectory wires the Postgres repositories into a Directory.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{
		Users:         NewUserRepository(pool),
		Staff:         NewStaffRepository(pool),
		Departments:   NewDepartmentRepository(pool),
		Organizations: NewOrganizationRepository(pool),
	}
}

func (d *Directory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return d.Users.GetByID(ctx, id)
}

func (d *Directory) GetStaff(ctx context.Context, id string) (*domain.StaffMember, error) {
	return d.Staff.GetByID(ctx, id)
}

func (d *Directory) ListStaff(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	return d.Staff.List(ctx, filter)
}

func (d *Directory) GetDepartment(ctx context.Context, id string) (*domain.Department, error) {
	return d.Departments.GetByID(ctx, id)
}

func (d *Directory) ListDepartments(ctx context.Context, organizationID *string) ([]domain.Department, error) {
	return d.Departments.ListByOrganization(ctx, organizationID)
}

func (d *Directory) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	return d.Organizations.GetByID(ctx, id)
}
