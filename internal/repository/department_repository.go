package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

// DepartmentRepository reads departments and their heads.
type DepartmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Department, error)
	// ListByOrganization returns every department when organizationID is nil.
	ListByOrganization(ctx context.Context, organizationID *string) ([]domain.Department, error)
}

type departmentRepository struct {
	pool *pgxpool.Pool
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepository{pool: pool}
}

const departmentColumns = `id, organization_id, name, description, head_staff_id, is_active, created_at, updated_at`

func (r *departmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE id=$1`
	dept, err := scanDepartment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) ListByOrganization(ctx context.Context, organizationID *string) ([]domain.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments`
	var args []any
	if organizationID != nil {
		query += ` WHERE organization_id=$1`
		args = append(args, *organizationID)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}

func scanDepartment(row pgx.Row) (domain.Department, error) {
	var d domain.Department
	err := row.Scan(&d.ID, &d.OrganizationID, &d.Name, &d.Description, &d.HeadID, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}
