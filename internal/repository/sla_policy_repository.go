package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

// SLAPolicyRepository reads configured SLA policies.
type SLAPolicyRepository interface {
	// FindActive returns pgx.ErrNoRows when no active policy matches.
	FindActive(ctx context.Context, priority domain.TicketPriority, organizationID *string) (*domain.SLAPolicy, error)
	ListActive(ctx context.Context) ([]domain.SLAPolicy, error)
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSLAPolicyRepository builds the repository.
func NewSLAPolicyRepository(pool *pgxpool.Pool) SLAPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

const slaPolicyColumns = `id, name, organization_id, priority, response_time_hours, resolution_time_hours,
       is_active, description, created_at, updated_at`

func (r *slaPolicyRepository) FindActive(ctx context.Context, priority domain.TicketPriority, organizationID *string) (*domain.SLAPolicy, error) {
	var (
		query string
		args  []any
	)
	if organizationID == nil {
		query = `SELECT ` + slaPolicyColumns + ` FROM sla_policies
            WHERE is_active = TRUE AND organization_id IS NULL AND priority=$1
            ORDER BY updated_at DESC LIMIT 1`
		args = []any{priority}
	} else {
		query = `SELECT ` + slaPolicyColumns + ` FROM sla_policies
            WHERE is_active = TRUE AND organization_id=$1 AND priority=$2
            ORDER BY updated_at DESC LIMIT 1`
		args = []any{*organizationID, priority}
	}

	var p domain.SLAPolicy
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.Name, &p.OrganizationID, &p.Priority, &p.ResponseTimeHours, &p.ResolutionTimeHours,
		&p.IsActive, &p.Description, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *slaPolicyRepository) ListActive(ctx context.Context) ([]domain.SLAPolicy, error) {
	query := `SELECT ` + slaPolicyColumns + ` FROM sla_policies WHERE is_active = TRUE ORDER BY priority, organization_id NULLS FIRST`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAPolicy
	for rows.Next() {
		var p domain.SLAPolicy
		if err := rows.Scan(
			&p.ID, &p.Name, &p.OrganizationID, &p.Priority, &p.ResponseTimeHours, &p.ResolutionTimeHours,
			&p.IsActive, &p.Description, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
