package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

// AutomationRepository persists recurring report definitions.
type AutomationRepository interface {
	ListEnabled(ctx context.Context) ([]domain.Automation, error)
	GetByID(ctx context.Context, id string) (*domain.Automation, error)
	UpdateSchedule(ctx context.Context, id string, lastRunAt, nextRunAt *time.Time) error
	UpdateLastRun(ctx context.Context, id string, lastRunAt time.Time) error
}

type automationRepository struct {
	pool *pgxpool.Pool
}

// NewAutomationRepository builds the repository.
func NewAutomationRepository(pool *pgxpool.Pool) AutomationRepository {
	return &automationRepository{pool: pool}
}

const automationColumns = `id, name, type, organization_id, enabled,
       schedule_time, schedule_timezone, schedule_day_of_week, schedule_day_of_month,
       recipients_admins, recipients_org_managers, recipients_department_heads, recipients_technicians,
       last_run_at, next_run_at, created_by, created_at, updated_at`

func (r *automationRepository) ListEnabled(ctx context.Context) ([]domain.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE enabled = TRUE ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *automationRepository) GetByID(ctx context.Context, id string) (*domain.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id=$1`
	a, err := scanAutomation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateSchedule writes next_run_at and, when non-nil, last_run_at.
func (r *automationRepository) UpdateSchedule(ctx context.Context, id string, lastRunAt, nextRunAt *time.Time) error {
	const query = `
        UPDATE automations SET last_run_at=COALESCE($1, last_run_at), next_run_at=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, lastRunAt, nextRunAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *automationRepository) UpdateLastRun(ctx context.Context, id string, lastRunAt time.Time) error {
	const query = `UPDATE automations SET last_run_at=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, lastRunAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanAutomation(row pgx.Row) (domain.Automation, error) {
	var (
		a          domain.Automation
		dayOfWeek  *int16
		dayOfMonth *int16
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Type, &a.OrganizationID, &a.Enabled,
		&a.Schedule.TimeOfDay, &a.Schedule.Timezone, &dayOfWeek, &dayOfMonth,
		&a.Recipients.Admins, &a.Recipients.OrganizationManagers, &a.Recipients.DepartmentHeads, &a.Recipients.Technicians,
		&a.LastRunAt, &a.NextRunAt, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return a, err
	}
	a.Schedule.DayOfWeek = widen(dayOfWeek)
	a.Schedule.DayOfMonth = widen(dayOfMonth)
	return a, nil
}

func widen(v *int16) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
