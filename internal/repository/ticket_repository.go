package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

// TicketFilter captures scan and report query parameters. Results are ordered
// by created_at, id so offset paging is stable.
type TicketFilter struct {
	OrganizationID      *string
	DepartmentID        *string
	AssigneeID          *string
	Unassigned          bool
	Statuses            []domain.TicketStatus
	Priorities          []domain.TicketPriority
	ResolutionDueBefore *time.Time
	CreatedFrom         *time.Time
	CreatedBefore       *time.Time
	Limit               int
	Offset              int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// UpdateSLAState merges breach and warning flags. Set flags are never
	// cleared and due dates are not written.
	UpdateSLAState(ctx context.Context, ticket *domain.Ticket) error
	// UpdateDueDates writes both due dates only.
	UpdateDueDates(ctx context.Context, id string, responseDueAt, resolutionDueAt *time.Time) error
	// Update writes assignment and status only.
	Update(ctx context.Context, ticket *domain.Ticket) error
}

// TicketLister is the read side used by CollectTickets.
type TicketLister interface {
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

// CollectTickets pages through ListWithFilter until a short page is returned.
func CollectTickets(ctx context.Context, lister TicketLister, filter TicketFilter, pageSize int) ([]domain.Ticket, error) {
	if pageSize <= 0 {
		pageSize = defaultTicketPageSize
	}
	var all []domain.Ticket
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := filter
		page.Limit = pageSize
		page.Offset = offset
		items, err := lister.ListWithFilter(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("list tickets at offset %d: %w", offset, err)
		}
		all = append(all, items...)
		if len(items) < pageSize {
			return all, nil
		}
	}
}

const (
	defaultTicketPageSize = 200
	maxTicketPageSize     = 1000
)

const ticketColumns = `id, external_key, requester_user_id, organization_id, department_id, assignee_staff_id,
       title, category, status, priority,
       response_due_at, response_breached, response_breached_at, response_warning_sent,
       resolution_due_at, resolution_breached, resolution_breached_at, resolution_warning_sent,
       created_at, updated_at, closed_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Flags only move from false to true, and the first breach time wins.
const updateSLAStateQuery = `
        UPDATE tickets SET
            response_breached = response_breached OR $1,
            response_breached_at = COALESCE(response_breached_at, $2),
            response_warning_sent = response_warning_sent OR $3,
            resolution_breached = resolution_breached OR $4,
            resolution_breached_at = COALESCE(resolution_breached_at, $5),
            resolution_warning_sent = resolution_warning_sent OR $6,
            updated_at=NOW()
        WHERE id=$7`

const updateDueDatesQuery = `
        UPDATE tickets SET response_due_at=$1, resolution_due_at=$2, updated_at=NOW()
        WHERE id=$3`

func (r *ticketRepository) UpdateSLAState(ctx context.Context, ticket *domain.Ticket) error {
	cmd, err := r.pool.Exec(ctx, updateSLAStateQuery,
		ticket.Response.Breached,
		ticket.Response.BreachedAt,
		ticket.Response.WarningSent,
		ticket.Resolution.Breached,
		ticket.Resolution.BreachedAt,
		ticket.Resolution.WarningSent,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) UpdateDueDates(ctx context.Context, id string, responseDueAt, resolutionDueAt *time.Time) error {
	cmd, err := r.pool.Exec(ctx, updateDueDatesQuery, responseDueAt, resolutionDueAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET department_id=$1, assignee_staff_id=$2, status=$3, priority=$4, closed_at=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.DepartmentID,
		ticket.AssigneeID,
		ticket.Status,
		ticket.Priority,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTicketPageSize
	}
	if limit > maxTicketPageSize {
		limit = maxTicketPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at ASC, id ASC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	add := func(format string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(format, len(args)))
	}

	if filter.OrganizationID != nil {
		add("organization_id=$%d", *filter.OrganizationID)
	}
	if filter.DepartmentID != nil {
		add("department_id=$%d", *filter.DepartmentID)
	}
	if filter.AssigneeID != nil {
		add("assignee_staff_id=$%d", *filter.AssigneeID)
	}
	if filter.Unassigned {
		clauses = append(clauses, "assignee_staff_id IS NULL")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ResolutionDueBefore != nil {
		add("resolution_due_at < $%d", *filter.ResolutionDueBefore)
	}
	if filter.CreatedFrom != nil {
		add("created_at >= $%d", *filter.CreatedFrom)
	}
	if filter.CreatedBefore != nil {
		add("created_at < $%d", *filter.CreatedBefore)
	}
	return strings.Join(clauses, " AND "), args
}

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID,
		&t.ExternalKey,
		&t.RequesterID,
		&t.OrganizationID,
		&t.DepartmentID,
		&t.AssigneeID,
		&t.Title,
		&t.Category,
		&t.Status,
		&t.Priority,
		&t.Response.DueAt,
		&t.Response.Breached,
		&t.Response.BreachedAt,
		&t.Response.WarningSent,
		&t.Resolution.DueAt,
		&t.Resolution.Breached,
		&t.Resolution.BreachedAt,
		&t.Resolution.WarningSent,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.ClosedAt,
	)
	return t, err
}
