package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk-engine/internal/compliance"
	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/sla"
	apperrors "github.com/deskops/helpdesk-engine/pkg/util/errorutil"
)

// SLATicketStore is the ticket access the SLA service needs.
type SLATicketStore interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateDueDates(ctx context.Context, id string, responseDueAt, resolutionDueAt *time.Time) error
}

// TargetResolver picks the SLA targets for a ticket.
type TargetResolver interface {
	Resolve(ctx context.Context, priority domain.TicketPriority, organizationID *string) (sla.Targets, sla.Source)
}

// Scanner runs a compliance pass.
type Scanner interface {
	Scan(ctx context.Context) (compliance.ScanResult, error)
}

// SLAService exposes deadline state and compliance scans to operators.
type SLAService struct {
	tickets  SLATicketStore
	policies TargetResolver
	scanner  Scanner
	logger   *zap.Logger
	now      func() time.Time
}

// SLADependencies bundles collaborators.
type SLADependencies struct {
	TicketRepo SLATicketStore
	Policies   TargetResolver
	Scanner    Scanner
	Logger     *zap.Logger
}

// NewSLAService creates the service.
func NewSLAService(deps SLADependencies) *SLAService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAService{
		tickets:  deps.TicketRepo,
		policies: deps.Policies,
		scanner:  deps.Scanner,
		logger:   logger,
		now:      time.Now,
	}
}

// DeadlineView is the evaluated state of one deadline.
type DeadlineView struct {
	Kind                 domain.DeadlineKind `json:"kind"`
	DueAt                *time.Time          `json:"due_at"`
	State                string              `json:"state"`
	Breached             bool                `json:"breached"`
	BreachedAt           *time.Time          `json:"breached_at,omitempty"`
	WarningSent          bool                `json:"warning_sent"`
	IsOverdue            bool                `json:"is_overdue"`
	TimeRemainingSeconds *float64            `json:"time_remaining_seconds,omitempty"`
	PercentageElapsed    float64             `json:"percentage_elapsed"`
}

// TicketSLAView describes both deadlines of a ticket.
type TicketSLAView struct {
	TicketID     string                `json:"ticket_id"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	Response     DeadlineView          `json:"response"`
	Resolution   DeadlineView          `json:"resolution"`
	PolicySource sla.Source            `json:"policy_source,omitempty"`
}

// GetTicketSLA evaluates a ticket's deadlines at the current time.
func (s *SLAService) GetTicketSLA(ctx context.Context, ticketID string) (*TicketSLAView, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.view(ticket, ""), nil
}

// ApplyPolicy recomputes both due dates from the matching policy. Only the
// due dates are written; the returned view is read back from the store.
func (s *SLAService) ApplyPolicy(ctx context.Context, ticketID string) (*TicketSLAView, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status.IsTerminal() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticketID, "status": ticket.Status})
	}

	targets, source := s.policies.Resolve(ctx, ticket.Priority, ticket.OrganizationID)
	sla.ComputeDueDates(ticket.CreatedAt, targets).Apply(ticket)
	if err := s.tickets.UpdateDueDates(ctx, ticket.ID, ticket.Response.DueAt, ticket.Resolution.DueAt); err != nil {
		return nil, apperrors.MapError(err)
	}
	if fresh, err := s.tickets.GetByID(ctx, ticket.ID); err == nil {
		ticket = fresh
	} else {
		s.logger.Warn("reload ticket after policy apply", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	s.logger.Info("sla policy applied",
		zap.String("ticket_id", ticket.ID),
		zap.String("source", string(source)),
		zap.Float64("response_hours", targets.ResponseHours),
		zap.Float64("resolution_hours", targets.ResolutionHours),
	)
	return s.view(ticket, source), nil
}

// RunScan triggers a compliance pass. A pass already in flight is a conflict.
func (s *SLAService) RunScan(ctx context.Context) (compliance.ScanResult, error) {
	res, err := s.scanner.Scan(ctx)
	if err != nil {
		if errors.Is(err, compliance.ErrScanInProgress) {
			return res, apperrors.NewConflict("sla scan already in progress", nil)
		}
		return res, apperrors.MapError(err)
	}
	return res, nil
}

func (s *SLAService) load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *SLAService) view(t *domain.Ticket, source sla.Source) *TicketSLAView {
	now := s.now()
	out := &TicketSLAView{
		TicketID:     t.ID,
		Status:       t.Status,
		Priority:     t.Priority,
		PolicySource: source,
	}
	out.Response = deadlineView(t, domain.DeadlineResponse, now)
	out.Resolution = deadlineView(t, domain.DeadlineResolution, now)
	return out
}

func deadlineView(t *domain.Ticket, kind domain.DeadlineKind, now time.Time) DeadlineView {
	clock := t.Clock(kind)
	status := sla.Evaluate(t.CreatedAt, clock.DueAt, t.Status, now)
	v := DeadlineView{
		Kind:              kind,
		DueAt:             clock.DueAt,
		State:             clock.State().String(),
		Breached:          clock.Breached,
		BreachedAt:        clock.BreachedAt,
		WarningSent:       clock.WarningSent,
		IsOverdue:         status.IsOverdue,
		PercentageElapsed: status.PercentageElapsed,
	}
	if status.TimeRemaining != nil {
		secs := status.TimeRemaining.Seconds()
		v.TimeRemainingSeconds = &secs
	}
	return v
}
