// Package compliance scans active tickets for SLA warnings and breaches.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/events"
	"github.com/deskops/helpdesk-engine/internal/observability"
	"github.com/deskops/helpdesk-engine/internal/repository"
	"github.com/deskops/helpdesk-engine/internal/sla"
)

// ErrScanInProgress is returned when Scan is called while another scan runs.
var ErrScanInProgress = errors.New("compliance: scan already in progress")

// TicketStore is the ticket persistence the engine needs.
type TicketStore interface {
	ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error)
	UpdateSLAState(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
}

// DepartmentStore resolves a ticket's department and head.
type DepartmentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Department, error)
}

// Config tunes a scan.
type Config struct {
	WarningThresholdPercent float64
	Concurrency             int
	PageSize                int
}

// ScanResult summarizes one scan.
type ScanResult struct {
	Checked      int `json:"checked"`
	Breaches     int `json:"breaches"`
	Warnings     int `json:"warnings"`
	AutoAssigned int `json:"auto_assigned"`
	WriteFailed  int `json:"write_failed"`
	Panicked     int `json:"panicked"`
}

// Engine evaluates every active ticket against its deadlines. Each ticket is
// handled by exactly one goroutine per scan and scans never overlap.
type Engine struct {
	tickets     TicketStore
	departments DepartmentStore
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
	cfg         Config
	now         func() time.Time

	running atomic.Bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine builds the engine. Zero config values take their defaults.
func NewEngine(tickets TicketStore, departments DepartmentStore, dispatcher events.Dispatcher, logger *zap.Logger, cfg Config, opts ...Option) *Engine {
	if cfg.WarningThresholdPercent <= 0 {
		cfg.WarningThresholdPercent = 80
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		tickets:     tickets,
		departments: departments,
		dispatcher:  dispatcher,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Running reports whether a scan is in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Scan evaluates all active tickets once.
func (e *Engine) Scan(ctx context.Context) (ScanResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return ScanResult{}, ErrScanInProgress
	}
	defer e.running.Store(false)

	start := time.Now()
	now := e.now()

	tickets, err := repository.CollectTickets(ctx, e.tickets, repository.TicketFilter{
		Statuses: domain.ActiveStatuses,
	}, e.cfg.PageSize)
	if err != nil {
		e.metrics.RecordScan(time.Since(start), err)
		return ScanResult{}, fmt.Errorf("load active tickets: %w", err)
	}

	var breaches, warnings, assigned, failed, panicked atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i := range tickets {
		ticket := tickets[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			out, ok := e.processTicketRecovered(gctx, ticket, now)
			if !ok {
				panicked.Add(1)
				return nil
			}
			breaches.Add(int64(out.breaches))
			warnings.Add(int64(out.warnings))
			failed.Add(int64(out.writeFailed))
			if out.autoAssigned {
				assigned.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := ScanResult{
		Checked:      len(tickets),
		Breaches:     int(breaches.Load()),
		Warnings:     int(warnings.Load()),
		AutoAssigned: int(assigned.Load()),
		WriteFailed:  int(failed.Load()),
		Panicked:     int(panicked.Load()),
	}
	err = ctx.Err()
	e.metrics.RecordScan(time.Since(start), err)
	e.logger.Info("sla compliance scan finished",
		zap.Int("checked", result.Checked),
		zap.Int("breaches", result.Breaches),
		zap.Int("warnings", result.Warnings),
		zap.Int("auto_assigned", result.AutoAssigned),
		zap.Int("write_failed", result.WriteFailed),
		zap.Int("panicked", result.Panicked),
		zap.Duration("elapsed", time.Since(start)))
	return result, err
}

type ticketOutcome struct {
	breaches     int
	warnings     int
	writeFailed  int
	autoAssigned bool
}

type fired struct {
	kind   domain.DeadlineKind
	action Action
	status sla.DeadlineStatus
}

// processTicketRecovered contains a panic to the ticket that raised it.
// Notification handlers run inline, so this covers them too.
func (e *Engine) processTicketRecovered(ctx context.Context, ticket domain.Ticket, now time.Time) (out ticketOutcome, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("sla ticket processing panicked",
				zap.String("ticket_id", ticket.ID), zap.Any("panic", r))
			out, ok = ticketOutcome{}, false
		}
	}()
	return e.processTicket(ctx, ticket, now), true
}

func (e *Engine) processTicket(ctx context.Context, ticket domain.Ticket, now time.Time) ticketOutcome {
	var out ticketOutcome
	updated := ticket

	var transitions []fired
	for _, kind := range domain.DeadlineKinds {
		clock := updated.Clock(kind)
		status := sla.Evaluate(updated.CreatedAt, clock.DueAt, updated.Status, now)
		switch action := Transition(clock.State(), status, e.cfg.WarningThresholdPercent); action {
		case ActionBreach:
			clock.MarkBreached(now)
			transitions = append(transitions, fired{kind: kind, action: action, status: status})
		case ActionWarn:
			clock.MarkWarningSent()
			transitions = append(transitions, fired{kind: kind, action: action, status: status})
		}
	}

	current := ticket
	if len(transitions) > 0 {
		if err := e.tickets.UpdateSLAState(ctx, &updated); err != nil {
			// Flags stay unset in the store, so the next scan fires again.
			e.logger.Warn("persist sla state failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			e.metrics.RecordStoreWriteFailure()
			out.writeFailed = 1
		} else {
			current = updated
			for _, tr := range transitions {
				e.notify(ctx, current, tr, now)
				if tr.action == ActionBreach {
					out.breaches++
				} else {
					out.warnings++
				}
			}
		}
	}

	out.autoAssigned = e.autoEscalate(ctx, current, now)
	return out
}

func (e *Engine) notify(ctx context.Context, ticket domain.Ticket, tr fired, now time.Time) {
	due := *ticket.Clock(tr.kind).DueAt
	event := events.Event{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		Actor:     events.SystemActor,
		Timestamp: now,
	}
	switch tr.action {
	case ActionBreach:
		e.metrics.RecordBreach(string(tr.kind))
		event.Type = events.EventSLABreached
		event.Payload = events.SLABreachedPayload{Kind: tr.kind, DueAt: due, BreachedAt: now, Ticket: ticket}
	case ActionWarn:
		e.metrics.RecordWarning(string(tr.kind))
		var remaining time.Duration
		if tr.status.TimeRemaining != nil {
			remaining = *tr.status.TimeRemaining
		}
		event.Type = events.EventSLAWarning
		event.Payload = events.SLAWarningPayload{
			Kind:              tr.kind,
			DueAt:             due,
			PercentageElapsed: tr.status.PercentageElapsed,
			TimeRemaining:     remaining,
			Ticket:            ticket,
		}
	}
	e.logger.Info("sla transition",
		zap.String("ticket_id", ticket.ID),
		zap.String("kind", string(tr.kind)),
		zap.String("action", tr.action.String()),
		zap.Float64("percentage_elapsed", tr.status.PercentageElapsed))
	e.publish(ctx, event)
}

// autoEscalate hands an overdue, unassigned OPEN or APPROVED ticket to its
// department head and moves it to IN_PROGRESS.
func (e *Engine) autoEscalate(ctx context.Context, ticket domain.Ticket, now time.Time) bool {
	if ticket.Status != domain.TicketStatusOpen && ticket.Status != domain.TicketStatusApproved {
		return false
	}
	if ticket.AssigneeID != nil || ticket.DepartmentID == nil {
		return false
	}
	due := ticket.Resolution.DueAt
	if due == nil || !due.Before(now) {
		return false
	}
	if e.departments == nil {
		return false
	}

	dept, err := e.departments.GetByID(ctx, *ticket.DepartmentID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			e.logger.Warn("load department failed",
				zap.String("ticket_id", ticket.ID), zap.String("department_id", *ticket.DepartmentID), zap.Error(err))
		}
		return false
	}
	if dept.HeadID == nil {
		return false
	}

	head := *dept.HeadID
	ticket.AssigneeID = &head
	ticket.Status = domain.TicketStatusInProgress
	if err := e.tickets.Update(ctx, &ticket); err != nil {
		e.logger.Warn("auto-assign failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}

	e.metrics.RecordAutoAssigned()
	e.logger.Info("ticket auto-assigned to department head",
		zap.String("ticket_id", ticket.ID), zap.String("assignee_id", head))
	e.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketAutoAssigned,
		TicketID:  ticket.ID,
		Actor:     events.SystemActor,
		Timestamp: now,
		Payload: events.TicketAutoAssignedPayload{
			AssigneeStaffID: head,
			DepartmentID:    *ticket.DepartmentID,
			Ticket:          ticket,
		},
	})
	return true
}

// publish never fails the scan. Delivery errors are logged and not retried.
func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	if err := e.dispatcher.Publish(ctx, event); err != nil {
		e.logger.Warn("notification delivery failed",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
