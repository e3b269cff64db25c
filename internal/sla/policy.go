package sla

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

// Targets are the response and resolution budgets, in hours.
type Targets struct {
	ResponseHours   float64
	ResolutionHours float64
}

// Source tells which level of the lookup produced a Targets value.
type Source string

const (
	SourceOrganization Source = "organization"
	SourceGlobal       Source = "global"
	SourceDefault      Source = "default"
)

// DefaultTargets is the built-in table used when no active policy matches.
var DefaultTargets = map[domain.TicketPriority]Targets{
	domain.TicketPriorityUrgent: {ResponseHours: 1, ResolutionHours: 4},
	domain.TicketPriorityHigh:   {ResponseHours: 4, ResolutionHours: 24},
	domain.TicketPriorityMedium: {ResponseHours: 8, ResolutionHours: 72},
	domain.TicketPriorityLow:    {ResponseHours: 24, ResolutionHours: 168},
}

// PolicyStore looks up a single active policy. A nil organizationID selects
// the global policy. Misses are reported as pgx.ErrNoRows.
type PolicyStore interface {
	FindActive(ctx context.Context, priority domain.TicketPriority, organizationID *string) (*domain.SLAPolicy, error)
}

// PolicyResolver picks the targets for a priority, preferring an
// organization policy, then the global one, then DefaultTargets.
type PolicyResolver struct {
	store  PolicyStore
	logger *zap.Logger
}

// NewPolicyResolver builds a resolver. store may be nil, in which case only
// the default table is used.
func NewPolicyResolver(store PolicyStore, logger *zap.Logger) *PolicyResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyResolver{store: store, logger: logger}
}

// NormalizePriority maps unknown or empty priorities to medium.
func NormalizePriority(p domain.TicketPriority) domain.TicketPriority {
	p = domain.TicketPriority(strings.ToUpper(strings.TrimSpace(string(p))))
	if !p.Valid() {
		return domain.TicketPriorityMedium
	}
	return p
}

// Resolve never fails. Store errors are logged and treated as a miss.
func (r *PolicyResolver) Resolve(ctx context.Context, priority domain.TicketPriority, organizationID *string) (Targets, Source) {
	priority = NormalizePriority(priority)

	if organizationID != nil && *organizationID != "" {
		if t, ok := r.lookup(ctx, priority, organizationID); ok {
			return t, SourceOrganization
		}
	}
	if t, ok := r.lookup(ctx, priority, nil); ok {
		return t, SourceGlobal
	}
	return DefaultTargets[priority], SourceDefault
}

func (r *PolicyResolver) lookup(ctx context.Context, priority domain.TicketPriority, organizationID *string) (Targets, bool) {
	if r.store == nil {
		return Targets{}, false
	}
	policy, err := r.store.FindActive(ctx, priority, organizationID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			fields := []zap.Field{zap.String("priority", string(priority)), zap.Error(err)}
			if organizationID != nil {
				fields = append(fields, zap.String("organization_id", *organizationID))
			}
			r.logger.Warn("sla policy lookup failed", fields...)
		}
		return Targets{}, false
	}
	if policy == nil || !policy.IsActive {
		return Targets{}, false
	}
	return Targets{ResponseHours: policy.ResponseTimeHours, ResolutionHours: policy.ResolutionTimeHours}, true
}
