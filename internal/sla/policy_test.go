package sla

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

type fakePolicyStore struct {
	policies map[string]*domain.SLAPolicy
	err      error
	calls    int
}

func policyKey(p domain.TicketPriority, org *string) string {
	if org == nil {
		return "global/" + string(p)
	}
	return *org + "/" + string(p)
}

func (f *fakePolicyStore) FindActive(_ context.Context, p domain.TicketPriority, org *string) (*domain.SLAPolicy, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	pol, ok := f.policies[policyKey(p, org)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return pol, nil
}

func strPtr(s string) *string { return &s }

func TestResolvePrecedence(t *testing.T) {
	org := strPtr("org-1")
	store := &fakePolicyStore{policies: map[string]*domain.SLAPolicy{
		policyKey(domain.TicketPriorityHigh, org): {Priority: domain.TicketPriorityHigh, ResponseTimeHours: 2, ResolutionTimeHours: 10, IsActive: true},
		policyKey(domain.TicketPriorityHigh, nil): {Priority: domain.TicketPriorityHigh, ResponseTimeHours: 3, ResolutionTimeHours: 12, IsActive: true},
		policyKey(domain.TicketPriorityLow, nil):  {Priority: domain.TicketPriorityLow, ResponseTimeHours: 30, ResolutionTimeHours: 200, IsActive: true},
	}}
	r := NewPolicyResolver(store, nil)

	tests := []struct {
		name     string
		priority domain.TicketPriority
		org      *string
		want     Targets
		source   Source
	}{
		{"organization policy wins", domain.TicketPriorityHigh, org, Targets{2, 10}, SourceOrganization},
		{"global when no org given", domain.TicketPriorityHigh, nil, Targets{3, 12}, SourceGlobal},
		{"global when org has none", domain.TicketPriorityLow, org, Targets{30, 200}, SourceGlobal},
		{"default table", domain.TicketPriorityUrgent, org, Targets{1, 4}, SourceDefault},
		{"unknown priority is medium", domain.TicketPriority("critical"), nil, Targets{8, 72}, SourceDefault},
		{"lowercase priority", domain.TicketPriority("high"), nil, Targets{3, 12}, SourceGlobal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, source := r.Resolve(context.Background(), tc.priority, tc.org)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.source, source)
		})
	}
}

func TestResolveIgnoresInactivePolicy(t *testing.T) {
	store := &fakePolicyStore{policies: map[string]*domain.SLAPolicy{
		policyKey(domain.TicketPriorityUrgent, nil): {ResponseTimeHours: 9, ResolutionTimeHours: 9, IsActive: false},
	}}
	got, source := NewPolicyResolver(store, nil).Resolve(context.Background(), domain.TicketPriorityUrgent, nil)
	assert.Equal(t, DefaultTargets[domain.TicketPriorityUrgent], got)
	assert.Equal(t, SourceDefault, source)
}

func TestResolveStoreErrorFallsBackToDefault(t *testing.T) {
	store := &fakePolicyStore{err: errors.New("connection refused")}
	got, source := NewPolicyResolver(store, nil).Resolve(context.Background(), domain.TicketPriorityHigh, strPtr("org-1"))
	assert.Equal(t, DefaultTargets[domain.TicketPriorityHigh], got)
	assert.Equal(t, SourceDefault, source)
	assert.Equal(t, 2, store.calls)
}

func TestResolveWithoutStore(t *testing.T) {
	got, source := NewPolicyResolver(nil, nil).Resolve(context.Background(), domain.TicketPriorityLow, nil)
	assert.Equal(t, Targets{24, 168}, got)
	assert.Equal(t, SourceDefault, source)
}
