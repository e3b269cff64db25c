package sla

import (
	"time"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

// DueDates holds the absolute deadlines derived from Targets.
type DueDates struct {
	ResponseDueAt   time.Time
	ResolutionDueAt time.Time
}

// ComputeDueDates adds the targets to createdAt as elapsed time, so DST
// shifts and month lengths never move the result.
func ComputeDueDates(createdAt time.Time, targets Targets) DueDates {
	return DueDates{
		ResponseDueAt:   createdAt.Add(hoursToDuration(targets.ResponseHours)),
		ResolutionDueAt: createdAt.Add(hoursToDuration(targets.ResolutionHours)),
	}
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// Apply writes due dates into the ticket clocks. Flags are left untouched.
func (d DueDates) Apply(t *domain.Ticket) {
	response, resolution := d.ResponseDueAt, d.ResolutionDueAt
	t.Response.DueAt = &response
	t.Resolution.DueAt = &resolution
}

// DeadlineStatus is the point-in-time evaluation of one deadline.
type DeadlineStatus struct {
	IsOverdue         bool
	TimeRemaining     *time.Duration
	PercentageElapsed float64
}

// Evaluate reports where now falls inside the [createdAt, dueAt] window.
// Only OPEN and IN_PROGRESS tickets can be overdue; a nil dueAt is never overdue.
func Evaluate(createdAt time.Time, dueAt *time.Time, status domain.TicketStatus, now time.Time) DeadlineStatus {
	if dueAt == nil {
		return DeadlineStatus{}
	}

	remaining := dueAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	window := dueAt.Sub(createdAt)
	percentage := 100.0
	if window > 0 {
		percentage = float64(now.Sub(createdAt)) / float64(window) * 100
	}

	return DeadlineStatus{
		IsOverdue:         now.After(*dueAt) && canBeOverdue(status),
		TimeRemaining:     &remaining,
		PercentageElapsed: percentage,
	}
}

func canBeOverdue(status domain.TicketStatus) bool {
	return status == domain.TicketStatusOpen || status == domain.TicketStatusInProgress
}
