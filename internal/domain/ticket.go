package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "OPEN"
	TicketStatusApprovalPending TicketStatus = "APPROVAL_PENDING"
	TicketStatusApproved        TicketStatus = "APPROVED"
	TicketStatusInProgress      TicketStatus = "IN_PROGRESS"
	TicketStatusPendingUser     TicketStatus = "PENDING_USER"
	TicketStatusResolved        TicketStatus = "RESOLVED"
	TicketStatusClosed          TicketStatus = "CLOSED"
	TicketStatusCancelled       TicketStatus = "CANCELLED"
)

// ActiveStatuses are the statuses the compliance scan looks at.
var ActiveStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusApprovalPending,
	TicketStatusApproved,
	TicketStatusInProgress,
}

// IsTerminal reports whether no further SLA transitions may happen.
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether the status is part of ActiveStatuses.
func (s TicketStatus) IsActive() bool {
	for _, active := range ActiveStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is one of the four known levels.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. Only the fields the SLA engine
// and the reports read are modeled here.
type Ticket struct {
	ID             string
	ExternalKey    string
	RequesterID    string
	OrganizationID *string
	DepartmentID   *string
	AssigneeID     *string
	Title          string
	Category       string
	Status         TicketStatus
	Priority       TicketPriority
	Response       SLAClock
	Resolution     SLAClock
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
}

// Clock returns a pointer to the clock for the given kind.
func (t *Ticket) Clock(kind DeadlineKind) *SLAClock {
	if kind == DeadlineResponse {
		return &t.Response
	}
	return &t.Resolution
}

// AnyBreached reports whether either deadline has been breached.
func (t *Ticket) AnyBreached() bool {
	return t.Response.Breached || t.Resolution.Breached
}
