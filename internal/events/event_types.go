package events

import (
	"time"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSLABreached        EventType = "sla_breached"
	EventSLAWarning         EventType = "sla_warning"
	EventTicketAutoAssigned EventType = "ticket_auto_assigned"
)

// Actor records who raised an event. StaffID is set for operator actions.
type Actor struct {
	Type    domain.SubjectType `json:"type"`
	StaffID *string            `json:"staff_id,omitempty"`
}

// SystemActor marks events raised by background workers.
var SystemActor = Actor{Type: domain.SubjectTypeSystem}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SLABreachedPayload carries the ticket as persisted after the breach.
type SLABreachedPayload struct {
	Kind       domain.DeadlineKind `json:"kind"`
	DueAt      time.Time           `json:"due_at"`
	BreachedAt time.Time           `json:"breached_at"`
	Ticket     domain.Ticket       `json:"ticket"`
}

// SLAWarningPayload carries the elapsed share of the matching window.
type SLAWarningPayload struct {
	Kind              domain.DeadlineKind `json:"kind"`
	DueAt             time.Time           `json:"due_at"`
	PercentageElapsed float64             `json:"percentage_elapsed"`
	TimeRemaining     time.Duration       `json:"time_remaining"`
	Ticket            domain.Ticket       `json:"ticket"`
}

// TicketAutoAssignedPayload is emitted when an overdue unassigned ticket is
// handed to its department head.
type TicketAutoAssignedPayload struct {
	AssigneeStaffID string        `json:"assignee_staff_id"`
	DepartmentID    string        `json:"department_id"`
	Ticket          domain.Ticket `json:"ticket"`
}
