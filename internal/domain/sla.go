package domain

import "time"

// DeadlineKind names one of the two SLA windows of a ticket.
type DeadlineKind string

const (
	DeadlineResponse   DeadlineKind = "response"
	DeadlineResolution DeadlineKind = "resolution"
)

// DeadlineKinds lists kinds in evaluation order.
var DeadlineKinds = []DeadlineKind{DeadlineResponse, DeadlineResolution}

// Label returns the capitalized kind used in notification subjects.
func (k DeadlineKind) Label() string {
	if k == DeadlineResponse {
		return "Response"
	}
	return "Resolution"
}

// DeadlineState is the per-kind compliance state.
//
//	Pending -> WarningSent -> Breached
//	Pending -------------------^
//
// Breached is terminal. WarningSent may be skipped when the scan cadence is
// coarser than the warning window, so Breached with no warning on record is valid.
type DeadlineState int

const (
	DeadlinePending DeadlineState = iota
	DeadlineWarningSent
	DeadlineBreached
)

func (s DeadlineState) String() string {
	switch s {
	case DeadlineWarningSent:
		return "warning_sent"
	case DeadlineBreached:
		return "breached"
	default:
		return "pending"
	}
}

// SLAClock holds the persisted deadline and its one-way flags.
type SLAClock struct {
	DueAt       *time.Time
	Breached    bool
	BreachedAt  *time.Time
	WarningSent bool
}

// State derives the compliance state from the flags.
func (c SLAClock) State() DeadlineState {
	switch {
	case c.Breached:
		return DeadlineBreached
	case c.WarningSent:
		return DeadlineWarningSent
	default:
		return DeadlinePending
	}
}

// MarkBreached sets the breach flag. It never clears anything.
func (c *SLAClock) MarkBreached(at time.Time) {
	if c.Breached {
		return
	}
	c.Breached = true
	c.BreachedAt = &at
}

// MarkWarningSent sets the warning flag. It is a no-op once breached.
func (c *SLAClock) MarkWarningSent() {
	if c.Breached {
		return
	}
	c.WarningSent = true
}

// MergeFlags folds next's flags into c without clearing any already set.
// The due date is left alone. It matches the store's SLA state write.
func (c *SLAClock) MergeFlags(next SLAClock) {
	if next.Breached && !c.Breached {
		c.Breached = true
		c.BreachedAt = next.BreachedAt
	}
	if c.BreachedAt == nil {
		c.BreachedAt = next.BreachedAt
	}
	c.WarningSent = c.WarningSent || next.WarningSent
}

// SLAPolicy is a configured response/resolution budget for a priority.
// A nil OrganizationID marks the global policy.
type SLAPolicy struct {
	ID                  string
	Name                string
	OrganizationID      *string
	Priority            TicketPriority
	ResponseTimeHours   float64
	ResolutionTimeHours float64
	IsActive            bool
	Description         string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
