package compliance

import (
	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/sla"
)

// Action is the outcome of evaluating one deadline kind.
type Action int

const (
	ActionNone Action = iota
	ActionWarn
	ActionBreach
)

func (a Action) String() string {
	switch a {
	case ActionWarn:
		return "warn"
	case ActionBreach:
		return "breach"
	default:
		return "none"
	}
}

// Transition is the per-kind state machine.
//
//	state        overdue  pct >= threshold  action
//	Breached     any      any               none
//	Pending      yes      any               breach
//	WarningSent  yes      any               breach
//	Pending      no       yes               warn
//	WarningSent  no       any               none
//
// A ticket without a due date never transitions.
func Transition(state domain.DeadlineState, status sla.DeadlineStatus, thresholdPercent float64) Action {
	if state == domain.DeadlineBreached || status.TimeRemaining == nil {
		return ActionNone
	}
	if status.IsOverdue {
		return ActionBreach
	}
	if state == domain.DeadlinePending && status.PercentageElapsed >= thresholdPercent {
		return ActionWarn
	}
	return ActionNone
}
