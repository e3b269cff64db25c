package service

import (
	"context"
	"errors"

	"github.com/deskops/helpdesk-engine/internal/report"
	"github.com/deskops/helpdesk-engine/internal/schedule"
	apperrors "github.com/deskops/helpdesk-engine/pkg/util/errorutil"
)

// AutomationScheduler is the scheduler surface exposed to operators.
type AutomationScheduler interface {
	Load(ctx context.Context) error
	RunNow(ctx context.Context, id string) (report.ExecutionResult, error)
	Snapshot() []schedule.Entry
}

// AutomationService wraps the scheduler for the admin API.
type AutomationService struct {
	scheduler AutomationScheduler
}

// NewAutomationService creates the service.
func NewAutomationService(scheduler AutomationScheduler) *AutomationService {
	return &AutomationService{scheduler: scheduler}
}

// Schedule lists the pending runs.
func (s *AutomationService) Schedule() []schedule.Entry {
	return s.scheduler.Snapshot()
}

// Reload re-reads the enabled automations.
func (s *AutomationService) Reload(ctx context.Context) ([]schedule.Entry, error) {
	if err := s.scheduler.Load(ctx); err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.scheduler.Snapshot(), nil
}

// RunNow executes one automation outside its schedule.
func (s *AutomationService) RunNow(ctx context.Context, id string) (report.ExecutionResult, error) {
	res, err := s.scheduler.RunNow(ctx, id)
	switch {
	case errors.Is(err, schedule.ErrAutomationNotFound):
		return res, apperrors.NewNotFound("automation", map[string]any{"automation_id": id})
	case errors.Is(err, report.ErrUnknownType):
		return res, apperrors.NewValidationError("automation type has no report", map[string]any{"automation_id": id})
	case err != nil:
		return res, apperrors.MapError(err)
	}
	return res, nil
}
