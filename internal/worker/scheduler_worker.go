package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/deskops/helpdesk-engine/internal/schedule"
)

// Scheduler is the automation table driven by SchedulerWorker.
type Scheduler interface {
	Load(ctx context.Context) error
	Tick(ctx context.Context, now time.Time) (schedule.TickResult, error)
}

// SchedulerWorker ticks the automation scheduler and periodically reloads
// its definitions.
type SchedulerWorker struct {
	scheduler      Scheduler
	tickInterval   time.Duration
	reloadInterval time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

func NewSchedulerWorker(s Scheduler, tick, reload time.Duration, logger *zap.Logger) *SchedulerWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulerWorker{scheduler: s, tickInterval: tick, reloadInterval: reload, logger: logger, now: time.Now}
}

func (w *SchedulerWorker) Name() string { return "automation-scheduler" }

func (w *SchedulerWorker) Run(ctx context.Context) {
	w.reload(ctx)

	tick := time.NewTicker(w.tickInterval)
	defer tick.Stop()
	reload := time.NewTicker(w.reloadInterval)
	defer reload.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reload.C:
			w.reload(ctx)
		case <-tick.C:
			w.tick(ctx, w.now())
		}
	}
}

func (w *SchedulerWorker) reload(ctx context.Context) {
	if err := guard(w.logger, "automation-reload", func() error { return w.scheduler.Load(ctx) }); err != nil {
		w.logger.Error("reload automations failed", zap.Error(err))
	}
}

func (w *SchedulerWorker) tick(ctx context.Context, now time.Time) {
	var res schedule.TickResult
	err := guard(w.logger, "automation-tick", func() error {
		var err error
		res, err = w.scheduler.Tick(ctx, now)
		return err
	})
	switch {
	case errors.Is(err, schedule.ErrTickInProgress):
		w.logger.Debug("scheduler tick skipped, previous tick still running")
	case err != nil:
		w.logger.Error("scheduler tick failed", zap.Error(err))
	case res.Due > 0:
		w.logger.Info("scheduler tick ran automations", zap.Int("due", res.Due), zap.Int("failed", res.Failed))
	}
}
