package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/report"
)

var (
	// ErrAutomationNotFound is returned by RunNow for an unknown id.
	ErrAutomationNotFound = errors.New("schedule: automation not found")
	// ErrTickInProgress is returned when Tick overlaps a running tick.
	ErrTickInProgress = errors.New("schedule: tick already in progress")
)

// Store persists automations and their run bookkeeping.
type Store interface {
	ListEnabled(ctx context.Context) ([]domain.Automation, error)
	GetByID(ctx context.Context, id string) (*domain.Automation, error)
	UpdateSchedule(ctx context.Context, id string, lastRunAt, nextRunAt *time.Time) error
	UpdateLastRun(ctx context.Context, id string, lastRunAt time.Time) error
}

// Runner executes one automation.
type Runner interface {
	Run(ctx context.Context, a domain.Automation) (report.ExecutionResult, error)
}

// Entry is the operator view of one scheduled automation.
type Entry struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Type      domain.AutomationType `json:"type"`
	NextRunAt time.Time             `json:"next_run_at"`
	LastRunAt *time.Time            `json:"last_run_at,omitempty"`
	Running   bool                  `json:"running"`
}

type entry struct {
	automation domain.Automation
	nextRunAt  time.Time
	running    bool
}

// TickResult summarizes one tick.
type TickResult struct {
	Due    int `json:"due"`
	Failed int `json:"failed"`
}

// Scheduler keeps the in-memory run table for enabled automations.
type Scheduler struct {
	store  Store
	runner Runner
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	ticking atomic.Bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock used by Load and RunNow.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(store Store, runner Runner, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		store:   store,
		runner:  runner,
		logger:  logger,
		now:     time.Now,
		entries: map[string]*entry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load rebuilds the table from the enabled automations. An entry whose type
// and schedule are unchanged keeps its pending slot; everything else is
// recomputed from now and the new slot is written back.
func (s *Scheduler) Load(ctx context.Context) error {
	list, err := s.store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("load automations: %w", err)
	}
	now := s.now()

	s.mu.Lock()
	fresh := make(map[string]*entry, len(list))
	var changed []domain.Automation
	for _, a := range list {
		if err := Validate(a); err != nil {
			s.logger.Warn("automation schedule invalid, using defaults",
				zap.String("automation_id", a.ID),
				zap.Error(err),
			)
		}
		e := &entry{automation: a}
		switch old, ok := s.entries[a.ID]; {
		case ok && sameSchedule(old.automation, a):
			e.nextRunAt = old.nextRunAt
			e.running = old.running
		case a.NextRunAt != nil && a.NextRunAt.After(now) && !ok:
			e.nextRunAt = *a.NextRunAt
		default:
			e.nextRunAt = NextRun(a, now)
		}
		if a.NextRunAt == nil || !a.NextRunAt.Equal(e.nextRunAt) {
			next := e.nextRunAt
			e.automation.NextRunAt = &next
			changed = append(changed, e.automation)
		}
		fresh[a.ID] = e
	}
	s.entries = fresh
	s.mu.Unlock()

	for _, a := range changed {
		if err := s.store.UpdateSchedule(ctx, a.ID, nil, a.NextRunAt); err != nil {
			s.logger.Error("persist next run failed", zap.String("automation_id", a.ID), zap.Error(err))
		}
	}
	s.logger.Info("automations loaded", zap.Int("count", len(fresh)), zap.Int("rescheduled", len(changed)))
	return nil
}

func sameSchedule(a, b domain.Automation) bool {
	return a.Type == b.Type &&
		a.Schedule.TimeOfDay == b.Schedule.TimeOfDay &&
		a.Schedule.Timezone == b.Schedule.Timezone &&
		equalIntPtr(a.Schedule.DayOfWeek, b.Schedule.DayOfWeek) &&
		equalIntPtr(a.Schedule.DayOfMonth, b.Schedule.DayOfMonth)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Tick runs every entry due at now. Each due entry is moved to its next slot
// before it runs, so a later tick never fires the same slot twice. Failures
// are logged and the entry stays scheduled.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	if !s.ticking.CompareAndSwap(false, true) {
		return TickResult{}, ErrTickInProgress
	}
	defer s.ticking.Store(false)

	type job struct {
		automation domain.Automation
		next       time.Time
	}
	s.mu.Lock()
	var due []job
	for _, e := range s.entries {
		if e.running || e.nextRunAt.After(now) {
			continue
		}
		e.nextRunAt = NextRun(e.automation, now)
		e.running = true
		due = append(due, job{automation: e.automation, next: e.nextRunAt})
	}
	s.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].automation.ID < due[j].automation.ID })

	var res TickResult
	for _, j := range due {
		res.Due++
		_, err := s.execute(ctx, j.automation)
		s.finish(j.automation.ID, now, err == nil)

		var last *time.Time
		if err == nil {
			last = &now
		} else {
			res.Failed++
		}
		next := j.next
		if perr := s.store.UpdateSchedule(ctx, j.automation.ID, last, &next); perr != nil {
			s.logger.Error("persist schedule failed", zap.String("automation_id", j.automation.ID), zap.Error(perr))
		}
	}
	return res, nil
}

func (s *Scheduler) finish(id string, at time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, found := s.entries[id]; found {
		e.running = false
		if ok {
			e.automation.LastRunAt = &at
		}
	}
}

// execute runs a job and converts a panic into an error.
func (s *Scheduler) execute(ctx context.Context, a domain.Automation) (res report.ExecutionResult, err error) {
	log := s.logger.With(
		zap.String("automation_id", a.ID),
		zap.String("type", string(a.Type)),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("automation panicked: %v", r)
			log.Error("automation panicked", zap.Any("panic", r))
		}
	}()

	res, err = s.runner.Run(ctx, a)
	if err != nil {
		log.Error("automation run failed", zap.Error(err))
		return res, err
	}
	log.Info("automation run finished",
		zap.Bool("sent", res.Sent),
		zap.Int("recipients", len(res.Recipients)),
		zap.String("message", res.Message),
	)
	return res, nil
}

// RunNow executes an automation immediately. Only LastRunAt is recorded; the
// scheduled slot is left alone.
func (s *Scheduler) RunNow(ctx context.Context, id string) (report.ExecutionResult, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report.ExecutionResult{}, ErrAutomationNotFound
		}
		return report.ExecutionResult{}, fmt.Errorf("get automation %s: %w", id, err)
	}

	res, err := s.execute(ctx, *a)
	if err != nil {
		return res, err
	}
	at := s.now()
	if perr := s.store.UpdateLastRun(ctx, id, at); perr != nil {
		s.logger.Error("persist last run failed", zap.String("automation_id", id), zap.Error(perr))
	}

	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		e.automation.LastRunAt = &at
	}
	s.mu.Unlock()
	return res, nil
}

// Snapshot lists the scheduled automations ordered by their next slot.
func (s *Scheduler) Snapshot() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, Entry{
			ID:        id,
			Name:      e.automation.Name,
			Type:      e.automation.Type,
			NextRunAt: e.nextRunAt,
			LastRunAt: e.automation.LastRunAt,
			Running:   e.running,
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextRunAt.Equal(out[j].NextRunAt) {
			return out[i].NextRunAt.Before(out[j].NextRunAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
