package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/report"
)

type scheduleWrite struct {
	id   string
	last *time.Time
	next *time.Time
}

type fakeStore struct {
	mu        sync.Mutex
	items     map[string]domain.Automation
	schedules []scheduleWrite
	lastRuns  map[string]time.Time
	listErr   error
}

func newFakeStore(list ...domain.Automation) *fakeStore {
	f := &fakeStore{items: map[string]domain.Automation{}, lastRuns: map[string]time.Time{}}
	for _, a := range list {
		f.items[a.ID] = a
	}
	return f
}

func (f *fakeStore) ListEnabled(context.Context) ([]domain.Automation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Automation
	for _, a := range f.items {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*domain.Automation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (f *fakeStore) UpdateSchedule(_ context.Context, id string, last, next *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules = append(f.schedules, scheduleWrite{id: id, last: last, next: next})
	a := f.items[id]
	if last != nil {
		a.LastRunAt = last
	}
	a.NextRunAt = next
	f.items[id] = a
	return nil
}

func (f *fakeStore) UpdateLastRun(_ context.Context, id string, last time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRuns[id] = last
	a := f.items[id]
	a.LastRunAt = &last
	f.items[id] = a
	return nil
}

func (f *fakeStore) set(a domain.Automation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[a.ID] = a
}

type fakeRunner struct {
	mu    sync.Mutex
	runs  []string
	err   error
	panic bool
	block chan struct{}
}

func (r *fakeRunner) Run(_ context.Context, a domain.Automation) (report.ExecutionResult, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.runs = append(r.runs, a.ID)
	r.mu.Unlock()
	if r.panic {
		panic("template exploded")
	}
	if r.err != nil {
		return report.ExecutionResult{}, r.err
	}
	return report.ExecutionResult{Sent: true, Recipients: []string{"ops@desk.local"}}, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// t0 is Monday 2024-06-03 08:00 UTC.
var t0 = utc(2024, 6, 3, 8, 0, 0)

func enabled(id string, a domain.Automation) domain.Automation {
	a.ID = id
	a.Name = "automation " + id
	a.Enabled = true
	return a
}

func newTestScheduler(store Store, runner Runner, now time.Time) *Scheduler {
	return NewScheduler(store, runner, nil, WithClock(func() time.Time { return now }))
}

func entryByID(t *testing.T, s *Scheduler, id string) Entry {
	t.Helper()
	for _, e := range s.Snapshot() {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("entry %s not scheduled", id)
	return Entry{}
}

func TestLoadSchedulesEnabledAutomations(t *testing.T) {
	off := daily("09:00")
	off.ID = "off"
	store := newFakeStore(enabled("a", daily("09:00")), enabled("b", weekly("10:00", 3)), off)
	s := newTestScheduler(store, &fakeRunner{}, t0)

	require.NoError(t, s.Load(context.Background()))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].ID)
	assert.Equal(t, utc(2024, 6, 3, 9, 0, 0), snap[0].NextRunAt)
	assert.Equal(t, "b", snap[1].ID)
	assert.Equal(t, utc(2024, 6, 5, 10, 0, 0), snap[1].NextRunAt)

	require.Len(t, store.schedules, 2)
	for _, w := range store.schedules {
		assert.Nil(t, w.last)
		require.NotNil(t, w.next)
	}
}

func TestLoadKeepsStoredFutureSlot(t *testing.T) {
	a := enabled("a", daily("09:00"))
	stored := utc(2024, 6, 3, 9, 0, 0)
	a.NextRunAt = &stored
	store := newFakeStore(a)
	s := newTestScheduler(store, &fakeRunner{}, t0)

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, stored, entryByID(t, s, "a").NextRunAt)
	assert.Empty(t, store.schedules)
}

func TestLoadDoesNotCatchUpMissedRuns(t *testing.T) {
	a := enabled("a", daily("09:00"))
	missed := utc(2024, 6, 1, 9, 0, 0)
	a.NextRunAt = &missed
	store := newFakeStore(a)
	runner := &fakeRunner{}
	s := newTestScheduler(store, runner, t0)

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, utc(2024, 6, 3, 9, 0, 0), entryByID(t, s, "a").NextRunAt)

	_, err := s.Tick(context.Background(), t0)
	require.NoError(t, err)
	assert.Zero(t, runner.count())
}

func TestReloadPreservesPendingSlotAndRecomputesChanged(t *testing.T) {
	store := newFakeStore(enabled("same", daily("09:00")), enabled("moved", daily("09:00")))
	s := newTestScheduler(store, &fakeRunner{}, t0)
	require.NoError(t, s.Load(context.Background()))

	// Pretend the pending slots were never persisted.
	for _, id := range []string{"same", "moved"} {
		a := store.items[id]
		a.NextRunAt = nil
		store.set(a)
	}
	moved := store.items["moved"]
	moved.Schedule.TimeOfDay = "18:30"
	store.set(moved)

	// 09:30: the 09:00 slot is pending but has not been ticked yet.
	s.now = func() time.Time { return t0.Add(90 * time.Minute) }
	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, utc(2024, 6, 3, 9, 0, 0), entryByID(t, s, "same").NextRunAt)
	assert.Equal(t, utc(2024, 6, 3, 18, 30, 0), entryByID(t, s, "moved").NextRunAt)
}

func TestReloadDropsDisabled(t *testing.T) {
	store := newFakeStore(enabled("a", daily("09:00")))
	s := newTestScheduler(store, &fakeRunner{}, t0)
	require.NoError(t, s.Load(context.Background()))

	a := store.items["a"]
	a.Enabled = false
	store.set(a)
	require.NoError(t, s.Load(context.Background()))
	assert.Empty(t, s.Snapshot())
}

func TestLoadError(t *testing.T) {
	store := newFakeStore(enabled("a", daily("09:00")))
	s := newTestScheduler(store, &fakeRunner{}, t0)
	require.NoError(t, s.Load(context.Background()))

	store.listErr = errors.New("connection refused")
	assert.Error(t, s.Load(context.Background()))
	assert.Len(t, s.Snapshot(), 1)
}

func TestTickRunsDueOnce(t *testing.T) {
	store := newFakeStore(enabled("a", daily("09:00")))
	runner := &fakeRunner{}
	s := newTestScheduler(store, runner, t0)
	require.NoError(t, s.Load(context.Background()))

	slot := utc(2024, 6, 3, 9, 0, 0)
	res, err := s.Tick(context.Background(), slot.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Due)

	res, err = s.Tick(context.Background(), slot)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Due)

	res, err = s.Tick(context.Background(), slot.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Due)
	assert.Equal(t, 1, runner.count())

	e := entryByID(t, s, "a")
	assert.Equal(t, utc(2024, 6, 4, 9, 0, 0), e.NextRunAt)
	require.NotNil(t, e.LastRunAt)
	assert.Equal(t, slot, *e.LastRunAt)

	stored := store.items["a"]
	require.NotNil(t, stored.LastRunAt)
	assert.Equal(t, slot, *stored.LastRunAt)
	assert.Equal(t, utc(2024, 6, 4, 9, 0, 0), *stored.NextRunAt)
}

func TestLoadPersistsACopyOfTheSlot(t *testing.T) {
	store := newFakeStore(enabled("a", daily("09:00")))
	s := newTestScheduler(store, &fakeRunner{}, t0)
	require.NoError(t, s.Load(context.Background()))

	require.Len(t, store.schedules, 1)
	loaded := store.schedules[0].next
	require.NotNil(t, loaded)
	assert.Equal(t, utc(2024, 6, 3, 9, 0, 0), *loaded)

	_, err := s.Tick(context.Background(), t0.Add(2*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, utc(2024, 6, 3, 9, 0, 0), *loaded)
	assert.Equal(t, utc(2024, 6, 4, 9, 0, 0), entryByID(t, s, "a").NextRunAt)
}

func TestTickDoubleFirePrevention(t *testing.T) {
	a := enabled("a", daily("09:00"))
	now := utc(2024, 6, 3, 9, 0, 0)
	past := now.Add(-time.Second)
	a.NextRunAt = &past
	store := newFakeStore(a)
	runner := &fakeRunner{}
	s := newTestScheduler(store, runner, now.Add(-time.Hour))
	require.NoError(t, s.Load(context.Background()))

	_, err := s.Tick(context.Background(), now)
	require.NoError(t, err)
	_, err = s.Tick(context.Background(), now.Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, 1, runner.count())
}

func TestTickIsNotReentrant(t *testing.T) {
	store := newFakeStore(enabled("a", daily("09:00")))
	runner := &fakeRunner{block: make(chan struct{})}
	s := newTestScheduler(store, runner, t0)
	require.NoError(t, s.Load(context.Background()))

	slot := utc(2024, 6, 3, 9, 0, 0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Tick(context.Background(), slot)
	}()

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return len(snap) == 1 && snap[0].Running
	}, time.Second, time.Millisecond)
	_, err := s.Tick(context.Background(), slot.Add(time.Second))
	assert.ErrorIs(t, err, ErrTickInProgress)

	close(runner.block)
	<-done
	assert.Equal(t, 1, runner.count())
}

func TestTickFailureStillReschedules(t *testing.T) {
	for _, tc := range []struct {
		name   string
		runner *fakeRunner
	}{
		{"error", &fakeRunner{err: errors.New("smtp down")}},
		{"panic", &fakeRunner{panic: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore(enabled("a", daily("09:00")))
			s := newTestScheduler(store, tc.runner, t0)
			require.NoError(t, s.Load(context.Background()))

			slot := utc(2024, 6, 3, 9, 0, 0)
			res, err := s.Tick(context.Background(), slot)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Failed)

			e := entryByID(t, s, "a")
			assert.Equal(t, utc(2024, 6, 4, 9, 0, 0), e.NextRunAt)
			assert.Nil(t, e.LastRunAt)
			assert.False(t, e.Running)

			last := store.schedules[len(store.schedules)-1]
			assert.Nil(t, last.last)
			assert.Equal(t, utc(2024, 6, 4, 9, 0, 0), *last.next)
		})
	}
}

func TestRunNowLeavesScheduleAlone(t *testing.T) {
	store := newFakeStore(enabled("a", daily("09:00")))
	runner := &fakeRunner{}
	s := newTestScheduler(store, runner, t0)
	require.NoError(t, s.Load(context.Background()))
	writes := len(store.schedules)

	res, err := s.RunNow(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, res.Sent)

	e := entryByID(t, s, "a")
	assert.Equal(t, utc(2024, 6, 3, 9, 0, 0), e.NextRunAt)
	require.NotNil(t, e.LastRunAt)
	assert.Equal(t, t0, *e.LastRunAt)
	assert.Equal(t, t0, store.lastRuns["a"])
	assert.Len(t, store.schedules, writes)

	_, err = s.Tick(context.Background(), utc(2024, 6, 3, 9, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, runner.count())
}

func TestRunNowDisabledAndMissing(t *testing.T) {
	off := daily("09:00")
	off.ID = "off"
	store := newFakeStore(off)
	runner := &fakeRunner{}
	s := newTestScheduler(store, runner, t0)

	_, err := s.RunNow(context.Background(), "off")
	require.NoError(t, err)
	assert.Equal(t, 1, runner.count())

	_, err = s.RunNow(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAutomationNotFound)
}

func TestRunNowFailureRecordsNothing(t *testing.T) {
	store := newFakeStore(enabled("a", daily("09:00")))
	s := newTestScheduler(store, &fakeRunner{panic: true}, t0)

	_, err := s.RunNow(context.Background(), "a")
	assert.Error(t, err)
	assert.Empty(t, store.lastRuns)
}
