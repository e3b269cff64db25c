// Package worker runs the background loops of the service.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Worker is a long-running loop that returns when ctx is cancelled.
type Worker interface {
	Name() string
	Run(ctx context.Context)
}

// Manager starts workers and waits for them on Stop.
type Manager struct {
	logger *zap.Logger
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// Start launches every worker in its own goroutine.
func (m *Manager) Start(ctx context.Context, workers ...Worker) {
	ctx, m.cancel = context.WithCancel(ctx)
	for _, w := range workers {
		m.wg.Add(1)
		go func(w Worker) {
			defer m.wg.Done()
			m.logger.Info("worker started", zap.String("worker", w.Name()))
			w.Run(ctx)
			m.logger.Info("worker stopped", zap.String("worker", w.Name()))
		}(w)
	}
}

// Stop cancels the workers and blocks until they return.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// guard runs fn and logs a panic instead of letting it kill the loop.
func guard(logger *zap.Logger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
			logger.Error("worker job panicked", zap.String("job", name), zap.Any("panic", r))
		}
	}()
	return fn()
}

// tickEvery calls fn on every tick of interval until ctx is done. Ticks that
// arrive while fn is still running are dropped by the ticker.
func tickEvery(ctx context.Context, interval time.Duration, fn func(now time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(now)
		}
	}
}
