package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/deskops/helpdesk-engine/internal/compliance"
)

// Scanner runs one compliance pass.
type Scanner interface {
	Scan(ctx context.Context) (compliance.ScanResult, error)
}

// ComplianceWorker scans open tickets on a fixed interval.
type ComplianceWorker struct {
	scanner    Scanner
	interval   time.Duration
	runOnStart bool
	logger     *zap.Logger
}

func NewComplianceWorker(scanner Scanner, interval time.Duration, runOnStart bool, logger *zap.Logger) *ComplianceWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplianceWorker{scanner: scanner, interval: interval, runOnStart: runOnStart, logger: logger}
}

func (w *ComplianceWorker) Name() string { return "sla-compliance" }

func (w *ComplianceWorker) Run(ctx context.Context) {
	if w.runOnStart {
		w.scan(ctx)
	}
	tickEvery(ctx, w.interval, func(time.Time) { w.scan(ctx) })
}

func (w *ComplianceWorker) scan(ctx context.Context) {
	var res compliance.ScanResult
	err := guard(w.logger, w.Name(), func() error {
		var err error
		res, err = w.scanner.Scan(ctx)
		return err
	})
	switch {
	case errors.Is(err, compliance.ErrScanInProgress):
		w.logger.Info("sla scan skipped, previous scan still running")
	case err != nil:
		w.logger.Error("sla scan failed", zap.Error(err))
	default:
		w.logger.Info("sla scan finished",
			zap.Int("checked", res.Checked),
			zap.Int("breaches", res.Breaches),
			zap.Int("warnings", res.Warnings),
			zap.Int("auto_assigned", res.AutoAssigned),
		)
	}
}
