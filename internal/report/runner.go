package report

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/notify"
	"github.com/deskops/helpdesk-engine/internal/observability"
)

// RecipientResolver expands an automation's recipient groups.
type RecipientResolver interface {
	ForAutomation(ctx context.Context, a domain.Automation) ([]string, error)
}

// ExecutionResult describes one automation run.
type ExecutionResult struct {
	Sent       bool     `json:"sent"`
	Recipients []string `json:"recipients"`
	Tickets    int      `json:"tickets"`
	Message    string   `json:"message,omitempty"`
}

// Runner generates an automation's report and delivers it.
type Runner struct {
	generators map[domain.AutomationType]Generator
	recipients RecipientResolver
	sink       notify.Sink
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithRunnerClock overrides the clock used for report periods.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithRunnerMetrics records run outcomes.
func WithRunnerMetrics(m *observability.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func NewRunner(generators map[domain.AutomationType]Generator, recipients RecipientResolver, sink notify.Sink, logger *zap.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		generators: generators,
		recipients: recipients,
		sink:       sink,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the automation once. An automation with nobody to send to is
// not an error; the result reports Sent=false.
func (r *Runner) Run(ctx context.Context, a domain.Automation) (ExecutionResult, error) {
	res, err := r.run(ctx, a)
	r.metrics.RecordAutomationRun(string(a.Type), err)
	return res, err
}

func (r *Runner) run(ctx context.Context, a domain.Automation) (ExecutionResult, error) {
	gen, ok := r.generators[a.Type]
	if !ok {
		return ExecutionResult{}, fmt.Errorf("%w: %q", ErrUnknownType, a.Type)
	}

	to, err := r.recipients.ForAutomation(ctx, a)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("resolve recipients: %w", err)
	}
	if len(to) == 0 {
		r.logger.Info("automation has no recipients",
			zap.String("automation_id", a.ID),
			zap.String("type", string(a.Type)),
		)
		return ExecutionResult{Sent: false, Message: "No recipients found"}, nil
	}

	rep, err := gen.Generate(ctx, Request{Automation: a, Now: r.now()})
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("generate %s: %w", a.Type, err)
	}

	msg := notify.Message{Recipients: to, Subject: rep.Subject, Body: rep.HTML}
	if err := r.sink.Deliver(ctx, msg); err != nil {
		return ExecutionResult{Recipients: to, Tickets: rep.Tickets}, fmt.Errorf("deliver %s: %w", a.Type, err)
	}

	r.logger.Info("automation report sent",
		zap.String("automation_id", a.ID),
		zap.String("type", string(a.Type)),
		zap.Int("recipients", len(to)),
		zap.Int("tickets", rep.Tickets),
	)
	return ExecutionResult{
		Sent:       true,
		Recipients: to,
		Tickets:    rep.Tickets,
		Message:    fmt.Sprintf("Report sent to %d recipient(s)", len(to)),
	}, nil
}
