// Package notify delivers rendered messages to people through one or more
// outbound transports.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/deskops/helpdesk-engine/internal/observability"
)

// Message is one notification addressed to a set of email recipients. Body is HTML.
type Message struct {
	Recipients []string
	Subject    string
	Body       string
	TicketID   string
}

// Sink delivers a message. Implementations do not retry.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("notify: no recipients")

// Named pairs a sink with the label used in logs and metrics.
type Named struct {
	Name string
	Sink Sink
}

// MultiSink fans a message out to every sink and joins their errors.
type MultiSink struct {
	sinks []Named
}

// NewMultiSink builds a fan-out sink.
func NewMultiSink(sinks ...Named) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Deliver tries every sink even when an earlier one fails.
func (m *MultiSink) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Deliver(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Len reports how many sinks are configured.
func (m *MultiSink) Len() int { return len(m.sinks) }

// LogSink only logs messages. It is the fallback when no transport is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Deliver(_ context.Context, msg Message) error {
	l.logger.Info("notification",
		zap.Strings("recipients", msg.Recipients),
		zap.String("subject", msg.Subject),
		zap.String("ticket_id", msg.TicketID),
		zap.Int("body_bytes", len(msg.Body)))
	return nil
}

type instrumented struct {
	name    string
	next    Sink
	metrics *observability.Metrics
}

// Instrument counts deliveries of next under name.
func Instrument(name string, next Sink, metrics *observability.Metrics) Sink {
	return &instrumented{name: name, next: next, metrics: metrics}
}

func (i *instrumented) Deliver(ctx context.Context, msg Message) error {
	err := i.next.Deliver(ctx, msg)
	i.metrics.RecordNotification(i.name, err)
	return err
}

// ErrThrottled is returned when a delivery would wait longer than allowed
// for the rate limiter.
var ErrThrottled = errors.New("notify: rate limit exceeded")

type throttled struct {
	limiter *rate.Limiter
	maxWait time.Duration
	next    Sink
}

// Throttle waits on limiter before each delivery, for at most maxWait. A
// delivery that cannot get a token in time fails with ErrThrottled without
// consuming one. A nil limiter disables throttling; maxWait <= 0 waits as
// long as ctx allows.
func Throttle(next Sink, limiter *rate.Limiter, maxWait time.Duration) Sink {
	if limiter == nil {
		return next
	}
	return &throttled{limiter: limiter, maxWait: maxWait, next: next}
}

func (t *throttled) Deliver(ctx context.Context, msg Message) error {
	wctx := ctx
	if t.maxWait > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, t.maxWait)
		defer cancel()
	}
	if err := t.limiter.Wait(wctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("notify: rate limit wait: %w", ctx.Err())
		}
		return fmt.Errorf("%w: %v", ErrThrottled, err)
	}
	return t.next.Deliver(ctx, msg)
}

// Dedupe trims, lowercases and removes duplicate or empty addresses, keeping first-seen order.
func Dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
