package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service's Prometheus collectors. All methods are safe on a
// nil receiver so components can run without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpErrors        *prometheus.CounterVec
	slaScans          *prometheus.CounterVec
	slaScanDuration   prometheus.Histogram
	slaBreaches       *prometheus.CounterVec
	slaWarnings       *prometheus.CounterVec
	slaAutoAssigned   prometheus.Counter
	slaWriteFailures  prometheus.Counter
	automationRuns    *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
}

// NewMetrics registers every collector on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		slaScans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_scans_total",
			Help: "Compliance scans by result.",
		}, []string{"result"}),
		slaScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sla_scan_duration_seconds",
			Help:    "Duration of a full compliance scan.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		slaBreaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_breaches_total",
			Help: "Deadlines marked breached, by kind.",
		}, []string{"kind"}),
		slaWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_warnings_total",
			Help: "Near-breach warnings emitted, by kind.",
		}, []string{"kind"}),
		slaAutoAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sla_auto_assigned_total",
			Help: "Overdue unassigned tickets assigned to their department head.",
		}),
		slaWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sla_store_write_failures_total",
			Help: "Ticket SLA state writes that failed and will be retried next scan.",
		}),
		automationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automation_runs_total",
			Help: "Automation executions by type and result.",
		}, []string{"type", "result"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outbound deliveries by sink and result.",
		}, []string{"sink", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.httpErrors,
		m.slaScans, m.slaScanDuration, m.slaBreaches, m.slaWarnings, m.slaAutoAssigned, m.slaWriteFailures,
		m.automationRuns, m.notificationsSent,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(route, method, code).Inc()
}

// RecordScan records one compliance scan.
func (m *Metrics) RecordScan(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.slaScans.WithLabelValues(resultLabel(err)).Inc()
	m.slaScanDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordBreach(kind string) {
	if m == nil {
		return
	}
	m.slaBreaches.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordWarning(kind string) {
	if m == nil {
		return
	}
	m.slaWarnings.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordAutoAssigned() {
	if m == nil {
		return
	}
	m.slaAutoAssigned.Inc()
}

func (m *Metrics) RecordStoreWriteFailure() {
	if m == nil {
		return
	}
	m.slaWriteFailures.Inc()
}

// RecordAutomationRun records one scheduled or manual execution.
func (m *Metrics) RecordAutomationRun(automationType string, err error) {
	if m == nil {
		return
	}
	m.automationRuns.WithLabelValues(automationType, resultLabel(err)).Inc()
}

// RecordNotification records one delivery attempt on a sink.
func (m *Metrics) RecordNotification(sink string, err error) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(sink, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
