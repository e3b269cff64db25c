package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers the liveness and readiness probes of the engine.
type HealthHandler struct {
	serviceName string
	version     string
	deps        map[string]Pinger
	startedAt   time.Time
}

// NewHealthHandler returns a new handler instance. deps maps a dependency
// name to its readiness check.
func NewHealthHandler(serviceName, version string, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, deps: deps, startedAt: time.Now()}
}

type dependencyStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "alive",
		"service":        h.serviceName,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Ready pings every dependency concurrently and fails when any is down.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]dependencyStatus, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			statuses[i] = probe(ctx, name, h.deps[name])
			return nil
		})
	}
	_ = g.Wait()

	ready := true
	for _, st := range statuses {
		if st.Status != "ok" {
			ready = false
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": statuses,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": statuses,
		},
	})
}

func probe(ctx context.Context, name string, dep Pinger) dependencyStatus {
	start := time.Now()
	err := dep.Ping(ctx)
	st := dependencyStatus{Name: name, Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		st.Status = "unavailable"
		st.Error = err.Error()
	}
	return st
}
