package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk-engine/internal/api/http/handlers"
	"github.com/deskops/helpdesk-engine/internal/auth"
	"github.com/deskops/helpdesk-engine/internal/compliance"
	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/observability"
	"github.com/deskops/helpdesk-engine/internal/report"
	"github.com/deskops/helpdesk-engine/internal/schedule"
	"github.com/deskops/helpdesk-engine/internal/service"
	"github.com/deskops/helpdesk-engine/internal/sla"
)

type staffByID map[string]domain.StaffMember

func (s staffByID) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	m, ok := s[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &m, nil
}

type ticketsByID map[string]domain.Ticket

func (t ticketsByID) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	tk, ok := t[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &tk, nil
}

func (t ticketsByID) UpdateDueDates(_ context.Context, id string, responseDueAt, resolutionDueAt *time.Time) error {
	tk, ok := t[id]
	if !ok {
		return pgx.ErrNoRows
	}
	tk.Response.DueAt = responseDueAt
	tk.Resolution.DueAt = resolutionDueAt
	t[id] = tk
	return nil
}

type defaultTargets struct{}

func (defaultTargets) Resolve(_ context.Context, p domain.TicketPriority, _ *string) (sla.Targets, sla.Source) {
	return sla.DefaultTargets[sla.NormalizePriority(p)], sla.SourceDefault
}

type scanStub struct{ err error }

func (s scanStub) Scan(context.Context) (compliance.ScanResult, error) {
	return compliance.ScanResult{Checked: 2, Breaches: 1}, s.err
}

type schedulerStub struct{}

func (schedulerStub) Load(context.Context) error { return nil }

func (schedulerStub) RunNow(_ context.Context, id string) (report.ExecutionResult, error) {
	if id != "a1" {
		return report.ExecutionResult{}, schedule.ErrAutomationNotFound
	}
	return report.ExecutionResult{Sent: true, Recipients: []string{"ops@desk.local"}, Tickets: 4}, nil
}

func (schedulerStub) Snapshot() []schedule.Entry {
	return []schedule.Entry{{ID: "a1", Name: "Morning list", Type: domain.AutomationDailyOpenTickets, NextRunAt: time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)}}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, scanErr error, redisErr error) *testServer {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	staff := staffByID{
		"admin-1": {ID: "admin-1", Role: domain.StaffRoleAdmin, Active: true},
		"tech-1":  {ID: "tech-1", Role: domain.StaffRoleTechnician, Active: true},
		"gone-1":  {ID: "gone-1", Role: domain.StaffRoleAdmin, Active: false},
	}
	created := time.Now().Add(-30 * time.Minute)
	tickets := ticketsByID{"t1": {ID: "t1", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityUrgent, CreatedAt: created}}

	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("helpdesk-engine", "test", map[string]handlers.Pinger{
			"postgres": pingFunc(func(context.Context) error { return nil }),
			"redis":    pingFunc(func(context.Context) error { return redisErr }),
		}),
		SLA: handlers.NewSLAHandler(service.NewSLAService(service.SLADependencies{
			TicketRepo: tickets,
			Policies:   defaultTargets{},
			Scanner:    scanStub{err: scanErr},
		})),
		Automations:    handlers.NewAutomationsHandler(service.NewAutomationService(schedulerStub{})),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens, staff),
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, staffID string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if staffID != "" {
		role := domain.StaffRoleAdmin
		token, _, err := s.tokens.GenerateToken(staffID, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, nil)
	status, body := s.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	s = newTestServer(t, nil, errors.New("dial tcp: refused"))
	status, body = s.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t, nil, nil)

	status, body := s.do(t, http.MethodPost, "/admin/sla/scan", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	// The stored role wins over the claim.
	status, body = s.do(t, http.MethodPost, "/admin/sla/scan", "tech-1")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, _ = s.do(t, http.MethodPost, "/admin/sla/scan", "gone-1")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPost, "/admin/sla/scan", "nobody")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestScanEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)
	status, body := s.do(t, http.MethodPost, "/admin/sla/scan", "admin-1")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 2, data["checked"])
	assert.EqualValues(t, 1, data["breaches"])

	s = newTestServer(t, compliance.ErrScanInProgress, nil)
	status, body = s.do(t, http.MethodPost, "/admin/sla/scan", "admin-1")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))
}

func TestTicketSLAEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)

	status, body := s.do(t, http.MethodGet, "/admin/tickets/t1/sla", "admin-1")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "t1", data["ticket_id"])
	assert.Nil(t, data["response"].(map[string]any)["due_at"])

	status, body = s.do(t, http.MethodPost, "/admin/tickets/t1/sla/apply", "admin-1")
	require.Equal(t, http.StatusOK, status)
	data = body["data"].(map[string]any)
	assert.Equal(t, "default", data["policy_source"])
	response := data["response"].(map[string]any)
	assert.NotNil(t, response["due_at"])
	assert.Equal(t, "pending", response["state"])

	status, body = s.do(t, http.MethodGet, "/admin/tickets/missing/sla", "admin-1")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestAutomationEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)

	status, body := s.do(t, http.MethodGet, "/admin/automations/schedule", "admin-1")
	require.Equal(t, http.StatusOK, status)
	entries := body["data"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "daily-open-tickets", entries[0].(map[string]any)["type"])

	status, _ = s.do(t, http.MethodPost, "/admin/automations/reload", "admin-1")
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/admin/automations/a1/run", "admin-1")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["sent"])
	assert.EqualValues(t, 4, data["tickets"])

	status, body = s.do(t, http.MethodPost, "/admin/automations/zz/run", "admin-1")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestUnknownRouteIs404(t *testing.T) {
	s := newTestServer(t, nil, nil)
	status, body := s.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)
	s.do(t, http.MethodGet, "/health/live", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
}
