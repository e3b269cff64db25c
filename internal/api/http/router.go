package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/deskops/helpdesk-engine/internal/api/http/handlers"
	"github.com/deskops/helpdesk-engine/internal/auth"
	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	SLA            *handlers.SLAHandler
	Automations    *handlers.AutomationsHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireStaffRole(domain.StaffRoleAdmin))

	admin.Post("/sla/scan", cfg.SLA.Scan)
	admin.Get("/tickets/:id/sla", cfg.SLA.GetTicketSLA)
	admin.Post("/tickets/:id/sla/apply", cfg.SLA.ApplyPolicy)

	admin.Get("/automations/schedule", cfg.Automations.Schedule)
	admin.Post("/automations/reload", cfg.Automations.Reload)
	admin.Post("/automations/:id/run", cfg.Automations.Run)
}
