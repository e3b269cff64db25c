package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk-engine/internal/api/dto"
	"github.com/deskops/helpdesk-engine/internal/service"
)

// AutomationsHandler exposes the report scheduler to operators.
type AutomationsHandler struct {
	service *service.AutomationService
}

// NewAutomationsHandler constructs handler.
func NewAutomationsHandler(automationService *service.AutomationService) *AutomationsHandler {
	return &AutomationsHandler{service: automationService}
}

// Schedule GET /admin/automations/schedule.
func (h *AutomationsHandler) Schedule(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.ScheduleEntries(h.service.Schedule())})
}

// Reload POST /admin/automations/reload.
func (h *AutomationsHandler) Reload(c *fiber.Ctx) error {
	entries, err := h.service.Reload(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ScheduleEntries(entries)})
}

// Run POST /admin/automations/:id/run.
func (h *AutomationsHandler) Run(c *fiber.Ctx) error {
	id := c.Params("id")
	res, err := h.service.RunNow(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAutomationRunResponse(id, res)})
}
