package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk-engine/internal/api/dto"
	"github.com/deskops/helpdesk-engine/internal/service"
	apperrors "github.com/deskops/helpdesk-engine/pkg/util/errorutil"
)

// SLAHandler exposes deadline state and manual scans.
type SLAHandler struct {
	service *service.SLAService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(slaService *service.SLAService) *SLAHandler {
	return &SLAHandler{service: slaService}
}

// Scan POST /admin/sla/scan.
func (h *SLAHandler) Scan(c *fiber.Ctx) error {
	started := time.Now()
	res, err := h.service.RunScan(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewScanResponse(res, time.Since(started))})
}

// GetTicketSLA GET /admin/tickets/:id/sla.
func (h *SLAHandler) GetTicketSLA(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	view, err := h.service.GetTicketSLA(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// ApplyPolicy POST /admin/tickets/:id/sla/apply.
func (h *SLAHandler) ApplyPolicy(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	view, err := h.service.ApplyPolicy(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

func ticketID(c *fiber.Ctx) (string, error) {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return "", apperrors.NewValidationError("ticket id required", nil)
	}
	return id, nil
}
