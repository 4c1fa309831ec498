package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-portal/internal/api/dto"
	"github.com/spec-kit/repair-portal/internal/service"
	apperrors "github.com/spec-kit/repair-portal/pkg/util"
)

// StaffTicketsHandler handles staff-only ticket operations.
type StaffTicketsHandler struct {
	tickets *service.TicketService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(ticketService *service.TicketService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: ticketService}
}

// AssignTechnician PUT /staff/tickets/:id/technician.
func (h *StaffTicketsHandler) AssignTechnician(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignTechnicianRequest
	if err := c.BodyParser(&req); err != nil || req.TechnicianID == "" {
		return apperrors.NewValidationError("technician_id required", map[string]any{"fields": []string{"technician_id"}})
	}
	ticket, err := h.tickets.AssignTechnician(c.UserContext(), actor, c.Params("id"), req.TechnicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// Escalate POST /staff/tickets/:id/escalate.
func (h *StaffTicketsHandler) Escalate(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.EscalateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.tickets.Escalate(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// TechnicianWorkloads GET /staff/technicians/workload.
func (h *StaffTicketsHandler) TechnicianWorkloads(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	workloads, err := h.tickets.TechnicianWorkloads(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianWorkloadResponse, 0, len(workloads))
	for i := range workloads {
		items = append(items, dto.TechnicianWorkloadResponse{
			Technician:    dto.NewUserResponse(&workloads[i].Technician),
			ActiveTickets: workloads[i].ActiveTickets,
			Capacity:      workloads[i].Capacity,
			Available:     workloads[i].ActiveTickets < workloads[i].Capacity,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
