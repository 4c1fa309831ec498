package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-portal/internal/api/dto"
	"github.com/spec-kit/repair-portal/internal/auth"
	"github.com/spec-kit/repair-portal/internal/domain"
	"github.com/spec-kit/repair-portal/internal/service"
	apperrors "github.com/spec-kit/repair-portal/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle to customers and staff.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	purchaseDate, err := parsePurchaseDate(req.PurchaseDate)
	if err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		CustomerID:       req.CustomerID,
		ServiceType:      req.ServiceType,
		SerialNumber:     req.SerialNumber,
		Model:            req.Model,
		DeviceType:       req.DeviceType,
		PurchaseDate:     purchaseDate,
		IssueDescription: req.IssueDescription,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), actor, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// AllowedStatuses GET /tickets/:id/allowed-statuses.
func (h *TicketsHandler) AllowedStatuses(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	allowed := service.AllowedNextStatuses(ticket.Status, actor.Role)
	return c.JSON(fiber.Map{"data": dto.AllowedStatusesResponse{Current: ticket.Status, Allowed: allowed}})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), actor, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.AddComment(c.UserContext(), actor, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// SubmitFeedback POST /tickets/:id/feedback.
func (h *TicketsHandler) SubmitFeedback(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.SubmitFeedback(c.UserContext(), actor, c.Params("id"), service.FeedbackInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

func parsePurchaseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dto.PurchaseDateLayout, raw)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("purchase_date must be YYYY-MM-DD", map[string]any{"fields": []string{"purchase_date"}})
	}
	return parsed, nil
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Statuses = append(filter.Statuses, domain.TicketStatus(part))
			}
		}
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	return filter
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:                   ticket.ID,
		DisplayID:            ticket.DisplayID,
		ServiceType:          ticket.ServiceType,
		Status:               ticket.Status,
		WarrantyStatus:       ticket.WarrantyStatus,
		DeviceType:           ticket.Product.DeviceType,
		AssignedTechnicianID: ticket.AssignedTechnicianID,
		Escalated:            ticket.Escalated,
		CreatedAt:            ticket.CreatedAt,
		UpdatedAt:            ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	resp := dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		CustomerID:    ticket.CustomerID,
		Product: dto.ProductResponse{
			SerialNumber: ticket.Product.SerialNumber,
			Model:        ticket.Product.Model,
			PurchaseDate: ticket.Product.PurchaseDate.Format(dto.PurchaseDateLayout),
			DeviceType:   ticket.Product.DeviceType,
		},
		IssueDescription:  ticket.IssueDescription,
		ResolutionOptions: ticket.ResolutionOptions,
		History:           make([]dto.HistoryResponse, 0, len(ticket.History)),
		Comments:          make([]dto.CommentResponse, 0, len(ticket.Comments)),
		Version:           ticket.Version,
	}
	for _, entry := range ticket.History {
		resp.History = append(resp.History, dto.HistoryResponse{
			Action:     entry.Action,
			ActorID:    entry.ActorID,
			ActorRole:  entry.ActorRole,
			Timestamp:  entry.Timestamp,
			Notes:      entry.Notes,
			FromStatus: entry.FromStatus,
			ToStatus:   entry.ToStatus,
		})
	}
	for _, comment := range ticket.Comments {
		resp.Comments = append(resp.Comments, dto.CommentResponse{
			AuthorID:   comment.AuthorID,
			AuthorRole: comment.AuthorRole,
			Body:       comment.Body,
			CreatedAt:  comment.CreatedAt,
		})
	}
	if ticket.Feedback != nil {
		resp.Feedback = &dto.FeedbackResponse{
			Rating:      ticket.Feedback.Rating,
			Comment:     ticket.Feedback.Comment,
			SubmittedAt: ticket.Feedback.SubmittedAt,
		}
	}
	return resp
}
