package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/registry"
	"github.com/spec-kit/support-desk/pkg/util"
)

// TicketsHandler exposes the admin ticket-list boundary.
type TicketsHandler struct {
	registry *registry.Registry
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(reg *registry.Registry) *TicketsHandler {
	return &TicketsHandler{registry: reg}
}

// List GET /tickets?status=&priority=&user_id=.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	filter := registry.Filter{
		Status:   c.Query("status", registry.FilterAll),
		Priority: c.Query("priority", registry.FilterAll),
		UserID:   c.Query("user_id", registry.FilterAll),
	}
	tickets := h.registry.List(filter)
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, h.ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, ok := h.registry.Get(c.Params("id"))
	if !ok {
		return util.NewNotFound("ticket", map[string]any{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(&ticket)})
}

// Select POST /tickets/:id/select.
func (h *TicketsHandler) Select(c *fiber.Ctx) error {
	if err := h.registry.Select(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// SetStatus POST /tickets/:id/status.
func (h *TicketsHandler) SetStatus(c *fiber.Ctx) error {
	var req dto.SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if err := h.registry.SetStatus(c.UserContext(), c.Params("id"), req.Status); err != nil {
		return err
	}
	ticket, _ := h.registry.Get(c.Params("id"))
	return c.JSON(fiber.Map{"data": h.ticketResponse(&ticket)})
}

// Reply POST /tickets/:id/reply.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if err := h.registry.AppendReply(c.UserContext(), c.Params("id"), req.Text); err != nil {
		return err
	}
	ticket, _ := h.registry.Get(c.Params("id"))
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.ticketResponse(&ticket)})
}

func (h *TicketsHandler) ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	messages := make([]dto.MessageResponse, 0, len(ticket.Messages))
	for _, msg := range ticket.Messages {
		messages = append(messages, dto.MessageResponse{
			Sender: msg.Sender,
			Text:   msg.Text,
			Time:   msg.Time,
		})
	}
	resp := dto.TicketResponse{
		ID:       ticket.ID,
		UserID:   ticket.UserID,
		User:     h.registry.ResolveDisplayName(ticket.UserID),
		Title:    ticket.Title,
		Category: ticket.Category,
		Priority: ticket.Priority,
		Status:   ticket.Status,
		Messages: messages,
	}
	if !ticket.CreatedAt.IsZero() {
		createdAt := ticket.CreatedAt
		resp.CreatedAt = &createdAt
	}
	return resp
}
