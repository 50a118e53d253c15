package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/chat"
	"github.com/spec-kit/support-desk/pkg/util"
)

// ChatHandler exposes the live chat boundary.
type ChatHandler struct {
	manager *chat.Manager
}

// NewChatHandler constructs handler.
func NewChatHandler(manager *chat.Manager) *ChatHandler {
	return &ChatHandler{manager: manager}
}

// Thread GET /chat/:userId/messages.
func (h *ChatHandler) Thread(c *fiber.Ctx) error {
	messages, err := h.manager.Thread(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	items := make([]dto.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		items = append(items, dto.MessageResponse{
			Sender: msg.Sender,
			Text:   msg.Text,
			Time:   msg.Time,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Send POST /chat/:userId/messages — an admin reply into the thread.
func (h *ChatHandler) Send(c *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if err := h.manager.SendAdminMessage(c.UserContext(), c.Params("userId"), req.Text); err != nil {
		return err
	}
	return c.SendStatus(http.StatusCreated)
}

// Inbound POST /chat/:userId/inbound — a user turn, classified on arrival.
func (h *ChatHandler) Inbound(c *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	intent, ticketID, err := h.manager.HandleInbound(c.UserContext(), c.Params("userId"), req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.InboundResponse{
		Category: intent.Category,
		Response: intent.Response,
		TicketID: ticketID,
	}})
}
