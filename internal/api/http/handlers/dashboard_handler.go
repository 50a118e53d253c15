package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/analytics"
	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/registry"
)

// DashboardHandler exposes collection counts, derived stats, and the user
// directory for the admin console.
type DashboardHandler struct {
	registry *registry.Registry
	engine   *analytics.Engine
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(reg *registry.Registry, engine *analytics.Engine) *DashboardHandler {
	return &DashboardHandler{registry: reg, engine: engine}
}

// Counts GET /dashboard/counts — on-demand tally of the two collections.
func (h *DashboardHandler) Counts(c *fiber.Ctx) error {
	users, tickets, err := h.registry.Counts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CountsResponse{Users: users, Tickets: tickets}})
}

// Stats GET /dashboard/stats — the aggregation engine's latest recompute.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.engine.Stats()})
}

// Users GET /dashboard/users — end-users only, for the chat directory.
func (h *DashboardHandler) Users(c *fiber.Ctx) error {
	users := h.registry.Users(true)
	items := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.UserResponse{
			ID:          user.ID,
			Email:       user.Email,
			Username:    user.Username,
			DisplayName: user.DisplayName(),
			Role:        user.Role,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
