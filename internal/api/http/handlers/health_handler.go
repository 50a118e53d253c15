package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/registry"
)

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	registry    *registry.Registry
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, reg *registry.Registry) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, registry: reg}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports readiness. A stale projection means a change feed failed to
// attach: the service is up but serving a stalled view, so readiness fails
// loudly instead of the projection looking silently empty.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if h.registry.Stale() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "PROJECTION_STALE",
				"message": "one or more change feeds are not attached",
			},
		})
	}
	if _, _, err := h.registry.Counts(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "store unavailable",
			},
		})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
