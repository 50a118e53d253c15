package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Chat           *handlers.ChatHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. The admin surface sits behind the role
// claim; the claim is routing, not policy enforcement.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	authed := app.Group("", cfg.AuthMiddleware.Handle)

	// Inbound chat turns come from the end-user side of the conversation.
	authed.Post("/chat/:userId/inbound", cfg.Chat.Inbound)

	admin := authed.Group("", auth.RequireAdmin())
	admin.Get("/dashboard/counts", cfg.Dashboard.Counts)
	admin.Get("/dashboard/stats", cfg.Dashboard.Stats)
	admin.Get("/dashboard/users", cfg.Dashboard.Users)

	admin.Get("/tickets", cfg.Tickets.List)
	admin.Get("/tickets/:id", cfg.Tickets.Get)
	admin.Post("/tickets/:id/select", cfg.Tickets.Select)
	admin.Post("/tickets/:id/status", cfg.Tickets.SetStatus)
	admin.Post("/tickets/:id/reply", cfg.Tickets.Reply)

	admin.Get("/chat/:userId/messages", cfg.Chat.Thread)
	admin.Post("/chat/:userId/messages", cfg.Chat.Send)
}
