package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/repair-portal/internal/api/http/handlers"
	"github.com/spec-kit/repair-portal/internal/auth"
	"github.com/spec-kit/repair-portal/internal/domain"
	"github.com/spec-kit/repair-portal/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/allowed-statuses", cfg.Tickets.AllowedStatuses)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/feedback", auth.RequireRoles(domain.RoleCustomer), cfg.Tickets.SubmitFeedback)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	staff.Put("/tickets/:id/technician", cfg.StaffTickets.AssignTechnician)
	staff.Post("/tickets/:id/escalate", cfg.StaffTickets.Escalate)
	staff.Get("/technicians/workload", cfg.StaffTickets.TechnicianWorkloads)
	staff.Post("/users", auth.RequireRoles(domain.RoleAdmin, domain.RoleManager), cfg.Users.CreateStaff)
}
