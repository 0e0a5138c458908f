package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Requests       *handlers.RequestsHandler
	Technician     *handlers.TechnicianRequestsHandler
	Admin          *handlers.AdminRequestsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	requests := app.Group("/requests", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	requests.Post("", cfg.Requests.Create)
	requests.Get("", cfg.Requests.List)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Post("/:id/cancel", cfg.Requests.Cancel)
	requests.Post("/:id/rating", cfg.Requests.Rate)

	technician := app.Group("/technician/requests",
		cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.RoleTechnician, domain.RoleAdmin))
	technician.Get("", cfg.Technician.List)
	technician.Post("/:id/claim", cfg.Technician.Claim)
	technician.Post("/:id/release", cfg.Technician.Release)
	technician.Post("/:id/start", cfg.Technician.Start)
	technician.Post("/:id/complete", cfg.Technician.Complete)
	technician.Post("/:id/schedule", cfg.Technician.Schedule)

	admin := app.Group("/admin/requests",
		cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.RoleAdmin))
	admin.Get("", cfg.Admin.List)
	admin.Post("/:id/assign", cfg.Admin.Assign)
	admin.Post("/:id/priority", cfg.Admin.SetPriority)
	admin.Post("/:id/status", cfg.Admin.SetStatus)
	admin.Post("/:id/cancel", cfg.Admin.Cancel)
}
