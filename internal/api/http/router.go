package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/studentlink/concern-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Concerns    *handlers.ConcernsHandler
	Departments *handlers.DepartmentsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1")

	api.Post("/concerns", cfg.Concerns.Submit)
	api.Get("/concerns", cfg.Concerns.List)
	api.Get("/concerns/:id", cfg.Concerns.Get)
	api.Patch("/concerns/:id/status", cfg.Concerns.UpdateStatus)
	api.Post("/concerns/:id/assign", cfg.Concerns.Assign)

	api.Get("/departments/utilization", cfg.Departments.Utilization)
	api.Post("/departments/rebalance", cfg.Departments.Rebalance)

	api.Post("/sweeps/run", cfg.Departments.RunSweep)
}
