package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dx-community/modmail/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Transcripts *handlers.TranscriptsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/transcripts/:user_id", cfg.Transcripts.View)
}
