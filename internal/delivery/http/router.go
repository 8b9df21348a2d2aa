package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, handler *Handler, metrics http.Handler) {
	app.Use(RequestLogger(handler.logger))

	// Health check
	app.Get("/health", handler.HealthCheck)

	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}

	// Same-origin proxy used by the map page
	app.Post("/calculate-route", handler.ProxyCalculateRoute)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		api.Get("/schools", handler.ListSchools)
		api.Get("/schools/nearby", handler.NearbySchools)

		api.Post("/routes", handler.CalculateRoute)

		api.Get("/playback", handler.GetPlayback)
		api.Post("/playback/advance", handler.AdvancePlayback)
		api.Post("/playback/rewind", handler.RewindPlayback)
		api.Post("/playback/reset", handler.ResetPlayback)
	}
}
