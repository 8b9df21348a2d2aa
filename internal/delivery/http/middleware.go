package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/schoolroute/backend/internal/logging"
)

// RequestLogger stores a logger tagged with the request method and path in
// the request's user context, where services pick it up via logging.FromContext
func RequestLogger(logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx) error {
		reqLogger := logger.With(
			slog.String("method", c.Method()),
			slog.String("path", c.Path()))
		c.SetUserContext(logging.WithLogger(c.UserContext(), reqLogger))
		return c.Next()
	}
}
