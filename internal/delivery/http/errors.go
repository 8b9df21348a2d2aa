package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/schoolroute/backend/internal/domain"
)

// StatusFor maps an error to the HTTP status reported to the browser
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	var rateErr *domain.RateLimitError
	var providerErr *domain.ProviderRequestError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, domain.ErrMissingHome),
		errors.Is(err, domain.ErrInsufficientStops),
		errors.Is(err, domain.ErrInvalidCoordinate):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownStop):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrCalculationInProgress):
		return fiber.StatusConflict
	case errors.As(err, &rateErr):
		return fiber.StatusTooManyRequests
	case errors.Is(err, domain.ErrEmptyRoute),
		errors.Is(err, domain.ErrMalformedGeometry):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &providerErr),
		errors.Is(err, domain.ErrMalformedResponse):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every handler error as {"error": true, "message": ...}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	message := err.Error()
	if code == fiber.StatusInternalServerError {
		message = "Internal Server Error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
