package http

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/schoolroute/backend/internal/domain"
	"github.com/schoolroute/backend/internal/logging"
	"github.com/schoolroute/backend/internal/service"
	"github.com/schoolroute/backend/pkg/utils"
)

const (
	defaultNearby = 5
	maxNearby     = 50
)

// Handler contains all HTTP handlers
type Handler struct {
	routes   *service.RouteService
	catalog  *service.SchoolCatalog
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(routes *service.RouteService, catalog *service.SchoolCatalog, logger *slog.Logger) *Handler {
	return &Handler{
		routes:   routes,
		catalog:  catalog,
		validate: validator.New(),
		logger:   logger,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	repo := "ok"
	if err := h.catalog.Health(ctx); err != nil {
		status = "degraded"
		repo = err.Error()
	}

	return c.JSON(fiber.Map{
		"status":     status,
		"service":    "schoolroute-backend",
		"version":    "1.0.0",
		"provider":   h.routes.ProviderName(),
		"repository": repo,
		"schools":    h.catalog.Len(),
	})
}

// ListSchools returns the school dataset in order
func (h *Handler) ListSchools(c *fiber.Ctx) error {
	schools := h.catalog.List()
	return c.JSON(fiber.Map{
		"success": true,
		"data":    schools,
		"count":   len(schools),
	})
}

// NearbySchools returns the k schools closest to lat/lng
func (h *Handler) NearbySchools(c *fiber.Ctx) error {
	if c.Query("lat") == "" || c.Query("lng") == "" {
		return fiber.NewError(fiber.StatusBadRequest, "lat and lng are required")
	}

	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "lat must be a number")
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "lng must be a number")
	}

	coord, err := domain.NewGeoCoordinate(lat, lng)
	if err != nil {
		return err
	}

	k := utils.Clamp(c.QueryInt("k", defaultNearby), 1, maxNearby)
	nearby := h.catalog.Nearest(coord, k)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    nearby,
		"count":   len(nearby),
	})
}

// CalculateRouteRequest selects the stops by school name. The home is a
// point picked on the map (home_location) or a school name (home).
type CalculateRouteRequest struct {
	Home         string   `json:"home"`
	HomeLocation *LatLng  `json:"home_location"`
	Stops        []string `json:"stops"`
	Avoid        []string `json:"avoid"`
	Optimize     bool     `json:"optimize"`
}

// CalculateRoute runs a full calculation and resets playback
func (h *Handler) CalculateRoute(c *fiber.Ctx) error {
	var req CalculateRouteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	avoid := make([]domain.Avoid, 0, len(req.Avoid))
	for _, s := range req.Avoid {
		a, err := domain.ParseAvoid(s)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		avoid = append(avoid, a)
	}

	in := service.CalculateInput{
		Home:     req.Home,
		Stops:    req.Stops,
		Avoid:    avoid,
		Optimize: req.Optimize,
	}
	if req.HomeLocation != nil {
		if err := h.validate.Struct(req.HomeLocation); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "home_location: "+err.Error())
		}
		coord := req.HomeLocation.coordinate()
		in.HomeLocation = &coord
	}

	calc, err := h.routes.Calculate(c.UserContext(), in)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    calc,
	})
}

// GetPlayback returns the current playback state
func (h *Handler) GetPlayback(c *fiber.Ctx) error {
	return h.playbackResponse(c, h.routes.Playback())
}

// AdvancePlayback reveals the next segment
func (h *Handler) AdvancePlayback(c *fiber.Ctx) error {
	return h.playbackResponse(c, h.routes.Advance())
}

// RewindPlayback hides the last revealed segment
func (h *Handler) RewindPlayback(c *fiber.Ctx) error {
	return h.playbackResponse(c, h.routes.Rewind())
}

// ResetPlayback hides every segment
func (h *Handler) ResetPlayback(c *fiber.Ctx) error {
	return h.playbackResponse(c, h.routes.Restart())
}

func (h *Handler) playbackResponse(c *fiber.Ctx, state service.PlaybackState) error {
	return c.JSON(fiber.Map{
		"success":      true,
		"data":         state,
		"can_advance":  !state.Done(),
		"can_rewind":   state.Cursor > 0,
		"active_count": len(state.ActiveSegments()),
	})
}

// LatLng is the browser's coordinate shape
type LatLng struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

func (p LatLng) coordinate() domain.GeoCoordinate {
	return domain.GeoCoordinate{Latitude: *p.Lat, Longitude: *p.Lng}
}

// ProxyWaypoint wraps an intermediate stop location
type ProxyWaypoint struct {
	Location LatLng `json:"location"`
}

// ProxyRouteRequest is the body of POST /calculate-route
type ProxyRouteRequest struct {
	Origin      *LatLng         `json:"origin" validate:"required"`
	Destination *LatLng         `json:"destination" validate:"required"`
	Waypoints   []ProxyWaypoint `json:"waypoints" validate:"dive"`
}

// ProxyCalculateRoute forwards the browser's request to the routing
// provider with the server-side API key and returns the provider JSON
// unchanged. Errors use the {"error": "..."} shape the browser expects.
func (h *Handler) ProxyCalculateRoute(c *fiber.Ctx) error {
	var body ProxyRouteRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.Origin == nil || body.Destination == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Origin and destination are required"})
	}
	if err := h.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	req := domain.RouteRequest{
		Origin:      body.Origin.coordinate(),
		Destination: body.Destination.coordinate(),
		TravelMode:  domain.TravelModeDrive,
	}
	for _, w := range body.Waypoints {
		req.Intermediates = append(req.Intermediates, w.Location.coordinate())
	}

	raw, err := h.routes.Proxy(c.UserContext(), req)
	if err != nil {
		logging.LogError(logging.FromContext(c.UserContext(), h.logger), "proxy route request failed", err,
			slog.String("provider", h.routes.ProviderName()),
			slog.Int("waypoints", len(req.Intermediates)))

		var rateErr *domain.RateLimitError
		switch {
		case errors.As(err, &rateErr):
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, domain.ErrEmptyRoute):
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "No routes found"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}
