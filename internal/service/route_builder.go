package service

import (
	"fmt"

	"github.com/schoolroute/backend/internal/domain"
)

// MinIntermediateStops is the smallest number of non-home stops a route accepts
const MinIntermediateStops = 2

// BuildOption customizes a RouteRequest under construction
type BuildOption func(*domain.RouteRequest)

// WithAvoid sets the road features the route should avoid
func WithAvoid(avoid ...domain.Avoid) BuildOption {
	return func(r *domain.RouteRequest) {
		r.Avoid = append([]domain.Avoid(nil), avoid...)
	}
}

// WithOptimizeWaypointOrder asks the provider to reorder intermediates.
// Local stop order is never changed.
func WithOptimizeWaypointOrder(optimize bool) BuildOption {
	return func(r *domain.RouteRequest) {
		r.OptimizeWaypointOrder = optimize
	}
}

// BuildRouteRequest turns a home location and the selected stops into a
// round-trip request. Stops sharing the home ID are skipped; the remaining
// stops keep their selection order and duplicates are passed through.
func BuildRouteRequest(home *domain.Stop, stops []domain.Stop, opts ...BuildOption) (domain.RouteRequest, error) {
	if home == nil {
		return domain.RouteRequest{}, domain.ErrMissingHome
	}

	intermediates := make([]domain.GeoCoordinate, 0, len(stops))
	for _, s := range stops {
		if s.ID == home.ID {
			continue
		}
		intermediates = append(intermediates, s.Coordinate)
	}

	if len(intermediates) < MinIntermediateStops {
		return domain.RouteRequest{}, fmt.Errorf("%w: got %d", domain.ErrInsufficientStops, len(intermediates))
	}

	req := domain.RouteRequest{
		Origin:        home.Coordinate,
		Destination:   home.Coordinate,
		Intermediates: intermediates,
		TravelMode:    domain.TravelModeDrive,
	}
	for _, opt := range opts {
		opt(&req)
	}

	return req, nil
}
