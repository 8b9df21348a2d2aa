package service

import (
	"context"
	"strings"

	"github.com/schoolroute/backend/internal/domain"
)

const (
	ProviderGoogle = "google"

	googleRoutesBaseURL   = "https://routes.googleapis.com"
	googleComputeRoutes   = "/directions/v2:computeRoutes"
	googleRoutesFieldMask = "routes.distanceMeters,routes.legs.distanceMeters,routes.legs.steps.polyline.encodedPolyline"
)

// GoogleRoutesProvider calls the maps-platform computeRoutes API.
// Its responses decode as domain.ShapeLegSteps.
type GoogleRoutesProvider struct {
	apiKey  string
	baseURL string
	client  *providerClient
}

// NewGoogleRoutesProvider creates a computeRoutes client
func NewGoogleRoutesProvider(cfg ProviderConfig) *GoogleRoutesProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = googleRoutesBaseURL
	}

	return &GoogleRoutesProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  newProviderClient(ProviderGoogle, cfg),
	}
}

// Name returns the provider name
func (p *GoogleRoutesProvider) Name() string {
	return ProviderGoogle
}

type googleLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type googleWaypoint struct {
	Location struct {
		LatLng googleLatLng `json:"latLng"`
	} `json:"location"`
}

type googleRouteModifiers struct {
	AvoidTolls    bool `json:"avoidTolls,omitempty"`
	AvoidHighways bool `json:"avoidHighways,omitempty"`
	AvoidFerries  bool `json:"avoidFerries,omitempty"`
}

type googleComputeRoutesRequest struct {
	Origin                googleWaypoint       `json:"origin"`
	Destination           googleWaypoint       `json:"destination"`
	Intermediates         []googleWaypoint     `json:"intermediates,omitempty"`
	TravelMode            string               `json:"travelMode"`
	RouteModifiers        googleRouteModifiers `json:"routeModifiers"`
	OptimizeWaypointOrder bool                 `json:"optimizeWaypointOrder,omitempty"`
	PolylineEncoding      string               `json:"polylineEncoding"`
}

func newGoogleWaypoint(c domain.GeoCoordinate) googleWaypoint {
	var w googleWaypoint
	w.Location.LatLng = googleLatLng{Latitude: c.Latitude, Longitude: c.Longitude}
	return w
}

func newGoogleComputeRoutesRequest(req domain.RouteRequest) googleComputeRoutesRequest {
	body := googleComputeRoutesRequest{
		Origin:      newGoogleWaypoint(req.Origin),
		Destination: newGoogleWaypoint(req.Destination),
		TravelMode:  string(req.TravelMode),
		RouteModifiers: googleRouteModifiers{
			AvoidTolls:    req.Avoids(domain.AvoidTolls),
			AvoidHighways: req.Avoids(domain.AvoidHighways),
			AvoidFerries:  req.Avoids(domain.AvoidFerries),
		},
		OptimizeWaypointOrder: req.OptimizeWaypointOrder,
		PolylineEncoding:      "ENCODED_POLYLINE",
	}
	for _, c := range req.Intermediates {
		body.Intermediates = append(body.Intermediates, newGoogleWaypoint(c))
	}
	return body
}

// ComputeRoute requests a route and returns the raw computeRoutes body
func (p *GoogleRoutesProvider) ComputeRoute(ctx context.Context, req domain.RouteRequest) ([]byte, error) {
	headers := map[string]string{
		"X-Goog-Api-Key":   p.apiKey,
		"X-Goog-FieldMask": googleRoutesFieldMask,
	}
	return p.client.postJSON(ctx, p.baseURL+googleComputeRoutes, headers, newGoogleComputeRoutesRequest(req))
}
