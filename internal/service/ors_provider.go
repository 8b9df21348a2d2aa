package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/schoolroute/backend/internal/domain"
)

const (
	ProviderORS = "ors"

	orsDefaultBaseURL = "http://localhost:8082/ors"
	orsDirections     = "/v2/directions/driving-car/geojson"
)

// ORSProvider calls a self-hosted routing engine's GeoJSON directions
// endpoint. Its responses decode as domain.ShapeFlatCoordinates.
type ORSProvider struct {
	apiKey  string
	baseURL string
	client  *providerClient
}

// NewORSProvider creates a self-hosted routing client
func NewORSProvider(cfg ProviderConfig) *ORSProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = orsDefaultBaseURL
	}

	return &ORSProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  newProviderClient(ProviderORS, cfg),
	}
}

// Name returns the provider name
func (p *ORSProvider) Name() string {
	return ProviderORS
}

type orsOptions struct {
	AvoidFeatures []string `json:"avoid_features,omitempty"`
}

type orsDirectionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
	Options     *orsOptions `json:"options,omitempty"`
}

var orsAvoidFeatures = map[domain.Avoid]string{
	domain.AvoidTolls:    "tollways",
	domain.AvoidHighways: "highways",
	domain.AvoidFerries:  "ferries",
}

func newORSDirectionsRequest(req domain.RouteRequest) orsDirectionsRequest {
	coords := make([][]float64, 0, len(req.Intermediates)+2)
	coords = append(coords, []float64{req.Origin.Longitude, req.Origin.Latitude})
	for _, c := range req.Intermediates {
		coords = append(coords, []float64{c.Longitude, c.Latitude})
	}
	coords = append(coords, []float64{req.Destination.Longitude, req.Destination.Latitude})

	body := orsDirectionsRequest{Coordinates: coords}
	if len(req.Avoid) > 0 {
		opts := &orsOptions{}
		for _, a := range req.Avoid {
			opts.AvoidFeatures = append(opts.AvoidFeatures, orsAvoidFeatures[a])
		}
		body.Options = opts
	}
	return body
}

// ComputeRoute requests a route and returns the raw GeoJSON body
func (p *ORSProvider) ComputeRoute(ctx context.Context, req domain.RouteRequest) ([]byte, error) {
	var headers map[string]string
	if p.apiKey != "" {
		headers = map[string]string{"Authorization": p.apiKey}
	}
	return p.client.postJSON(ctx, p.baseURL+orsDirections, headers, newORSDirectionsRequest(req))
}

// NewRouteProvider picks a provider implementation by name
func NewRouteProvider(name string, cfg ProviderConfig) (RouteProvider, error) {
	switch strings.ToLower(name) {
	case "", ProviderGoogle:
		return NewGoogleRoutesProvider(cfg), nil
	case ProviderORS:
		return NewORSProvider(cfg), nil
	default:
		return nil, fmt.Errorf("service: unknown routing provider %q", name)
	}
}
