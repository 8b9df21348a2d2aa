package service

import (
	"encoding/json"
	"fmt"

	"github.com/schoolroute/backend/internal/domain"
)

// computeRoutesResponse is the maps-platform computeRoutes response
// restricted to the fields in the request field mask
type computeRoutesResponse struct {
	Routes []struct {
		DistanceMeters *float64 `json:"distanceMeters"`
		Legs           []struct {
			DistanceMeters *float64 `json:"distanceMeters"`
			Steps          []struct {
				Polyline struct {
					EncodedPolyline string `json:"encodedPolyline"`
				} `json:"polyline"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// geoJSONRouteResponse is the self-hosted routing engine GeoJSON response
type geoJSONRouteResponse struct {
	Type     string `json:"type"`
	Features []struct {
		Geometry struct {
			Type        string      `json:"type"`
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

// DecodeRouteResponse inspects a raw provider body once and returns the
// matching tagged RouteResponse. An empty JSON object is how computeRoutes
// reports "no route", so it decodes as a leg-steps response with no legs.
func DecodeRouteResponse(raw []byte) (domain.RouteResponse, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return domain.RouteResponse{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	_, hasFeatures := keys["features"]
	_, hasRoutes := keys["routes"]

	switch {
	case hasFeatures:
		return decodeGeoJSON(raw)
	case hasRoutes || len(keys) == 0:
		return decodeComputeRoutes(raw)
	default:
		return domain.RouteResponse{}, domain.ErrMalformedResponse
	}
}

func decodeComputeRoutes(raw []byte) (domain.RouteResponse, error) {
	var body computeRoutesResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return domain.RouteResponse{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	resp := domain.RouteResponse{Shape: domain.ShapeLegSteps}
	if len(body.Routes) == 0 {
		return resp, nil
	}

	route := body.Routes[0]
	resp.Legs = make([]domain.RouteLeg, len(route.Legs))
	for i, leg := range route.Legs {
		steps := make([]domain.RouteStep, len(leg.Steps))
		for j, step := range leg.Steps {
			steps[j] = domain.RouteStep{EncodedPolyline: step.Polyline.EncodedPolyline}
		}
		resp.Legs[i] = domain.RouteLeg{
			DistanceMeters: leg.DistanceMeters,
			Steps:          steps,
		}
	}

	return resp, nil
}

func decodeGeoJSON(raw []byte) (domain.RouteResponse, error) {
	var body geoJSONRouteResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return domain.RouteResponse{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	resp := domain.RouteResponse{Shape: domain.ShapeFlatCoordinates}
	if len(body.Features) == 0 {
		return resp, nil
	}

	feature := body.Features[0]
	coords := make([]domain.GeoCoordinate, 0, len(feature.Geometry.Coordinates))
	for i, c := range feature.Geometry.Coordinates {
		if len(c) < 2 {
			return domain.RouteResponse{}, fmt.Errorf("%w: position %d has %d values", domain.ErrMalformedGeometry, i, len(c))
		}
		// GeoJSON positions are [lng, lat, (elevation)]
		coord, err := domain.NewGeoCoordinate(c[1], c[0])
		if err != nil {
			return domain.RouteResponse{}, fmt.Errorf("%w: position %d: %v", domain.ErrMalformedGeometry, i, err)
		}
		coords = append(coords, coord)
	}

	resp.Flat = &domain.FlatRoute{
		Coordinates:    coords,
		DistanceMeters: feature.Properties.Summary.Distance,
	}
	return resp, nil
}
