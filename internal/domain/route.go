package domain

import (
	"fmt"
	"strings"
)

// TravelMode selects the provider's routing profile
type TravelMode string

const (
	TravelModeDrive TravelMode = "DRIVE"
)

// Avoid is a road feature the route should stay off
type Avoid string

const (
	AvoidTolls    Avoid = "TOLLS"
	AvoidHighways Avoid = "HIGHWAYS"
	AvoidFerries  Avoid = "FERRIES"
)

// ParseAvoid parses a case-insensitive avoid token
func ParseAvoid(s string) (Avoid, error) {
	switch a := Avoid(strings.ToUpper(strings.TrimSpace(s))); a {
	case AvoidTolls, AvoidHighways, AvoidFerries:
		return a, nil
	default:
		return "", fmt.Errorf("domain: unknown avoid option %q", s)
	}
}

// ParseAvoidList parses a comma separated list, ignoring empty entries
func ParseAvoidList(s string) ([]Avoid, error) {
	var out []Avoid
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		a, err := ParseAvoid(part)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// RouteRequest is a provider-agnostic route calculation request.
// It is built once per calculation and never mutated afterwards.
type RouteRequest struct {
	Origin                GeoCoordinate   `json:"origin"`
	Destination           GeoCoordinate   `json:"destination"`
	Intermediates         []GeoCoordinate `json:"intermediates"`
	TravelMode            TravelMode      `json:"travel_mode"`
	Avoid                 []Avoid         `json:"avoid,omitempty"`
	OptimizeWaypointOrder bool            `json:"optimize_waypoint_order,omitempty"`
}

// Avoids reports whether the request excludes the given feature
func (r RouteRequest) Avoids(a Avoid) bool {
	for _, v := range r.Avoid {
		if v == a {
			return true
		}
	}
	return false
}

// Segment is the normalized geometry of one leg
type Segment struct {
	Path           []GeoCoordinate `json:"path"`
	Color          string          `json:"color"`
	DistanceMeters float64         `json:"distance_meters"`
	Active         bool            `json:"active"`
}
