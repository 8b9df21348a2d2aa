package service

import (
	"fmt"

	"github.com/schoolroute/backend/internal/domain"
	"github.com/schoolroute/backend/internal/polyline"
	"github.com/schoolroute/backend/pkg/utils"
)

// Normalize converts a tagged provider response into ordered segments, one
// per leg, colored from Palette. Every segment starts inactive.
func Normalize(resp domain.RouteResponse) ([]domain.Segment, error) {
	var (
		segments []domain.Segment
		err      error
	)

	switch resp.Shape {
	case domain.ShapeLegSteps:
		segments, err = normalizeLegs(resp.Legs)
	case domain.ShapeFlatCoordinates:
		segments, err = normalizeFlat(resp.Flat)
	default:
		return nil, fmt.Errorf("%w: shape %s", domain.ErrMalformedResponse, resp.Shape)
	}
	if err != nil {
		return nil, err
	}

	for i, c := range Palette(len(segments)) {
		segments[i].Color = c
	}
	return segments, nil
}

func normalizeLegs(legs []domain.RouteLeg) ([]domain.Segment, error) {
	if len(legs) == 0 {
		return nil, domain.ErrEmptyRoute
	}

	segments := make([]domain.Segment, len(legs))
	for i, leg := range legs {
		var path []domain.GeoCoordinate
		for j, step := range leg.Steps {
			points, err := polyline.Decode(step.EncodedPolyline)
			if err != nil {
				return nil, fmt.Errorf("normalize: leg %d step %d: %w", i, j, err)
			}
			path = append(path, points...)
		}
		if err := checkPath(path); err != nil {
			return nil, fmt.Errorf("normalize: leg %d: %w", i, err)
		}

		if len(path) < 2 {
			return nil, fmt.Errorf("%w: leg %d has %d points", domain.ErrMalformedGeometry, i, len(path))
		}

		distance := PathLengthMeters(path)
		if leg.DistanceMeters != nil {
			if *leg.DistanceMeters < 0 {
				return nil, fmt.Errorf("%w: leg %d distance %v", domain.ErrMalformedGeometry, i, *leg.DistanceMeters)
			}
			distance = *leg.DistanceMeters
		}

		segments[i] = domain.Segment{Path: path, DistanceMeters: distance}
	}

	return segments, nil
}

func normalizeFlat(flat *domain.FlatRoute) ([]domain.Segment, error) {
	if flat == nil {
		return nil, domain.ErrEmptyRoute
	}
	if len(flat.Coordinates) < 2 {
		return nil, fmt.Errorf("%w: route has %d points", domain.ErrMalformedGeometry, len(flat.Coordinates))
	}

	if err := checkPath(flat.Coordinates); err != nil {
		return nil, err
	}
	if flat.DistanceMeters < 0 {
		return nil, fmt.Errorf("%w: route distance %v", domain.ErrMalformedGeometry, flat.DistanceMeters)
	}

	path := append([]domain.GeoCoordinate(nil), flat.Coordinates...)
	return []domain.Segment{{Path: path, DistanceMeters: flat.DistanceMeters}}, nil
}

func checkPath(path []domain.GeoCoordinate) error {
	for i, c := range path {
		if !c.Valid() {
			return fmt.Errorf("%w: point %d %s out of range", domain.ErrMalformedGeometry, i, c)
		}
	}
	return nil
}

// PathLengthMeters sums the great-circle distance between consecutive points
func PathLengthMeters(path []domain.GeoCoordinate) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		total += utils.HaversineMeters(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	}
	return total
}

// TotalDistanceMeters sums the distance of every segment
func TotalDistanceMeters(segments []domain.Segment) float64 {
	var total float64
	for _, s := range segments {
		total += s.DistanceMeters
	}
	return total
}
