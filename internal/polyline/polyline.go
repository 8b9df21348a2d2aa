// Package polyline encodes and decodes coordinate sequences in the
// encoded polyline format used by web mapping providers (precision 1e-5).
package polyline

import (
	"fmt"

	"github.com/twpayne/go-polyline"

	"github.com/schoolroute/backend/internal/domain"
)

// Precision is the coordinate resolution of the codec in degrees
const Precision = 1e-5

var codec = polyline.Codec{Dim: 2, Scale: 1e5}

// Decode converts an encoded polyline into coordinates.
// An empty string decodes to an empty path.
func Decode(encoded string) ([]domain.GeoCoordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	coords, rest, err := codec.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedGeometry, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", domain.ErrMalformedGeometry, len(rest))
	}

	path := make([]domain.GeoCoordinate, len(coords))
	for i, c := range coords {
		path[i] = domain.GeoCoordinate{Latitude: c[0], Longitude: c[1]}
	}
	return path, nil
}

// Encode converts coordinates into an encoded polyline
func Encode(path []domain.GeoCoordinate) string {
	coords := make([][]float64, len(path))
	for i, c := range path {
		coords[i] = []float64{c.Latitude, c.Longitude}
	}
	return string(codec.EncodeCoords(nil, coords))
}
