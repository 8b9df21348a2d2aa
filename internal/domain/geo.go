package domain

import "fmt"

// GeoCoordinate is a latitude/longitude pair in decimal degrees
type GeoCoordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// NewGeoCoordinate builds a coordinate, rejecting out-of-range values
func NewGeoCoordinate(lat, lng float64) (GeoCoordinate, error) {
	c := GeoCoordinate{Latitude: lat, Longitude: lng}
	if !c.Valid() {
		return GeoCoordinate{}, fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinate, lat, lng)
	}
	return c, nil
}

// Valid reports whether the coordinate lies within WGS84 bounds
func (c GeoCoordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

func (c GeoCoordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Latitude, c.Longitude)
}

// Stop is a selectable location: a school or the home
type Stop struct {
	ID         string        `json:"id"`
	Coordinate GeoCoordinate `json:"coordinate"`
}

// School is one record of the static school dataset
type School struct {
	Name string  `json:"name" yaml:"name" validate:"required"`
	Lat  float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng  float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

// Stop converts the school into a Stop keyed by its name
func (s School) Stop() Stop {
	return Stop{
		ID:         s.Name,
		Coordinate: GeoCoordinate{Latitude: s.Lat, Longitude: s.Lng},
	}
}
