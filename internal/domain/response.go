package domain

// ResponseShape tags which provider layout a RouteResponse carries
type ResponseShape int

const (
	// ShapeLegSteps is an ordered list of legs, each with encoded-polyline steps
	ShapeLegSteps ResponseShape = iota + 1
	// ShapeFlatCoordinates is a single coordinate list with one total distance
	ShapeFlatCoordinates
)

func (s ResponseShape) String() string {
	switch s {
	case ShapeLegSteps:
		return "leg_steps"
	case ShapeFlatCoordinates:
		return "flat_coordinates"
	default:
		return "unknown"
	}
}

// RouteResponse is a provider response after the shape has been decided.
// Legs is set for ShapeLegSteps, Flat for ShapeFlatCoordinates.
type RouteResponse struct {
	Shape ResponseShape
	Legs  []RouteLeg
	Flat  *FlatRoute
}

// RouteLeg is one leg of a ShapeLegSteps response
type RouteLeg struct {
	// DistanceMeters is nil when the provider did not report a leg distance
	DistanceMeters *float64
	Steps          []RouteStep
}

// RouteStep carries one encoded polyline chunk of a leg
type RouteStep struct {
	EncodedPolyline string
}

// FlatRoute is the body of a ShapeFlatCoordinates response
type FlatRoute struct {
	Coordinates    []GeoCoordinate
	DistanceMeters float64
}
