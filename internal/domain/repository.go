package domain

import "context"

// SchoolRepository provides the static school dataset
type SchoolRepository interface {
	// ListSchools returns every school in dataset order
	ListSchools(ctx context.Context) ([]School, error)

	// Health checks the backing store
	Health(ctx context.Context) error
}

// RouteCalculatedEvent is published after a successful calculation
type RouteCalculatedEvent struct {
	Provider       string   `json:"provider"`
	Home           string   `json:"home"`
	Stops          []string `json:"stops"`
	Segments       int      `json:"segments"`
	DistanceMeters float64  `json:"distance_meters"`
	Colors         []string `json:"colors"`
}
