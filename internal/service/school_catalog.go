package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/schoolroute/backend/internal/domain"
	"github.com/schoolroute/backend/pkg/utils"
)

const (
	indexTolerance   = 1e-6
	indexMinChildren = 4
	indexMaxChildren = 16
)

// indexedStop wraps a Stop for R-tree indexing
type indexedStop struct {
	stop domain.Stop
	rect *rtreego.Rect
}

func (s *indexedStop) Bounds() *rtreego.Rect {
	return s.rect
}

// NearbyStop is a catalog hit with its distance from the query point
type NearbyStop struct {
	domain.Stop
	DistanceMeters float64 `json:"distance_meters"`
}

// SchoolCatalog is the in-memory view of the static school dataset
type SchoolCatalog struct {
	repo SchoolRepository

	mu    sync.RWMutex
	stops []domain.Stop
	byID  map[string]domain.Stop
	tree  *rtreego.Rtree
}

// NewSchoolCatalog creates an empty catalog backed by repo
func NewSchoolCatalog(repo SchoolRepository) *SchoolCatalog {
	return &SchoolCatalog{
		repo: repo,
		byID: make(map[string]domain.Stop),
		tree: rtreego.NewTree(2, indexMinChildren, indexMaxChildren),
	}
}

// Load reads the dataset from the repository and rebuilds the index
func (c *SchoolCatalog) Load(ctx context.Context) error {
	schools, err := c.repo.ListSchools(ctx)
	if err != nil {
		return fmt.Errorf("catalog: failed to list schools: %w", err)
	}

	stops := make([]domain.Stop, 0, len(schools))
	byID := make(map[string]domain.Stop, len(schools))
	tree := rtreego.NewTree(2, indexMinChildren, indexMaxChildren)

	for _, s := range schools {
		stop := s.Stop()
		if !stop.Coordinate.Valid() {
			return fmt.Errorf("catalog: school %q: %w", s.Name, domain.ErrInvalidCoordinate)
		}
		if _, dup := byID[stop.ID]; dup {
			return fmt.Errorf("catalog: duplicate school name %q", stop.ID)
		}
		stops = append(stops, stop)
		byID[stop.ID] = stop

		point := rtreego.Point{stop.Coordinate.Latitude, stop.Coordinate.Longitude}
		tree.Insert(&indexedStop{stop: stop, rect: point.ToRect(indexTolerance)})
	}

	c.mu.Lock()
	c.stops = stops
	c.byID = byID
	c.tree = tree
	c.mu.Unlock()

	return nil
}

// List returns every stop in dataset order
func (c *SchoolCatalog) List() []domain.Stop {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Stop(nil), c.stops...)
}

// Len returns the number of schools
func (c *SchoolCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stops)
}

// Lookup finds a stop by id
func (c *SchoolCatalog) Lookup(id string) (domain.Stop, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stop, ok := c.byID[id]
	if !ok {
		return domain.Stop{}, fmt.Errorf("%w: %q", domain.ErrUnknownStop, id)
	}
	return stop, nil
}

// Resolve looks up every id, keeping order and repeats
func (c *SchoolCatalog) Resolve(ids []string) ([]domain.Stop, error) {
	stops := make([]domain.Stop, 0, len(ids))
	for _, id := range ids {
		stop, err := c.Lookup(id)
		if err != nil {
			return nil, err
		}
		stops = append(stops, stop)
	}
	return stops, nil
}

// Nearest returns up to k stops closest to coord, nearest first
func (c *SchoolCatalog) Nearest(coord domain.GeoCoordinate, k int) []NearbyStop {
	if k <= 0 {
		return nil
	}

	c.mu.RLock()
	results := c.tree.NearestNeighbors(k, rtreego.Point{coord.Latitude, coord.Longitude})
	c.mu.RUnlock()

	out := make([]NearbyStop, 0, len(results))
	for _, r := range results {
		item, ok := r.(*indexedStop)
		if !ok {
			continue
		}
		d := utils.HaversineMeters(
			coord.Latitude, coord.Longitude,
			item.stop.Coordinate.Latitude, item.stop.Coordinate.Longitude,
		)
		out = append(out, NearbyStop{Stop: item.stop, DistanceMeters: d})
	}

	// the index orders by planar degrees; re-sort by great-circle distance
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	return out
}

// Health checks the backing repository
func (c *SchoolCatalog) Health(ctx context.Context) error {
	return c.repo.Health(ctx)
}
