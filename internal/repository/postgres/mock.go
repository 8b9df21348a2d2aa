package postgres

import (
	"context"

	"github.com/schoolroute/backend/internal/domain"
)

// MockRepository implements domain.SchoolRepository for testing/demo mode
type MockRepository struct {
	schools []domain.School
}

// NewMockRepository creates a mock repository. With no schools given it
// serves a small built-in demo dataset.
func NewMockRepository(schools ...domain.School) *MockRepository {
	if len(schools) == 0 {
		schools = demoSchools
	}
	return &MockRepository{schools: schools}
}

var demoSchools = []domain.School{
	{Name: "School No. 12", Lat: 43.2567, Lng: 76.9286},
	{Name: "Lyceum No. 165", Lat: 43.2380, Lng: 76.9450},
	{Name: "Gymnasium No. 56", Lat: 43.2700, Lng: 76.9500},
	{Name: "School No. 35", Lat: 43.2220, Lng: 76.8510},
}

// ListSchools returns a copy of the mock dataset
func (r *MockRepository) ListSchools(ctx context.Context) ([]domain.School, error) {
	return append([]domain.School(nil), r.schools...), nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
