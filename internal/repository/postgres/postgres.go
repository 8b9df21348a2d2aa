package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolroute/backend/internal/domain"
)

// PostgresRepository implements domain.SchoolRepository on a read-only
// schools(name, lat, lng) table
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListSchools returns every school ordered by insertion id
func (r *PostgresRepository) ListSchools(ctx context.Context) ([]domain.School, error) {
	query := `
		SELECT name, lat, lng
		FROM schools
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query schools: %w", err)
	}
	defer rows.Close()

	var results []domain.School
	for rows.Next() {
		var s domain.School
		if err := rows.Scan(&s.Name, &s.Lat, &s.Lng); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan school row: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to iterate school rows: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
