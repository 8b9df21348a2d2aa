// Package file serves the static school dataset from a JSON or YAML file.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/schoolroute/backend/internal/domain"
)

// Repository implements domain.SchoolRepository over a dataset loaded once
type Repository struct {
	path    string
	schools []domain.School
}

// Load reads and validates the dataset at path. Files ending in .yaml or
// .yml are parsed as YAML, everything else as a JSON array.
func Load(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("file: failed to read schools: %w", err)
	}

	schools, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("file: %s: %w", path, err)
	}

	return &Repository{path: path, schools: schools}, nil
}

// Parse decodes and validates dataset bytes; ext selects the format
func Parse(data []byte, ext string) ([]domain.School, error) {
	var schools []domain.School

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &schools); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &schools); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	}

	v := validator.New()
	for i, s := range schools {
		if err := v.Struct(s); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	return schools, nil
}

// ListSchools returns a copy of the loaded dataset
func (r *Repository) ListSchools(ctx context.Context) ([]domain.School, error) {
	return append([]domain.School(nil), r.schools...), nil
}

// Health reports whether the dataset file is still readable
func (r *Repository) Health(ctx context.Context) error {
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("file: health check failed: %w", err)
	}
	return nil
}
