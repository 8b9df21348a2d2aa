package service

import (
	"github.com/schoolroute/backend/internal/domain"
)

// SchoolRepository is re-exported from domain for convenience
type SchoolRepository = domain.SchoolRepository
