package storage

import (
	"context"

	models "stowage/internal/domain/models/storage"
)

// ProjectRepository defines the project lookups the integrity subsystem needs
type ProjectRepository interface {
	// Create persists a new project
	Create(ctx context.Context, project *models.Project) error

	// GetByID retrieves a project by ID, including soft-deleted ones
	GetByID(ctx context.Context, id string) (*models.Project, error)
}
