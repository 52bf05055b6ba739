package storage

import (
	"context"

	models "stowage/internal/domain/models/storage"
)

// ProjectService manages the projects that scope folders and files.
type ProjectService interface {
	CreateProject(ctx context.Context, req *CreateProjectRequest) (*models.Project, error)
	GetProject(ctx context.Context, userID, projectID string) (*models.Project, error)
}

// CreateProjectRequest represents a project creation request
type CreateProjectRequest struct {
	OwnerID string `json:"-"`
	Name    string `json:"name"`
}
