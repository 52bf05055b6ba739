package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"stowage/internal/config"
	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// projectService implements the ProjectService interface
type projectService struct {
	projectRepo storageRepo.ProjectRepository
	authorizer  storageSvc.ResourceAuthorizer
	logger      *slog.Logger
}

// NewProjectService creates a new project service
func NewProjectService(
	projectRepo storageRepo.ProjectRepository,
	authorizer storageSvc.ResourceAuthorizer,
	logger *slog.Logger,
) storageSvc.ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		authorizer:  authorizer,
		logger:      logger,
	}
}

// CreateProject creates a project owned by req.OwnerID
func (s *projectService) CreateProject(ctx context.Context, req *storageSvc.CreateProjectRequest) (*models.Project, error) {
	req.Name = strings.TrimSpace(req.Name)
	err := validation.ValidateStruct(req,
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.Name, validation.Required, validation.Length(1, config.MaxProjectNameLength)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	project := &models.Project{
		ID:      uuid.NewString(),
		OwnerID: req.OwnerID,
		Name:    req.Name,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		"id", project.ID,
		"name", project.Name,
		"owner_id", project.OwnerID,
	)
	return project, nil
}

// GetProject returns a live project the user owns
func (s *projectService) GetProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	if err := s.authorizer.CanAccessProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.projectRepo.GetByID(ctx, projectID)
}
