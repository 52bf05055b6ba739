package memory

import (
	"context"
	"fmt"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"
)

type projectRepository struct {
	s *Store
}

// NewProjectRepository creates a project repository backed by s
func NewProjectRepository(s *Store) storageRepo.ProjectRepository {
	return &projectRepository{s: s}
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		return fmt.Errorf("%w: project id is required", domain.ErrValidation)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.projects[project.ID]; exists {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("project %s already exists", project.ID),
			ResourceType: "project",
			ResourceID:   project.ID,
		}
	}
	now := r.s.now()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	p := *project
	p.DeletedAt = cloneTime(project.DeletedAt)
	r.s.projects[project.ID] = p
	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	p.DeletedAt = cloneTime(p.DeletedAt)
	return &p, nil
}
