package auth

import (
	"context"
	"errors"
	"fmt"

	"stowage/internal/domain"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"
)

// OwnerBasedAuthorizer implements ResourceAuthorizer using ownership checks.
// A user can access a resource if they own the project that contains it.
type OwnerBasedAuthorizer struct {
	projectRepo storageRepo.ProjectRepository
	folderRepo  storageRepo.FolderRepository
	fileRepo    storageRepo.FileRepository
}

var _ storageSvc.ResourceAuthorizer = (*OwnerBasedAuthorizer)(nil)

// NewOwnerBasedAuthorizer creates a new ownership-based authorizer
func NewOwnerBasedAuthorizer(
	projectRepo storageRepo.ProjectRepository,
	folderRepo storageRepo.FolderRepository,
	fileRepo storageRepo.FileRepository,
) *OwnerBasedAuthorizer {
	return &OwnerBasedAuthorizer{
		projectRepo: projectRepo,
		folderRepo:  folderRepo,
		fileRepo:    fileRepo,
	}
}

// CanAccessProject checks if user owns the project. A missing project is
// reported as forbidden so ids cannot be probed; a soft-deleted one the user
// owns is reported as not found.
func (a *OwnerBasedAuthorizer) CanAccessProject(ctx context.Context, userID, projectID string) error {
	project, err := a.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("access denied to project %s: %w", projectID, domain.ErrForbidden)
		}
		return fmt.Errorf("check project access: %w", err)
	}
	if project.OwnerID != userID {
		return fmt.Errorf("access denied to project %s: %w", projectID, domain.ErrForbidden)
	}
	if project.IsDeleted {
		return fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	return nil
}

// CanAccessFolder checks if user can access a folder (via its project)
func (a *OwnerBasedAuthorizer) CanAccessFolder(ctx context.Context, userID, folderID string) error {
	folder, err := a.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return fmt.Errorf("get folder for auth: %w", err)
	}
	return a.CanAccessProject(ctx, userID, folder.ProjectID)
}

// CanAccessFile checks if user can access a file (via its project)
func (a *OwnerBasedAuthorizer) CanAccessFile(ctx context.Context, userID, fileID string) error {
	file, err := a.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("get file for auth: %w", err)
	}
	return a.CanAccessProject(ctx, userID, file.ProjectID)
}
