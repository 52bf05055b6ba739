package storage

import (
	"context"
	"time"

	models "stowage/internal/domain/models/storage"
)

// FileFilter selects files. Empty fields do not constrain the query.
type FileFilter struct {
	ProjectID string
	IDs       []string
	FolderIDs []string // files whose folder_id is one of these
	RootOnly  bool     // folder_id IS NULL
	HasFolder bool     // folder_id IS NOT NULL
	Deleted   *bool    // nil = live and deleted
}

// FilePatch is a bulk mutation applied by UpdateMany. Nil fields are left unchanged.
type FilePatch struct {
	IsDeleted *bool
	DeletedAt *time.Time
}

// FileRepository defines data access operations for files
type FileRepository interface {
	// Create persists a new file. The ID is assigned by the caller.
	Create(ctx context.Context, file *models.File) error

	// GetByID retrieves a file by ID, including soft-deleted ones
	GetByID(ctx context.Context, id string) (*models.File, error)

	// Find lists files matching the filter, ordered by name
	Find(ctx context.Context, filter FileFilter) ([]models.File, error)

	// Update saves file with the same version compare-and-swap as FolderRepository.Update
	Update(ctx context.Context, file *models.File) error

	// UpdateMany applies patch to every file matching filter and returns the count
	UpdateMany(ctx context.Context, filter FileFilter, patch FilePatch) (int64, error)
}
