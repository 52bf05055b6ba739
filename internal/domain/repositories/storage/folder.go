package storage

import (
	"context"
	"time"

	models "stowage/internal/domain/models/storage"
)

// FolderFilter selects folders. Empty fields do not constrain the query;
// a non-empty slice constrains to its members.
type FolderFilter struct {
	ProjectID string
	IDs       []string
	ParentIDs []string // children of any of these folders
	RootOnly  bool     // parent_id IS NULL
	Deleted   *bool    // nil = live and deleted
}

// FolderPatch is a bulk mutation applied by UpdateMany. Nil fields are left unchanged.
type FolderPatch struct {
	IsDeleted *bool
	DeletedAt *time.Time
}

// FolderRepository defines data access operations for folders
type FolderRepository interface {
	// Create persists a new folder. The ID is assigned by the caller.
	Create(ctx context.Context, folder *models.Folder) error

	// GetByID retrieves a folder by ID, including soft-deleted ones
	GetByID(ctx context.Context, id string) (*models.Folder, error)

	// Find lists folders matching the filter, ordered by depth then name
	Find(ctx context.Context, filter FolderFilter) ([]models.Folder, error)

	// Update saves folder if its stored version still equals folder.Version,
	// then increments folder.Version. Returns domain.ErrConcurrentModification
	// when the version moved. Metadata is not written; see UpdateMetadata.
	Update(ctx context.Context, folder *models.Folder) error

	// UpdateMany applies patch to every folder matching filter and returns the count
	UpdateMany(ctx context.Context, filter FolderFilter, patch FolderPatch) (int64, error)

	// UpdateMetadata replaces the cached aggregate of a folder in one write.
	// It does not bump the version.
	UpdateMetadata(ctx context.Context, id string, metadata models.FolderMetadata) error
}

// Bool returns a pointer to b, for filter and patch fields.
func Bool(b bool) *bool {
	return &b
}
