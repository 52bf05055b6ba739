package storage

import (
	"time"
)

// Folder is a node of a project's folder tree. Path, FullPath and Depth are
// materialized from the ancestor chain and are never set independently.
type Folder struct {
	ID        string         `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	ParentID  *string        `json:"parent_id" db:"parent_id"` // NULL = project root
	ProjectID string         `json:"project_id" db:"project_id"`
	OwnerID   string         `json:"owner_id" db:"owner_id"`
	Path      string         `json:"path" db:"path"`           // slug path, e.g. /brand-photos/2024
	FullPath  string         `json:"full_path" db:"full_path"` // display path, e.g. /Brand Photos/2024
	Depth     int            `json:"depth" db:"depth"`
	Metadata  FolderMetadata `json:"metadata" db:"metadata"`
	IsDeleted bool           `json:"is_deleted" db:"is_deleted"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
	Version   int64          `json:"version" db:"version"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// FolderMetadata is the cached rollup written by the aggregator.
type FolderMetadata struct {
	TotalFiles      int        `json:"total_files"`
	TotalSubfolders int        `json:"total_subfolders"` // direct children only
	TotalSize       int64      `json:"total_size"`
	FileTypes       []string   `json:"file_types"`
	LastFileAdded   *time.Time `json:"last_file_added,omitempty"`
}

// IsRoot reports whether the folder sits at the project root.
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}

// IsLive reports whether the folder exists and is not soft-deleted.
func (f *Folder) IsLive() bool {
	return f != nil && !f.IsDeleted
}
