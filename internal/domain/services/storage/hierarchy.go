package storage

import (
	"context"

	models "stowage/internal/domain/models/storage"
)

// HierarchyService performs structural mutations on the folder tree. Every
// operation validates before it writes, and every write keeps path, fullPath
// and depth consistent for the whole affected subtree.
type HierarchyService interface {
	CreateFolder(ctx context.Context, req *CreateFolderRequest) (*models.Folder, error)
	GetFolder(ctx context.Context, userID, folderID string) (*models.Folder, error)
	RenameFolder(ctx context.Context, userID, folderID, newName string) (*models.Folder, error)

	// MoveFolder reparents a folder. A nil newParentID moves it to the project root.
	MoveFolder(ctx context.Context, userID, folderID string, newParentID *string) (*models.Folder, error)

	// CascadeSoftDelete flags the folder, all descendant folders and all their
	// files as deleted. Running it again on a deleted subtree changes nothing.
	CascadeSoftDelete(ctx context.Context, userID, folderID string) (*DeleteResult, error)

	CreateFile(ctx context.Context, req *CreateFileRequest) (*models.File, error)
	RenameFile(ctx context.Context, userID, fileID, newName string) (*models.File, error)
	MoveFile(ctx context.Context, userID, fileID string, folderID *string) (*models.File, error)
	SoftDeleteFile(ctx context.Context, userID, fileID string) error
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	ProjectID string  `json:"project_id"`
	OwnerID   string  `json:"-"` // from auth context
	Name      string  `json:"name"`
	ParentID  *string `json:"parent_id,omitempty"` // null for root folders
}

// CreateFileRequest registers a file whose bytes are already in the object store.
type CreateFileRequest struct {
	ProjectID   string  `json:"project_id"`
	OwnerID     string  `json:"-"`
	FolderID    *string `json:"folder_id,omitempty"` // null for project root
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name,omitempty"`
	StorageKey  string  `json:"storage_key"`
	Size        int64   `json:"size"`
	Checksum    string  `json:"checksum,omitempty"`
	MimeType    string  `json:"mime_type,omitempty"`
	FileType    string  `json:"file_type,omitempty"`
}

// DeleteResult counts the records flagged by a cascade delete.
type DeleteResult struct {
	FolderID       string `json:"folder_id"`
	DeletedFolders int64  `json:"deleted_folders"`
	DeletedFiles   int64  `json:"deleted_files"`
}
