package storage

import (
	"path"
	"strings"
	"time"
)

// File is a stored blob's metadata record. StorageKey points into the object store.
type File struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	DisplayName string     `json:"display_name" db:"display_name"`
	FolderID    *string    `json:"folder_id" db:"folder_id"` // NULL = project root
	ProjectID   string     `json:"project_id" db:"project_id"`
	OwnerID     string     `json:"owner_id" db:"owner_id"`
	FullPath    string     `json:"full_path" db:"full_path"`
	Size        int64      `json:"size" db:"size"`
	Checksum    string     `json:"checksum" db:"checksum"` // hex digest; algorithm inferred from length
	StorageKey  string     `json:"storage_key" db:"storage_key"`
	MimeType    string     `json:"mime_type" db:"mime_type"`
	FileType    string     `json:"file_type" db:"file_type"`
	IsDeleted   bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	Version     int64      `json:"version" db:"version"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TypeTag returns the tag rolled up into FolderMetadata.FileTypes: the
// explicit FileType when set, otherwise the lowercased name extension.
func (f *File) TypeTag() string {
	if f.FileType != "" {
		return strings.ToLower(f.FileType)
	}
	ext := strings.TrimPrefix(path.Ext(f.Name), ".")
	return strings.ToLower(ext)
}
