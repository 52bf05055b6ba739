package storage

import (
	models "stowage/internal/domain/models/storage"
)

// PathResolution is the derived location of a folder.
type PathResolution struct {
	Path     string `json:"path"`
	FullPath string `json:"full_path"`
	Depth    int    `json:"depth"`
}

// PathResolver computes materialized paths. It performs no I/O; callers load
// the parent themselves.
type PathResolver interface {
	// Resolve derives the location of a folder named name under parent (nil for
	// root) and rejects results deeper than maxDepth.
	Resolve(name string, parent *models.Folder, maxDepth int) (PathResolution, error)

	// Slug turns a display name into a path segment.
	Slug(name string) string

	// FilePath derives a file's fullPath under folder (nil for project root).
	FilePath(name string, folder *models.Folder) string
}
