package storage

import (
	"fmt"
	"regexp"
	"strings"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageSvc "stowage/internal/domain/services/storage"
)

// untitledSlug stands in for names that contain no slug characters at all,
// so a path never has an empty segment.
const untitledSlug = "untitled"

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

type pathResolver struct{}

// NewPathResolver creates the materialized path calculator
func NewPathResolver() storageSvc.PathResolver {
	return &pathResolver{}
}

// Slug lowercases name, collapses every run of characters outside [a-z0-9]
// into a single "-" and trims leading and trailing dashes.
//
// Examples:
//   - "Brand Photos" → "brand-photos"
//   - "  Q3 -- Report!! " → "q3-report"
//   - "日本" → "untitled"
func (r *pathResolver) Slug(name string) string {
	s := nonSlugRun.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return untitledSlug
	}
	return s
}

// Resolve derives path, fullPath and depth of a folder named name placed
// under parent. A nil parent means the project root.
func (r *pathResolver) Resolve(name string, parent *models.Folder, maxDepth int) (storageSvc.PathResolution, error) {
	if parent == nil {
		return storageSvc.PathResolution{
			Path:     "/" + r.Slug(name),
			FullPath: "/" + name,
			Depth:    0,
		}, nil
	}

	depth := parent.Depth + 1
	if depth > maxDepth {
		return storageSvc.PathResolution{}, fmt.Errorf("%w: depth %d, maximum %d", domain.ErrDepthExceeded, depth, maxDepth)
	}

	return storageSvc.PathResolution{
		Path:     parent.Path + "/" + r.Slug(name),
		FullPath: parent.FullPath + "/" + name,
		Depth:    depth,
	}, nil
}

// FilePath returns the display path of a file named name inside folder.
func (r *pathResolver) FilePath(name string, folder *models.Folder) string {
	if folder == nil {
		return "/" + name
	}
	return folder.FullPath + "/" + name
}
