package storage

import (
	"context"
	"fmt"
	"math"

	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"
)

// unlimitedDepth disables the ceiling when recomputing existing folders.
// Limits are enforced when a folder is created or moved, not when its
// materialized fields are rewritten.
const unlimitedDepth = math.MaxInt

// pathCascade rewrites the materialized fields below a folder whose own path
// just changed. It walks live descendants level by level with one folder read
// and one file read per level.
type pathCascade struct {
	folderRepo storageRepo.FolderRepository
	fileRepo   storageRepo.FileRepository
	resolver   storageSvc.PathResolver
}

type cascadeStats struct {
	Folders int
	Files   int
}

func samePath(f *models.Folder, res storageSvc.PathResolution) bool {
	return f.Path == res.Path && f.FullPath == res.FullPath && f.Depth == res.Depth
}

func folderIDs(folders []*models.Folder) []string {
	ids := make([]string, len(folders))
	for i, f := range folders {
		ids[i] = f.ID
	}
	return ids
}

// Apply assumes root already carries its correct path fields.
func (c *pathCascade) Apply(ctx context.Context, root *models.Folder) (cascadeStats, error) {
	var stats cascadeStats
	visited := map[string]bool{root.ID: true}
	level := []*models.Folder{root}

	for len(level) > 0 {
		ids := folderIDs(level)
		byID := make(map[string]*models.Folder, len(level))
		for _, f := range level {
			byID[f.ID] = f
		}

		files, err := c.fileRepo.Find(ctx, storageRepo.FileFilter{FolderIDs: ids, Deleted: storageRepo.Bool(false)})
		if err != nil {
			return stats, fmt.Errorf("list files for cascade: %w", err)
		}
		for i := range files {
			file := &files[i]
			want := c.resolver.FilePath(file.Name, byID[*file.FolderID])
			if file.FullPath == want {
				continue
			}
			file.FullPath = want
			if err := c.fileRepo.Update(ctx, file); err != nil {
				return stats, fmt.Errorf("update file %s path: %w", file.ID, err)
			}
			stats.Files++
		}

		children, err := c.folderRepo.Find(ctx, storageRepo.FolderFilter{ParentIDs: ids, Deleted: storageRepo.Bool(false)})
		if err != nil {
			return stats, fmt.Errorf("list subfolders for cascade: %w", err)
		}

		var next []*models.Folder
		for i := range children {
			child := &children[i]
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true

			res, err := c.resolver.Resolve(child.Name, byID[*child.ParentID], unlimitedDepth)
			if err != nil {
				return stats, err
			}
			if !samePath(child, res) {
				child.Path, child.FullPath, child.Depth = res.Path, res.FullPath, res.Depth
				if err := c.folderRepo.Update(ctx, child); err != nil {
					return stats, fmt.Errorf("update folder %s path: %w", child.ID, err)
				}
				stats.Folders++
			}
			next = append(next, child)
		}
		level = next
	}

	return stats, nil
}
