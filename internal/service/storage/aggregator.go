package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"
)

type aggregator struct {
	folderRepo storageRepo.FolderRepository
	fileRepo   storageRepo.FileRepository
	logger     *slog.Logger
}

// NewAggregator creates the folder metadata aggregator
func NewAggregator(
	folderRepo storageRepo.FolderRepository,
	fileRepo storageRepo.FileRepository,
	logger *slog.Logger,
) storageSvc.Aggregator {
	return &aggregator{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
		logger:     logger,
	}
}

// rollup accumulates the statistics of a set of files.
type rollup struct {
	files     int
	size      int64
	types     map[string]struct{}
	lastAdded *time.Time
}

func newRollup() *rollup {
	return &rollup{types: make(map[string]struct{})}
}

func (r *rollup) addFile(f *models.File) {
	r.files++
	r.size += f.Size
	if tag := f.TypeTag(); tag != "" {
		r.types[tag] = struct{}{}
	}
	r.touch(f.CreatedAt)
}

func (r *rollup) touch(t time.Time) {
	if t.IsZero() {
		return
	}
	if r.lastAdded == nil || t.After(*r.lastAdded) {
		v := t
		r.lastAdded = &v
	}
}

func (r *rollup) merge(other *rollup) {
	r.files += other.files
	r.size += other.size
	for tag := range other.types {
		r.types[tag] = struct{}{}
	}
	if other.lastAdded != nil {
		r.touch(*other.lastAdded)
	}
}

func (r *rollup) metadata(subfolders int) models.FolderMetadata {
	types := make([]string, 0, len(r.types))
	for tag := range r.types {
		types = append(types, tag)
	}
	slices.Sort(types)
	return models.FolderMetadata{
		TotalFiles:      r.files,
		TotalSubfolders: subfolders,
		TotalSize:       r.size,
		FileTypes:       types,
		LastFileAdded:   r.lastAdded,
	}
}

type aggNode struct {
	folder   *models.Folder
	direct   *rollup
	total    *rollup
	children []string
}

// Aggregate recomputes folderID's metadata from the direct file sets of its
// whole live subtree, never from cached aggregates. The walk is level-order
// with one folder read and one file read per level; totals are then folded
// bottom-up and written for every folder of the subtree.
func (a *aggregator) Aggregate(ctx context.Context, folderID string) (*models.FolderMetadata, error) {
	root, err := a.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}

	nodes := map[string]*aggNode{root.ID: {folder: root, direct: newRollup()}}
	var levels [][]string
	level := []string{root.ID}

	for len(level) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		levels = append(levels, level)

		files, err := a.fileRepo.Find(ctx, storageRepo.FileFilter{FolderIDs: level, Deleted: storageRepo.Bool(false)})
		if err != nil {
			return nil, fmt.Errorf("list files for aggregate: %w", err)
		}
		for i := range files {
			nodes[*files[i].FolderID].direct.addFile(&files[i])
		}

		children, err := a.folderRepo.Find(ctx, storageRepo.FolderFilter{ParentIDs: level, Deleted: storageRepo.Bool(false)})
		if err != nil {
			return nil, fmt.Errorf("list subfolders for aggregate: %w", err)
		}
		var next []string
		for i := range children {
			child := &children[i]
			if _, seen := nodes[child.ID]; seen {
				continue
			}
			nodes[child.ID] = &aggNode{folder: child, direct: newRollup()}
			parent := nodes[*child.ParentID]
			parent.children = append(parent.children, child.ID)
			next = append(next, child.ID)
		}
		level = next
	}

	for i := len(levels) - 1; i >= 0; i-- {
		for _, id := range levels[i] {
			node := nodes[id]
			node.total = newRollup()
			node.total.merge(node.direct)
			for _, childID := range node.children {
				node.total.merge(nodes[childID].total)
			}
			if err := a.folderRepo.UpdateMetadata(ctx, id, node.total.metadata(len(node.children))); err != nil {
				return nil, fmt.Errorf("persist metadata for %s: %w", id, err)
			}
		}
	}

	meta := nodes[root.ID].total.metadata(len(nodes[root.ID].children))
	a.logger.Debug("folder aggregated",
		"folder_id", root.ID,
		"subtree_folders", len(nodes),
		"total_files", meta.TotalFiles,
		"total_size", meta.TotalSize,
	)
	return &meta, nil
}

// RefreshLineage walks up from folderID to the topmost reachable ancestor and
// re-aggregates that whole subtree. Cached child aggregates are never summed,
// so one stale cache cannot spread up the lineage.
func (a *aggregator) RefreshLineage(ctx context.Context, folderID string) error {
	seen := make(map[string]bool)
	top := folderID
	id := folderID

	for {
		folder, err := a.folderRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) && id != folderID {
				break
			}
			return err
		}
		seen[id] = true
		top = id

		if folder.ParentID == nil || seen[*folder.ParentID] {
			break
		}
		id = *folder.ParentID
	}

	_, err := a.Aggregate(ctx, top)
	return err
}
