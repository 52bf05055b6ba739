package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"
)

type folderRepository struct {
	s *Store
}

// NewFolderRepository creates a folder repository backed by s
func NewFolderRepository(s *Store) storageRepo.FolderRepository {
	return &folderRepository{s: s}
}

func (r *folderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder.ID == "" {
		return fmt.Errorf("%w: folder id is required", domain.ErrValidation)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.folders[folder.ID]; exists {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("folder %s already exists", folder.ID),
			ResourceType: "folder",
			ResourceID:   folder.ID,
		}
	}
	if err := r.checkSiblingLocked(folder); err != nil {
		return err
	}

	now := r.s.now()
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = now
	}
	folder.UpdatedAt = now
	folder.Version = 1
	r.s.folders[folder.ID] = cloneFolder(*folder)
	return nil
}

func (r *folderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	out := cloneFolder(f)
	return &out, nil
}

func (r *folderRepository) Find(ctx context.Context, filter storageRepo.FolderFilter) ([]models.Folder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]models.Folder, 0)
	for _, f := range r.s.folders {
		if matchFolder(filter, &f) {
			out = append(out, cloneFolder(f))
		}
	}
	slices.SortFunc(out, func(a, b models.Folder) int {
		return cmp.Or(cmp.Compare(a.Depth, b.Depth), cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *folderRepository) Update(ctx context.Context, folder *models.Folder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.folders[folder.ID]
	if !ok {
		return fmt.Errorf("folder %s: %w", folder.ID, domain.ErrNotFound)
	}
	if stored.Version != folder.Version {
		return fmt.Errorf("folder %s at version %d: %w", folder.ID, folder.Version, domain.ErrConcurrentModification)
	}
	if err := r.checkSiblingLocked(folder); err != nil {
		return err
	}

	folder.Version++
	folder.UpdatedAt = r.s.now()
	next := cloneFolder(*folder)
	next.Metadata = stored.Metadata
	next.CreatedAt = stored.CreatedAt
	r.s.folders[folder.ID] = next
	return nil
}

func (r *folderRepository) UpdateMany(ctx context.Context, filter storageRepo.FolderFilter, patch storageRepo.FolderPatch) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	var n int64
	for id, f := range r.s.folders {
		if !matchFolder(filter, &f) {
			continue
		}
		if patch.IsDeleted != nil {
			f.IsDeleted = *patch.IsDeleted
		}
		if patch.DeletedAt != nil {
			f.DeletedAt = cloneTime(patch.DeletedAt)
		}
		f.Version++
		f.UpdatedAt = now
		r.s.folders[id] = f
		n++
	}
	return n, nil
}

func (r *folderRepository) UpdateMetadata(ctx context.Context, id string, metadata models.FolderMetadata) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.folders[id]
	if !ok {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	f.Metadata = cloneMetadata(metadata)
	r.s.folders[id] = f
	return nil
}

// checkSiblingLocked mirrors the partial unique index of the postgres schema:
// live folders are unique per (project, parent, name).
func (r *folderRepository) checkSiblingLocked(folder *models.Folder) error {
	if folder.IsDeleted {
		return nil
	}
	for _, other := range r.s.folders {
		if other.ID == folder.ID || other.IsDeleted {
			continue
		}
		if other.ProjectID == folder.ProjectID && other.Name == folder.Name && sameParent(other.ParentID, folder.ParentID) {
			return domain.NewDuplicateSiblingError(folder.Name, other.ID)
		}
	}
	return nil
}

func matchFolder(filter storageRepo.FolderFilter, f *models.Folder) bool {
	if filter.ProjectID != "" && f.ProjectID != filter.ProjectID {
		return false
	}
	if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, f.ID) {
		return false
	}
	if !matchesAny(filter.ParentIDs, f.ParentID) {
		return false
	}
	if filter.RootOnly && f.ParentID != nil {
		return false
	}
	return matchesDeleted(filter.Deleted, f.IsDeleted)
}
