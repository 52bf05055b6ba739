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

type fileRepository struct {
	s *Store
}

// NewFileRepository creates a file repository backed by s
func NewFileRepository(s *Store) storageRepo.FileRepository {
	return &fileRepository{s: s}
}

func (r *fileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		return fmt.Errorf("%w: file id is required", domain.ErrValidation)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.files[file.ID]; exists {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("file %s already exists", file.ID),
			ResourceType: "file",
			ResourceID:   file.ID,
		}
	}

	now := r.s.now()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now
	file.Version = 1
	r.s.files[file.ID] = cloneFile(*file)
	return nil
}

func (r *fileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.files[id]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	out := cloneFile(f)
	return &out, nil
}

func (r *fileRepository) Find(ctx context.Context, filter storageRepo.FileFilter) ([]models.File, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]models.File, 0)
	for _, f := range r.s.files {
		if matchFile(filter, &f) {
			out = append(out, cloneFile(f))
		}
	}
	slices.SortFunc(out, func(a, b models.File) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *fileRepository) Update(ctx context.Context, file *models.File) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.files[file.ID]
	if !ok {
		return fmt.Errorf("file %s: %w", file.ID, domain.ErrNotFound)
	}
	if stored.Version != file.Version {
		return fmt.Errorf("file %s at version %d: %w", file.ID, file.Version, domain.ErrConcurrentModification)
	}

	file.Version++
	file.UpdatedAt = r.s.now()
	next := cloneFile(*file)
	next.CreatedAt = stored.CreatedAt
	r.s.files[file.ID] = next
	return nil
}

func (r *fileRepository) UpdateMany(ctx context.Context, filter storageRepo.FileFilter, patch storageRepo.FilePatch) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	var n int64
	for id, f := range r.s.files {
		if !matchFile(filter, &f) {
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
		r.s.files[id] = f
		n++
	}
	return n, nil
}

func matchFile(filter storageRepo.FileFilter, f *models.File) bool {
	if filter.ProjectID != "" && f.ProjectID != filter.ProjectID {
		return false
	}
	if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, f.ID) {
		return false
	}
	if !matchesAny(filter.FolderIDs, f.FolderID) {
		return false
	}
	if filter.RootOnly && f.FolderID != nil {
		return false
	}
	if filter.HasFolder && f.FolderID == nil {
		return false
	}
	return matchesDeleted(filter.Deleted, f.IsDeleted)
}
