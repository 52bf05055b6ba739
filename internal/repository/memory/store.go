// Package memory holds mutex-guarded entity repositories used by tests, the
// verify CLI and servers started without a database URL. Every read returns
// a copy, so callers can never alias stored records.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	models "stowage/internal/domain/models/storage"
	"stowage/internal/domain/repositories"
)

// Store is the shared backing state of the memory repositories.
type Store struct {
	mu       sync.RWMutex
	folders  map[string]models.Folder
	files    map[string]models.File
	projects map[string]models.Project
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		folders:  make(map[string]models.Folder),
		files:    make(map[string]models.File),
		projects: make(map[string]models.Project),
		now:      time.Now,
	}
}

// SetClock replaces the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

type txManager struct{}

// NewTransactionManager returns a TransactionManager that runs fn directly.
// The memory store has no rollback.
func NewTransactionManager() repositories.TransactionManager {
	return txManager{}
}

func (txManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

func cloneFolder(f models.Folder) models.Folder {
	f.ParentID = cloneString(f.ParentID)
	f.DeletedAt = cloneTime(f.DeletedAt)
	f.Metadata = cloneMetadata(f.Metadata)
	return f
}

func cloneMetadata(m models.FolderMetadata) models.FolderMetadata {
	m.FileTypes = slices.Clone(m.FileTypes)
	m.LastFileAdded = cloneTime(m.LastFileAdded)
	return m
}

func cloneFile(f models.File) models.File {
	f.FolderID = cloneString(f.FolderID)
	f.DeletedAt = cloneTime(f.DeletedAt)
	return f
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// matchesAny reports whether v is in set; an empty set matches everything.
func matchesAny(set []string, v *string) bool {
	if len(set) == 0 {
		return true
	}
	if v == nil {
		return false
	}
	return slices.Contains(set, *v)
}

func matchesDeleted(want *bool, isDeleted bool) bool {
	return want == nil || *want == isDeleted
}
