package storage

import (
	"errors"
	"testing"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_CountsLiveDescendants(t *testing.T) {
	f := newFixture(t)
	shoots := f.folder(t, "Shoots", nil)
	year := f.folder(t, "2024", shoots)
	raw := f.folder(t, "raw", year)
	f.folder(t, "empty", shoots)

	f.file(t, "cover.JPG", shoots, []byte("12"))
	f.file(t, "a.png", year, []byte("123"))
	last := f.file(t, "b.cr2", raw, []byte("1234"))
	gone := f.file(t, "c.txt", raw, []byte("12345"))
	require.NoError(t, f.svc.SoftDeleteFile(f.ctx, testOwner, gone.ID))

	// Stale cache values must not leak into a full recompute.
	require.NoError(t, f.folders.UpdateMetadata(f.ctx, year.ID, models.FolderMetadata{TotalFiles: 99, TotalSize: 99}))

	meta, err := f.agg.Aggregate(f.ctx, shoots.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, meta.TotalFiles)
	assert.Equal(t, int64(9), meta.TotalSize)
	assert.Equal(t, 2, meta.TotalSubfolders)
	assert.Equal(t, []string{"cr2", "jpg", "png"}, meta.FileTypes)
	require.NotNil(t, meta.LastFileAdded)
	assert.True(t, meta.LastFileAdded.Equal(last.CreatedAt))

	yearMeta := f.reload(t, year.ID).Metadata
	assert.Equal(t, 2, yearMeta.TotalFiles)
	assert.Equal(t, int64(7), yearMeta.TotalSize)
	assert.Equal(t, 1, yearMeta.TotalSubfolders)

	assert.Equal(t, *meta, f.reload(t, shoots.ID).Metadata)
}

func TestAggregate_EmptyFolder(t *testing.T) {
	f := newFixture(t)
	empty := f.folder(t, "empty", nil)

	meta, err := f.agg.Aggregate(f.ctx, empty.ID)
	require.NoError(t, err)
	assert.Zero(t, meta.TotalFiles)
	assert.Zero(t, meta.TotalSubfolders)
	assert.NotNil(t, meta.FileTypes)
	assert.Empty(t, meta.FileTypes)
	assert.Nil(t, meta.LastFileAdded)
}

func TestAggregate_MissingFolder(t *testing.T) {
	f := newFixture(t)
	_, err := f.agg.Aggregate(f.ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

// Incremental lineage refreshes after each mutation must agree with a full
// recompute of the tree.
func TestRefreshLineage_AgreesWithFullRecompute(t *testing.T) {
	f := newFixture(t)
	shoots := f.folder(t, "Shoots", nil)
	year := f.folder(t, "2024", shoots)
	raw := f.folder(t, "raw", year)
	other := f.folder(t, "other", shoots)

	f.file(t, "a.jpg", raw, []byte("aaaa"))
	moving := f.file(t, "b.png", year, []byte("bb"))
	f.file(t, "c.gif", other, []byte("c"))
	_, err := f.svc.MoveFile(f.ctx, testOwner, moving.ID, &other.ID)
	require.NoError(t, err)
	_, err = f.svc.MoveFolder(f.ctx, testOwner, raw.ID, &other.ID)
	require.NoError(t, err)

	cached := map[string]models.FolderMetadata{}
	all, err := f.folders.Find(f.ctx, storageRepo.FolderFilter{ProjectID: testProject})
	require.NoError(t, err)
	for _, folder := range all {
		cached[folder.ID] = folder.Metadata
	}

	_, err = f.agg.Aggregate(f.ctx, shoots.ID)
	require.NoError(t, err)
	for _, id := range []string{shoots.ID, year.ID, raw.ID, other.ID} {
		assert.Equal(t, f.reload(t, id).Metadata, cached[id], "folder %s", id)
	}
}

func TestRefreshLineage_MissingStart(t *testing.T) {
	f := newFixture(t)
	err := f.agg.RefreshLineage(f.ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

// A stale cache on one child must not be summed into its ancestors by the
// refresh that follows the next mutation.
func TestRefreshLineage_IgnoresStaleChildCache(t *testing.T) {
	f := newFixture(t)
	shoots := f.folder(t, "Shoots", nil)
	year := f.folder(t, "2024", shoots)
	f.file(t, "a.png", year, []byte("123"))

	require.NoError(t, f.folders.UpdateMetadata(f.ctx, year.ID, models.FolderMetadata{TotalFiles: 99, TotalSize: 99}))

	f.file(t, "b.jpg", shoots, []byte("456"))

	shootsMeta := f.reload(t, shoots.ID).Metadata
	assert.Equal(t, 2, shootsMeta.TotalFiles)
	assert.Equal(t, int64(6), shootsMeta.TotalSize)
	assert.Equal(t, []string{"jpg", "png"}, shootsMeta.FileTypes)

	yearMeta := f.reload(t, year.ID).Metadata
	assert.Equal(t, 1, yearMeta.TotalFiles)
	assert.Equal(t, int64(3), yearMeta.TotalSize)
}
