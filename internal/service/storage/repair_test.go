package storage

import (
	"testing"

	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repairOptions() models.VerificationOptions {
	opts := models.DefaultVerificationOptions()
	opts.AutoRepair = true
	return opts
}

func TestRepair_DetachesOrphanedFile(t *testing.T) {
	f := newFixture(t)
	keep := f.folder(t, "Keep", nil)
	doomed := f.folder(t, "Doomed", nil)
	orphan := f.file(t, "lost.jpg", doomed, []byte("lost"))
	_, err := f.folders.UpdateMany(f.ctx,
		storageRepo.FolderFilter{IDs: []string{doomed.ID}},
		storageRepo.FolderPatch{IsDeleted: storageRepo.Bool(true)},
	)
	require.NoError(t, err)

	report := f.verify(t, keep.ID, repairOptions())
	require.NoError(t, f.repair.Repair(f.ctx, report))

	require.Len(t, report.Results.Repaired, 1)
	repair := report.Results.Repaired[0]
	assert.Equal(t, models.IssueOrphanedFile, repair.Type)
	assert.Equal(t, ActionDetachedToRoot, repair.Action)
	assert.Equal(t, orphan.ID, repair.FileID)
	assert.Equal(t, "/lost.jpg", repair.After)

	got := f.reloadFile(t, orphan.ID)
	assert.Nil(t, got.FolderID)
	assert.Equal(t, "/lost.jpg", got.FullPath)

	// The same report again finds nothing left to do.
	require.NoError(t, f.repair.Repair(f.ctx, report))
	assert.Len(t, report.Results.Repaired, 1)
	assert.Empty(t, report.Results.Warnings)

	assert.Empty(t, f.verify(t, keep.ID, repairOptions()).Results.Errors)
}

func TestRepair_RecomputesPathsAndSubtree(t *testing.T) {
	f := newFixture(t)
	shoots := f.folder(t, "Shoots", nil)
	year := f.folder(t, "2024", shoots)
	raw := f.folder(t, "raw", year)
	photo := f.file(t, "a.jpg", raw, []byte("a"))

	// Corrupt a mid-level folder and, independently, its child.
	corrupt := f.reload(t, year.ID)
	corrupt.Path, corrupt.FullPath, corrupt.Depth = "/wrong", "/Wrong", 7
	require.NoError(t, f.folders.Update(f.ctx, corrupt))
	child := f.reload(t, raw.ID)
	child.Depth = 3
	require.NoError(t, f.folders.Update(f.ctx, child))

	// The child is judged against its stored parent, so it mismatches too.
	report := f.verify(t, shoots.ID, repairOptions())
	require.Equal(t, []models.IssueType{
		models.IssuePathMismatch,
		models.IssueLevelMismatch,
		models.IssuePathMismatch,
		models.IssueLevelMismatch,
	}, issueTypes(report.Results.Errors))

	require.NoError(t, f.repair.Repair(f.ctx, report))

	// Fixing the parent cascades to the child, so only one repair is recorded.
	require.Len(t, report.Results.Repaired, 1)
	repair := report.Results.Repaired[0]
	assert.Equal(t, ActionRecomputedPath, repair.Action)
	assert.Equal(t, year.ID, repair.FolderID)
	assert.Equal(t, storageSvc.PathResolution{Path: "/wrong", FullPath: "/Wrong", Depth: 7}, repair.Before)
	assert.Equal(t, storageSvc.PathResolution{Path: "/shoots/2024", FullPath: "/Shoots/2024", Depth: 1}, repair.After)

	assert.Equal(t, 2, f.reload(t, raw.ID).Depth)
	assert.Equal(t, "/Shoots/2024/raw/a.jpg", f.reloadFile(t, photo.ID).FullPath)

	after := f.verify(t, shoots.ID, repairOptions())
	assert.Empty(t, after.Results.Errors)
	require.NoError(t, f.repair.Repair(f.ctx, after))
	assert.Empty(t, after.Results.Repaired)
}

func TestRepair_FailureBecomesWarning(t *testing.T) {
	f := newFixture(t)
	shoots := f.folder(t, "Shoots", nil)
	year := f.folder(t, "2024", shoots)

	corrupt := f.reload(t, year.ID)
	corrupt.Depth = 9
	require.NoError(t, f.folders.Update(f.ctx, corrupt))
	report := f.verify(t, shoots.ID, repairOptions())
	require.Len(t, report.Results.Errors, 1)

	// The parent disappears between verification and repair.
	_, err := f.folders.UpdateMany(f.ctx,
		storageRepo.FolderFilter{IDs: []string{shoots.ID}},
		storageRepo.FolderPatch{IsDeleted: storageRepo.Bool(true)},
	)
	require.NoError(t, err)

	require.NoError(t, f.repair.Repair(f.ctx, report))
	assert.Empty(t, report.Results.Repaired)
	require.Equal(t, []models.IssueType{models.IssueRepairFailed}, issueTypes(report.Results.Warnings))
	assert.Equal(t, models.SeverityLow, report.Results.Warnings[0].Severity)
	assert.Equal(t, year.ID, report.Results.Warnings[0].FolderID)
}

func TestRepair_SkipsUnrepairable(t *testing.T) {
	f := newFixture(t)
	shoots := f.folder(t, "Shoots", nil)
	gone := f.file(t, "gone.jpg", shoots, []byte("x"))
	require.NoError(t, f.objects.DeleteObject(f.ctx, gone.StorageKey))

	report := f.verify(t, shoots.ID, repairOptions())
	require.Equal(t, []models.IssueType{models.IssueStorageFileMissing}, issueTypes(report.Results.Errors))

	require.NoError(t, f.repair.Repair(f.ctx, report))
	assert.Empty(t, report.Results.Repaired)
	assert.Empty(t, report.Results.Warnings)
}
