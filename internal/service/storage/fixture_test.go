package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"
	"stowage/internal/issues"
	"stowage/internal/objectstore"
	"stowage/internal/repository/memory"
	"stowage/internal/service/auth"

	"github.com/stretchr/testify/require"
)

const (
	testProject = "p1"
	testOwner   = "alice"
)

// fixture wires the storage services over the in-memory repositories.
type fixture struct {
	ctx      context.Context
	store    *memory.Store
	folders  storageRepo.FolderRepository
	files    storageRepo.FileRepository
	projects storageRepo.ProjectRepository
	objects  *objectstore.MemoryStore
	resolver storageSvc.PathResolver
	agg      storageSvc.Aggregator
	svc      storageSvc.HierarchyService
	verifier storageSvc.Verifier
	repair   storageSvc.RepairEngine
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore lets a test put a wrapper in front of the object store.
func newFixtureWithStore(t *testing.T, wrap func(objectstore.Store) objectstore.Store) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.SetClock(tickingClock())

	f := &fixture{
		ctx:      context.Background(),
		store:    store,
		folders:  memory.NewFolderRepository(store),
		files:    memory.NewFileRepository(store),
		projects: memory.NewProjectRepository(store),
		objects:  objectstore.NewMemoryStore(),
		resolver: NewPathResolver(),
	}
	var objects objectstore.Store = f.objects
	if wrap != nil {
		objects = wrap(objects)
	}

	logger := discardLogger()
	catalog := issues.Default()
	tx := memory.NewTransactionManager()
	authorizer := auth.NewOwnerBasedAuthorizer(f.projects, f.folders, f.files)

	f.agg = NewAggregator(f.folders, f.files, logger)
	f.svc = NewHierarchyService(f.folders, f.files, f.resolver, f.agg, tx, authorizer, logger)
	f.verifier = NewVerifier(f.folders, f.files, f.projects, objects, f.resolver, catalog,
		VerifierConfig{Concurrency: 4, StorageTimeout: time.Second}, logger)
	f.repair = NewRepairEngine(f.folders, f.files, f.resolver, tx, catalog, logger)

	require.NoError(t, f.projects.Create(f.ctx, &models.Project{ID: testProject, OwnerID: testOwner, Name: "Studio"}))
	return f
}

func (f *fixture) folder(t *testing.T, name string, parent *models.Folder) *models.Folder {
	t.Helper()
	req := &storageSvc.CreateFolderRequest{ProjectID: testProject, OwnerID: testOwner, Name: name}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	folder, err := f.svc.CreateFolder(f.ctx, req)
	require.NoError(t, err)
	return folder
}

// file stores content in the object store and records it with a sha256 checksum.
func (f *fixture) file(t *testing.T, name string, folder *models.Folder, content []byte) *models.File {
	t.Helper()
	key := "objects/" + name
	require.NoError(t, f.objects.PutObject(f.ctx, key, bytes.NewReader(content), int64(len(content))))

	req := &storageSvc.CreateFileRequest{
		ProjectID:  testProject,
		OwnerID:    testOwner,
		Name:       name,
		StorageKey: key,
		Size:       int64(len(content)),
		Checksum:   sha256Hex(content),
	}
	if folder != nil {
		req.FolderID = &folder.ID
	}
	file, err := f.svc.CreateFile(f.ctx, req)
	require.NoError(t, err)
	return file
}

func (f *fixture) reload(t *testing.T, id string) *models.Folder {
	t.Helper()
	folder, err := f.folders.GetByID(f.ctx, id)
	require.NoError(t, err)
	return folder
}

func (f *fixture) reloadFile(t *testing.T, id string) *models.File {
	t.Helper()
	file, err := f.files.GetByID(f.ctx, id)
	require.NoError(t, err)
	return file
}

func (f *fixture) verify(t *testing.T, folderID string, opts models.VerificationOptions) *models.VerificationReport {
	t.Helper()
	report := newReport(folderID, opts)
	require.NoError(t, f.verifier.Verify(f.ctx, report))
	return report
}

func newReport(folderID string, opts models.VerificationOptions) *models.VerificationReport {
	return &models.VerificationReport{
		VerificationID: "v-test",
		FolderID:       folderID,
		OwnerID:        testOwner,
		Status:         models.VerificationRunning,
		Options:        opts,
	}
}

func bytesOf(n int) io.Reader {
	return bytes.NewReader(make([]byte, n))
}

func bytesFrom(s string) io.Reader {
	return bytes.NewReader([]byte(s))
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func issueTypes(list []models.Issue) []models.IssueType {
	out := make([]models.IssueType, len(list))
	for i, issue := range list {
		out[i] = issue.Type
	}
	return out
}
