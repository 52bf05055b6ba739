package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	models "stowage/internal/domain/models/storage"
	storageSvc "stowage/internal/domain/services/storage"
	"stowage/internal/issues"
	"stowage/internal/middleware"
	"stowage/internal/objectstore"
	"stowage/internal/repository/memory"
	"stowage/internal/service/auth"
	"stowage/internal/service/storage"
	"stowage/internal/service/verification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	handler      http.Handler
	objects      *objectstore.MemoryStore
	verification *verification.Service
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.NewStore()
	folders := memory.NewFolderRepository(store)
	files := memory.NewFileRepository(store)
	projects := memory.NewProjectRepository(store)
	require.NoError(t, projects.Create(context.Background(), &models.Project{ID: "p1", OwnerID: "alice", Name: "Studio"}))

	objects := objectstore.NewMemoryStore()
	tx := memory.NewTransactionManager()
	authorizer := auth.NewOwnerBasedAuthorizer(projects, folders, files)
	resolver := storage.NewPathResolver()
	aggregator := storage.NewAggregator(folders, files, logger)
	hierarchy := storage.NewHierarchyService(folders, files, resolver, aggregator, tx, authorizer, logger)
	catalog := issues.Default()
	verifier := storage.NewVerifier(folders, files, projects, objects, resolver, catalog, storage.VerifierConfig{}, logger)
	repair := storage.NewRepairEngine(folders, files, resolver, tx, catalog, logger)
	svc := verification.NewService(folders, verifier, repair, authorizer, verification.NewRegistry(logger), nil, logger)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", HealthCheck)
	Register(mux,
		NewProjectHandler(storage.NewProjectService(projects, authorizer, logger), logger),
		NewFolderHandler(hierarchy, aggregator, logger),
		NewFileHandler(hierarchy, logger),
		NewVerificationHandler(svc, logger),
	)

	return &apiFixture{
		handler:      middleware.HeaderAuthMiddleware()(mux),
		objects:      objects,
		verification: svc,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if owner != "" {
		req.Header.Set(middleware.OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *apiFixture) createFolder(t *testing.T, name string, parentID *string) models.Folder {
	t.Helper()
	body := map[string]any{"project_id": "p1", "name": name}
	if parentID != nil {
		body["parent_id"] = *parentID
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/folders", "alice", string(payload))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Folder](t, rec)
}

func (f *apiFixture) createFile(t *testing.T, name, folderID, content string) models.File {
	t.Helper()
	key := "objects/" + name
	require.NoError(t, f.objects.PutObject(context.Background(), key, bytes.NewReader([]byte(content)), int64(len(content))))

	payload, err := json.Marshal(storageSvc.CreateFileRequest{
		ProjectID:  "p1",
		FolderID:   &folderID,
		Name:       name,
		StorageKey: key,
		Size:       int64(len(content)),
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/files", "alice", string(payload))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.File](t, rec)
}

func TestHealthIsPublic(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProjectEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/projects", "bob", `{"name":"  Portfolio "}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decode[models.Project](t, rec)
	assert.Equal(t, "Portfolio", project.Name)
	assert.Equal(t, "bob", project.OwnerID)

	rec = f.do(t, http.MethodGet, "/api/projects/"+project.ID, "bob", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/projects/"+project.ID, "alice", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/projects", "bob", `{"name":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFolderEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	shoots := f.createFolder(t, "Brand Photos", nil)
	assert.Equal(t, "/brand-photos", shoots.Path)
	child := f.createFolder(t, "2024", &shoots.ID)
	assert.Equal(t, "/Brand Photos/2024", child.FullPath)

	t.Run("duplicate returns existing folder", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/folders", "alice", `{"project_id":"p1","name":"Brand Photos"}`)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, shoots.ID, decode[models.Folder](t, rec).ID)
	})

	t.Run("get", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/folders/"+child.ID, "alice", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, child.ID, decode[models.Folder](t, rec).ID)
	})

	t.Run("rename cascades", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/folders/"+shoots.ID, "alice", `{"name":"Archive"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "/archive", decode[models.Folder](t, rec).Path)

		rec = f.do(t, http.MethodGet, "/api/folders/"+child.ID, "alice", "")
		assert.Equal(t, "/Archive/2024", decode[models.Folder](t, rec).FullPath)
	})

	t.Run("move to root with null parent", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/folders/"+child.ID, "alice", `{"parent_id":null}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		moved := decode[models.Folder](t, rec)
		assert.Nil(t, moved.ParentID)
		assert.Equal(t, 0, moved.Depth)
	})

	t.Run("cyclic move is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/folders/"+shoots.ID, "alice", `{"parent_id":"`+shoots.ID+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty patch", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/folders/"+shoots.ID, "alice", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/api/folders/"+shoots.ID, "alice", "")
		require.Equal(t, http.StatusOK, rec.Code)
		result := decode[storageSvc.DeleteResult](t, rec)
		assert.Equal(t, int64(1), result.DeletedFolders)

		rec = f.do(t, http.MethodGet, "/api/folders/"+shoots.ID, "alice", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestFolderRejections(t *testing.T) {
	f := newAPIFixture(t)
	shoots := f.createFolder(t, "Shoots", nil)

	tests := []struct {
		name   string
		method string
		path   string
		owner  string
		body   string
		status int
	}{
		{"no owner", http.MethodGet, "/api/folders/" + shoots.ID, "", "", http.StatusUnauthorized},
		{"stranger", http.MethodGet, "/api/folders/" + shoots.ID, "bob", "", http.StatusForbidden},
		{"missing folder", http.MethodGet, "/api/folders/nope", "alice", "", http.StatusNotFound},
		{"bad json", http.MethodPost, "/api/folders", "alice", `{"name":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/folders", "alice", `{"project_id":"p1","name":"x","color":"red"}`, http.StatusBadRequest},
		{"separator in name", http.MethodPost, "/api/folders", "alice", `{"project_id":"p1","name":"a/b"}`, http.StatusBadRequest},
		{"null name", http.MethodPatch, "/api/folders/" + shoots.ID, "alice", `{"name":null}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.owner, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestFileEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	shoots := f.createFolder(t, "Shoots", nil)
	other := f.createFolder(t, "Other", nil)
	file := f.createFile(t, "a.jpg", shoots.ID, "abc")
	assert.Equal(t, "/Shoots/a.jpg", file.FullPath)

	rec := f.do(t, http.MethodPatch, "/api/files/"+file.ID, "alice", `{"name":"b.jpg","folder_id":"`+other.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.File](t, rec)
	assert.Equal(t, "b.jpg", updated.Name)
	assert.Equal(t, "/Other/b.jpg", updated.FullPath)

	rec = f.do(t, http.MethodDelete, "/api/files/"+file.ID, "alice", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/files/"+file.ID, "bob", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAggregateEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	shoots := f.createFolder(t, "Shoots", nil)
	day := f.createFolder(t, "Day 1", &shoots.ID)
	f.createFile(t, "a.jpg", shoots.ID, "abc")
	f.createFile(t, "b.png", day.ID, "hello")

	rec := f.do(t, http.MethodPost, "/api/folders/"+shoots.ID+"/aggregate", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	meta := decode[models.FolderMetadata](t, rec)
	assert.Equal(t, 2, meta.TotalFiles)
	assert.Equal(t, 1, meta.TotalSubfolders)
	assert.Equal(t, int64(8), meta.TotalSize)
	assert.Equal(t, []string{"jpg", "png"}, meta.FileTypes)
}

func TestVerifyEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	shoots := f.createFolder(t, "Shoots", nil)
	f.createFile(t, "a.jpg", shoots.ID, "abc")

	t.Run("synchronous with default options", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/folders/"+shoots.ID+"/verify", "alice", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		report := decode[models.VerificationReport](t, rec)
		assert.Equal(t, models.VerificationCompleted, report.Status)
		assert.Equal(t, 100, report.Results.IntegrityScore)
		assert.Equal(t, models.DefaultVerificationOptions(), report.Options)
		assert.NotNil(t, report.Results.Errors)
	})

	t.Run("options override defaults", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/folders/"+shoots.ID+"/verify", "alice", `{"check_storage":false}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		report := decode[models.VerificationReport](t, rec)
		assert.False(t, report.Options.CheckStorage)
		assert.True(t, report.Options.CheckFiles)
	})

	t.Run("asynchronous", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/folders/"+shoots.ID+"/verify?async=true", "alice", "")
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		started := decode[StartedResponse](t, rec)
		assert.Equal(t, "/api/verifications/"+started.VerificationID, rec.Header().Get("Location"))

		f.verification.Wait()
		rec = f.do(t, http.MethodGet, "/api/verifications/"+started.VerificationID, "alice", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.VerificationCompleted, decode[models.VerificationReport](t, rec).Status)

		rec = f.do(t, http.MethodGet, "/api/verifications/"+started.VerificationID, "bob", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown verification", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/verifications/nope", "alice", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("stranger cannot verify", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/folders/"+shoots.ID+"/verify", "bob", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
