package handler

import (
	"net/http"
)

// Register mounts the API routes on mux.
func Register(mux *http.ServeMux, projects *ProjectHandler, folders *FolderHandler, files *FileHandler, verifications *VerificationHandler) {
	mux.HandleFunc("POST /api/projects", projects.CreateProject)
	mux.HandleFunc("GET /api/projects/{id}", projects.GetProject)

	mux.HandleFunc("POST /api/folders", folders.CreateFolder)
	mux.HandleFunc("GET /api/folders/{id}", folders.GetFolder)
	mux.HandleFunc("PATCH /api/folders/{id}", folders.UpdateFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", folders.DeleteFolder)
	mux.HandleFunc("POST /api/folders/{id}/aggregate", folders.AggregateFolder)
	mux.HandleFunc("POST /api/folders/{id}/verify", verifications.VerifyFolder)

	mux.HandleFunc("POST /api/files", files.CreateFile)
	mux.HandleFunc("PATCH /api/files/{id}", files.UpdateFile)
	mux.HandleFunc("DELETE /api/files/{id}", files.DeleteFile)

	mux.HandleFunc("GET /api/verifications/{id}", verifications.GetVerification)
}

// HealthCheck reports liveness
// GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
