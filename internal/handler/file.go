package handler

import (
	"log/slog"
	"net/http"

	models "stowage/internal/domain/models/storage"
	storageSvc "stowage/internal/domain/services/storage"
	"stowage/internal/httputil"
)

// FileHandler handles file record HTTP requests. Object bytes are uploaded
// to the object store out of band; these endpoints only manage the records.
type FileHandler struct {
	hierarchy storageSvc.HierarchyService
	logger    *slog.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(hierarchy storageSvc.HierarchyService, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		hierarchy: hierarchy,
		logger:    logger,
	}
}

// UpdateFileRequest is the PATCH body. A null folder_id moves the file to
// the project root.
type UpdateFileRequest struct {
	Name     httputil.OptionalString `json:"name"`
	FolderID httputil.OptionalString `json:"folder_id"`
}

// CreateFile registers a file record
// POST /api/files
func (h *FileHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req storageSvc.CreateFileRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.OwnerID = userID

	file, err := h.hierarchy.CreateFile(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, file)
}

// UpdateFile renames and/or moves a file
// PATCH /api/files/{id}
func (h *FileHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "file")
	if !ok {
		return
	}

	var req UpdateFileRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Name.Present && !req.FolderID.Present {
		httputil.RespondError(w, http.StatusBadRequest, "name or folder_id is required")
		return
	}
	if req.Name.IsNull() {
		httputil.RespondError(w, http.StatusBadRequest, "name cannot be null")
		return
	}

	var (
		file *models.File
		err  error
	)
	if req.Name.Present {
		if file, err = h.hierarchy.RenameFile(r.Context(), userID, id, *req.Name.Value); err != nil {
			handleError(w, h.logger, err)
			return
		}
	}
	if req.FolderID.Present {
		if file, err = h.hierarchy.MoveFile(r.Context(), userID, id, req.FolderID.Value); err != nil {
			handleError(w, h.logger, err)
			return
		}
	}

	httputil.RespondJSON(w, http.StatusOK, file)
}

// DeleteFile soft-deletes a file record
// DELETE /api/files/{id}
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "file")
	if !ok {
		return
	}

	if err := h.hierarchy.SoftDeleteFile(r.Context(), userID, id); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondNoContent(w)
}
