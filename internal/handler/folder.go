package handler

import (
	"log/slog"
	"net/http"

	models "stowage/internal/domain/models/storage"
	storageSvc "stowage/internal/domain/services/storage"
	"stowage/internal/httputil"
)

// FolderHandler handles folder HTTP requests
type FolderHandler struct {
	hierarchy  storageSvc.HierarchyService
	aggregator storageSvc.Aggregator
	logger     *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(hierarchy storageSvc.HierarchyService, aggregator storageSvc.Aggregator, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{
		hierarchy:  hierarchy,
		aggregator: aggregator,
		logger:     logger,
	}
}

// UpdateFolderRequest is the PATCH body. Absent fields are left alone; a
// null parent_id moves the folder to the project root.
type UpdateFolderRequest struct {
	Name     httputil.OptionalString `json:"name"`
	ParentID httputil.OptionalString `json:"parent_id"`
}

// CreateFolder creates a new folder
// POST /api/folders
// Returns 201 if created, 409 with existing folder if a sibling has the name
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req storageSvc.CreateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.OwnerID = userID

	folder, err := h.hierarchy.CreateFolder(r.Context(), &req)
	if err != nil {
		HandleCreateConflict(w, h.logger, err, func(id string) (*models.Folder, error) {
			return h.hierarchy.GetFolder(r.Context(), userID, id)
		})
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, folder)
}

// GetFolder returns a live folder
// GET /api/folders/{id}
func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "folder")
	if !ok {
		return
	}

	folder, err := h.hierarchy.GetFolder(r.Context(), userID, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// UpdateFolder renames and/or moves a folder
// PATCH /api/folders/{id}
func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "folder")
	if !ok {
		return
	}

	var req UpdateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Name.Present && !req.ParentID.Present {
		httputil.RespondError(w, http.StatusBadRequest, "name or parent_id is required")
		return
	}
	if req.Name.IsNull() {
		httputil.RespondError(w, http.StatusBadRequest, "name cannot be null")
		return
	}

	var (
		folder *models.Folder
		err    error
	)
	if req.Name.Present {
		folder, err = h.hierarchy.RenameFolder(r.Context(), userID, id, *req.Name.Value)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
	}
	if req.ParentID.Present {
		folder, err = h.hierarchy.MoveFolder(r.Context(), userID, id, req.ParentID.Value)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// DeleteFolder soft-deletes a folder with its whole subtree
// DELETE /api/folders/{id}
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "folder")
	if !ok {
		return
	}

	result, err := h.hierarchy.CascadeSoftDelete(r.Context(), userID, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// AggregateFolder recomputes the folder's metadata from its live subtree
// POST /api/folders/{id}/aggregate
func (h *FolderHandler) AggregateFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "folder")
	if !ok {
		return
	}

	if _, err := h.hierarchy.GetFolder(r.Context(), userID, id); err != nil {
		handleError(w, h.logger, err)
		return
	}

	meta, err := h.aggregator.Aggregate(r.Context(), id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, meta)
}
