package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageSvc "stowage/internal/domain/services/storage"
	"stowage/internal/httputil"
)

// VerificationHandler handles integrity verification requests
type VerificationHandler struct {
	service storageSvc.VerificationService
	logger  *slog.Logger
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(service storageSvc.VerificationService, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{
		service: service,
		logger:  logger,
	}
}

// StartedResponse is returned by asynchronous verifications.
type StartedResponse struct {
	VerificationID string                    `json:"verification_id"`
	Status         models.VerificationStatus `json:"status"`
}

// VerifyFolder verifies a folder subtree. The body is an optional
// VerificationOptions object; omitted switches keep their defaults.
// POST /api/folders/{id}/verify[?async=true]
// Returns 200 with the report, or 202 with the id when async
func (h *VerificationHandler) VerifyFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "folder")
	if !ok {
		return
	}

	opts := models.DefaultVerificationOptions()
	if err := httputil.ParseOptionalJSON(w, r, &opts); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := &storageSvc.VerifyRequest{
		FolderID: id,
		OwnerID:  userID,
		Options:  opts,
	}

	if r.URL.Query().Get("async") == "true" {
		verificationID, err := h.service.Start(r.Context(), req)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		w.Header().Set("Location", "/api/verifications/"+verificationID)
		httputil.RespondJSON(w, http.StatusAccepted, StartedResponse{
			VerificationID: verificationID,
			Status:         models.VerificationPending,
		})
		return
	}

	report, err := h.service.Verify(r.Context(), req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, report)
}

// GetVerification returns a stored report. Reports of other owners are
// reported as missing.
// GET /api/verifications/{id}
func (h *VerificationHandler) GetVerification(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "verification")
	if !ok {
		return
	}

	report, err := h.service.Get(r.Context(), id)
	if err == nil && report.OwnerID != userID {
		err = fmt.Errorf("verification %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, report)
}
