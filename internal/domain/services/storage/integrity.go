package storage

import (
	"context"

	models "stowage/internal/domain/models/storage"
)

// Aggregator rolls file statistics up the folder tree.
type Aggregator interface {
	// Aggregate recomputes and persists the metadata of folderID from its
	// whole live subtree.
	Aggregate(ctx context.Context, folderID string) (*models.FolderMetadata, error)

	// RefreshLineage re-aggregates folderID and each of its ancestors.
	RefreshLineage(ctx context.Context, folderID string) error
}

// Verifier walks a folder subtree and reports integrity findings. It never
// mutates entities.
type Verifier interface {
	Verify(ctx context.Context, report *models.VerificationReport) error
}

// RepairEngine applies automatic fixes for the repairable findings of a report.
// Per-item failures are appended to the report as warnings, never returned.
type RepairEngine interface {
	Repair(ctx context.Context, report *models.VerificationReport) error
}

// VerifyRequest starts a verification of FolderID's subtree.
type VerifyRequest struct {
	FolderID string                     `json:"folder_id"`
	OwnerID  string                     `json:"-"`
	Options  models.VerificationOptions `json:"options"`
}

// VerificationService runs verifications and serves their reports.
type VerificationService interface {
	// Verify runs to completion and returns the final report. Infrastructure
	// failures are reported through Status and Error, not the returned error.
	Verify(ctx context.Context, req *VerifyRequest) (*models.VerificationReport, error)

	// Start launches a verification in the background and returns its id.
	Start(ctx context.Context, req *VerifyRequest) (string, error)

	// Get returns a stored report. Unknown or expired ids yield domain.ErrNotFound.
	Get(ctx context.Context, verificationID string) (*models.VerificationReport, error)
}
