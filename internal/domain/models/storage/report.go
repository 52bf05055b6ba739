package storage

import (
	"slices"
	"time"
)

// VerificationStatus is the lifecycle state of a verification run.
type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "pending"
	VerificationRunning   VerificationStatus = "running"
	VerificationCompleted VerificationStatus = "completed"
	VerificationFailed    VerificationStatus = "failed"
)

// IsTerminal reports whether no further transitions can happen.
func (s VerificationStatus) IsTerminal() bool {
	return s == VerificationCompleted || s == VerificationFailed
}

// Severity ranks an integrity finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IssueType names a kind of integrity finding.
type IssueType string

const (
	IssueFolderNotFound           IssueType = "FOLDER_NOT_FOUND"
	IssueOrphanedFolder           IssueType = "ORPHANED_FOLDER"
	IssueInvalidProject           IssueType = "INVALID_PROJECT"
	IssuePathMismatch             IssueType = "PATH_MISMATCH"
	IssueLevelMismatch            IssueType = "LEVEL_MISMATCH"
	IssueMissingMetadata          IssueType = "MISSING_METADATA"
	IssueMissingStorageKey        IssueType = "MISSING_STORAGE_KEY"
	IssueProjectMismatch          IssueType = "PROJECT_MISMATCH"
	IssueStorageFileMissing       IssueType = "STORAGE_FILE_MISSING"
	IssueSizeMismatch             IssueType = "SIZE_MISMATCH"
	IssueChecksumMismatch         IssueType = "CHECKSUM_MISMATCH"
	IssueOwnershipMismatch        IssueType = "OWNERSHIP_MISMATCH"
	IssueProjectPermissionWarning IssueType = "PROJECT_PERMISSION_WARNING"
	IssueOrphanedFile             IssueType = "ORPHANED_FILE"
	IssueRepairFailed             IssueType = "REPAIR_FAILED"
)

// Issue is one finding in a verification report. Expected/Actual carry the
// compared values when the finding is a mismatch.
type Issue struct {
	Type     IssueType `json:"type"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	FolderID string    `json:"folder_id,omitempty"`
	FileID   string    `json:"file_id,omitempty"`
	Field    string    `json:"field,omitempty"`
	Expected any       `json:"expected,omitempty"`
	Actual   any       `json:"actual,omitempty"`
}

// Repair records one fix applied by the repair engine.
type Repair struct {
	Type     IssueType `json:"type"`
	Action   string    `json:"action"`
	FolderID string    `json:"folder_id,omitempty"`
	FileID   string    `json:"file_id,omitempty"`
	Before   any       `json:"before,omitempty"`
	After    any       `json:"after,omitempty"`
}

// VerificationOptions enumerates every recognized verification switch.
// Use DefaultVerificationOptions for the documented defaults.
type VerificationOptions struct {
	CheckFiles       bool `json:"check_files"`
	CheckStorage     bool `json:"check_storage"`
	CheckMetadata    bool `json:"check_metadata"`
	CheckPermissions bool `json:"check_permissions"`
	DeepScan         bool `json:"deep_scan"` // downloads and re-hashes every object
	AutoRepair       bool `json:"auto_repair"`
}

// DefaultVerificationOptions returns the defaults: every cheap check on,
// deep scan and auto repair off.
func DefaultVerificationOptions() VerificationOptions {
	return VerificationOptions{
		CheckFiles:       true,
		CheckStorage:     true,
		CheckMetadata:    true,
		CheckPermissions: true,
	}
}

// VerificationResults holds the counters and findings of a run.
type VerificationResults struct {
	TotalFolders   int      `json:"total_folders"`
	TotalFiles     int      `json:"total_files"`
	ValidFolders   int      `json:"valid_folders"`
	ValidFiles     int      `json:"valid_files"`
	Errors         []Issue  `json:"errors"`
	Warnings       []Issue  `json:"warnings"`
	Repaired       []Repair `json:"repaired"`
	IntegrityScore int      `json:"integrity_score"`
}

// VerificationReport is the result of verifying one folder subtree.
type VerificationReport struct {
	VerificationID string              `json:"verification_id"`
	FolderID       string              `json:"folder_id"`
	OwnerID        string              `json:"owner_id"`
	ProjectID      string              `json:"project_id,omitempty"`
	StartTime      time.Time           `json:"start_time"`
	EndTime        *time.Time          `json:"end_time,omitempty"`
	Status         VerificationStatus  `json:"status"`
	Error          string              `json:"error,omitempty"`
	Options        VerificationOptions `json:"options"`
	Results        VerificationResults `json:"results"`
}

// Clone returns a copy that shares no slices with r.
func (r *VerificationReport) Clone() *VerificationReport {
	if r == nil {
		return nil
	}
	c := *r
	if r.EndTime != nil {
		end := *r.EndTime
		c.EndTime = &end
	}
	c.Results.Errors = slices.Clone(r.Results.Errors)
	c.Results.Warnings = slices.Clone(r.Results.Warnings)
	c.Results.Repaired = slices.Clone(r.Results.Repaired)
	return &c
}
