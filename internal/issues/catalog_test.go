package issues

import (
	"testing"

	models "stowage/internal/domain/models/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CoversEveryIssueType(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	all := []models.IssueType{
		models.IssueFolderNotFound,
		models.IssueOrphanedFolder,
		models.IssueInvalidProject,
		models.IssuePathMismatch,
		models.IssueLevelMismatch,
		models.IssueMissingMetadata,
		models.IssueMissingStorageKey,
		models.IssueProjectMismatch,
		models.IssueStorageFileMissing,
		models.IssueSizeMismatch,
		models.IssueChecksumMismatch,
		models.IssueOwnershipMismatch,
		models.IssueProjectPermissionWarning,
		models.IssueOrphanedFile,
		models.IssueRepairFailed,
	}
	for _, typ := range all {
		_, ok := c.Lookup(typ)
		assert.True(t, ok, "missing catalog entry for %s", typ)
	}
	assert.Len(t, c.Types(), len(all))
}

func TestCatalog_Classification(t *testing.T) {
	c := Default()

	tests := []struct {
		typ        models.IssueType
		severity   models.Severity
		warning    bool
		repairable bool
	}{
		{models.IssueOrphanedFolder, models.SeverityHigh, false, false},
		{models.IssuePathMismatch, models.SeverityMedium, false, true},
		{models.IssueLevelMismatch, models.SeverityLow, false, true},
		{models.IssueChecksumMismatch, models.SeverityCritical, false, false},
		{models.IssueOrphanedFile, models.SeverityMedium, false, true},
		{models.IssueProjectPermissionWarning, models.SeverityLow, true, false},
		{models.IssueRepairFailed, models.SeverityLow, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			issue := c.New(tt.typ, "msg")
			assert.Equal(t, tt.severity, issue.Severity)
			assert.Equal(t, tt.warning, c.IsWarning(tt.typ))
			assert.Equal(t, tt.repairable, c.Repairable(tt.typ))
		})
	}
}

func TestCatalog_Score(t *testing.T) {
	c := Default()
	issue := func(s models.Severity) models.Issue { return models.Issue{Severity: s} }

	tests := []struct {
		name  string
		valid int
		total int
		errs  []models.Issue
		want  int
	}{
		{"empty run", 0, 0, nil, 100},
		{"all valid", 5, 5, nil, 100},
		{"one high of two", 1, 2, []models.Issue{issue(models.SeverityHigh)}, 40},
		{"low costs nothing", 1, 2, []models.Issue{issue(models.SeverityLow)}, 50},
		{"clamped at zero", 0, 3, []models.Issue{issue(models.SeverityCritical)}, 0},
		{"mixed", 8, 10, []models.Issue{issue(models.SeverityCritical), issue(models.SeverityMedium)}, 55},
		{"rounds up", 2, 3, nil, 67},
		{"rounds down", 1, 3, nil, 33},
		{"rounds before penalty", 2, 3, []models.Issue{issue(models.SeverityMedium)}, 62},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Score(tt.valid, tt.total, tt.errs))
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "issues: ["},
		{"unknown kind", "penalties: {low: 0}\nissues:\n  - {type: X, severity: low, kind: note}"},
		{"no penalty", "penalties: {}\nissues:\n  - {type: X, severity: low, kind: error}"},
		{"duplicate", "penalties: {low: 0}\nissues:\n  - {type: X, severity: low, kind: error}\n  - {type: X, severity: low, kind: error}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
