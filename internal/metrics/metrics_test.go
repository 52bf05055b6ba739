package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	models "stowage/internal/domain/models/storage"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveVerification(&models.VerificationReport{}, time.Second)
		m.ObserveObjectOperation("head", time.Millisecond, nil)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestObserveVerification(t *testing.T) {
	m := New()

	m.ObserveVerification(&models.VerificationReport{
		Status: models.VerificationCompleted,
		Results: models.VerificationResults{
			IntegrityScore: 40,
			Errors: []models.Issue{
				{Type: models.IssueStorageFileMissing, Severity: models.SeverityHigh},
			},
			Repaired: []models.Repair{{Type: models.IssuePathMismatch}},
		},
	}, 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.verificationsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.issuesTotal.WithLabelValues("STORAGE_FILE_MISSING", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.repairsTotal.WithLabelValues("PATH_MISMATCH")))
}

func TestObserveObjectOperation(t *testing.T) {
	m := New()

	m.ObserveObjectOperation("head", time.Millisecond, nil)
	m.ObserveObjectOperation("head", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.objectOpsTotal.WithLabelValues("head", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.objectOpsTotal.WithLabelValues("head", "error")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stowage_object_store_operations_total"))
}
