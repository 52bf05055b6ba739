// Package metrics exposes Prometheus metrics for verification runs, repairs
// and object store traffic.
//
// A nil *Metrics is valid: every method is a no-op, so components can be
// built with metrics disabled.
package metrics

import (
	"net/http"
	"time"

	models "stowage/internal/domain/models/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	verificationsTotal   *prometheus.CounterVec
	verificationDuration prometheus.Histogram
	integrityScore       prometheus.Histogram
	issuesTotal          *prometheus.CounterVec
	repairsTotal         *prometheus.CounterVec
	objectOpsTotal       *prometheus.CounterVec
	objectOpDuration     *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Metrics{
		registry: reg,
		verificationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stowage_verifications_total",
				Help: "Total number of verification runs by final status",
			},
			[]string{"status"},
		),
		verificationDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stowage_verification_duration_seconds",
				Help:    "Duration of verification runs in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		integrityScore: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stowage_integrity_score",
				Help:    "Integrity score of completed verification runs",
				Buckets: []float64{0, 25, 50, 75, 90, 95, 99, 100},
			},
		),
		issuesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stowage_integrity_issues_total",
				Help: "Total number of integrity issues found by type and severity",
			},
			[]string{"type", "severity"},
		),
		repairsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stowage_repairs_total",
				Help: "Total number of repairs applied by issue type",
			},
			[]string{"type"},
		),
		objectOpsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stowage_object_store_operations_total",
				Help: "Total number of object store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		objectOpDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "stowage_object_store_operation_duration_seconds",
				Help: "Duration of object store operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
					30.0,  // 30s
				},
			},
			[]string{"operation"},
		),
	}
}

// Registry returns the underlying registry, or nil when m is nil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveVerification records a finished run.
func (m *Metrics) ObserveVerification(report *models.VerificationReport, duration time.Duration) {
	if m == nil || report == nil {
		return
	}

	m.verificationsTotal.WithLabelValues(string(report.Status)).Inc()
	m.verificationDuration.Observe(duration.Seconds())
	if report.Status == models.VerificationCompleted {
		m.integrityScore.Observe(float64(report.Results.IntegrityScore))
	}
	for _, issue := range report.Results.Errors {
		m.issuesTotal.WithLabelValues(string(issue.Type), string(issue.Severity)).Inc()
	}
	for _, issue := range report.Results.Warnings {
		m.issuesTotal.WithLabelValues(string(issue.Type), string(issue.Severity)).Inc()
	}
	for _, repair := range report.Results.Repaired {
		m.repairsTotal.WithLabelValues(string(repair.Type)).Inc()
	}
}

// ObserveObjectOperation implements objectstore.Observer.
func (m *Metrics) ObserveObjectOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	m.objectOpsTotal.WithLabelValues(operation, status).Inc()
	m.objectOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
