package verification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stowage/internal/config"
	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
)

// Archive keeps terminal reports outside the process so they survive a
// restart and can be read by other instances.
type Archive interface {
	Put(ctx context.Context, report *models.VerificationReport, ttl time.Duration) error
	Get(ctx context.Context, verificationID string) (*models.VerificationReport, error)
}

// Registry tracks in-flight and recently finished verification reports.
//
// Reports are stored and returned as copies, so a running verification can
// keep mutating its own report while readers see consistent snapshots.
// A sweep on its own ticker evicts finished reports once they are older
// than the TTL. In-flight reports are never evicted.
type Registry struct {
	mu      sync.RWMutex
	reports map[string]*models.VerificationReport

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	archive       Archive
	logger        *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Registry
type Option func(*Registry)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithArchive adds a second tier for finished reports.
func WithArchive(a Archive) Option {
	return func(r *Registry) { r.archive = a }
}

// WithSweepInterval sets how often expired reports are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sweepInterval = d
		}
	}
}

// NewRegistry creates an empty registry. Call Start to run the sweep.
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		reports:       make(map[string]*models.VerificationReport),
		ttl:           config.VerificationTTL,
		sweepInterval: 10 * time.Minute,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the sweep goroutine. It stops when ctx is done or Stop is called.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					r.logger.Debug("verification reports evicted", "count", n)
				}
			}
		}
	}()
}

// Stop ends the sweep goroutine and waits for it to exit.
func (r *Registry) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Save stores a snapshot of report. Finished reports are also handed to the
// archive; an archive failure is logged and does not fail the save.
func (r *Registry) Save(ctx context.Context, report *models.VerificationReport) error {
	if report.VerificationID == "" {
		return fmt.Errorf("%w: verification id is required", domain.ErrValidation)
	}

	snapshot := report.Clone()
	r.mu.Lock()
	r.reports[report.VerificationID] = snapshot
	r.mu.Unlock()

	if r.archive != nil && report.Status.IsTerminal() {
		if err := r.archive.Put(ctx, snapshot, r.ttl); err != nil {
			r.logger.Warn("failed to archive verification report",
				"verification_id", report.VerificationID,
				"error", err,
			)
		}
	}
	return nil
}

// Get returns a copy of the report, consulting the archive on a local miss.
func (r *Registry) Get(ctx context.Context, verificationID string) (*models.VerificationReport, error) {
	r.mu.RLock()
	report, ok := r.reports[verificationID]
	r.mu.RUnlock()
	if ok {
		return report.Clone(), nil
	}

	if r.archive != nil {
		archived, err := r.archive.Get(ctx, verificationID)
		if err == nil {
			return archived, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("read archived verification: %w", err)
		}
	}
	return nil, fmt.Errorf("verification %s: %w", verificationID, domain.ErrNotFound)
}

// Sweep evicts finished reports whose end time is older than the TTL and
// returns how many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, report := range r.reports {
		if !report.Status.IsTerminal() || report.EndTime == nil {
			continue
		}
		if report.EndTime.Before(cutoff) {
			delete(r.reports, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of reports held in memory.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reports)
}
