package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"stowage/internal/config"
	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func finished(id string, end time.Time) *models.VerificationReport {
	return &models.VerificationReport{
		VerificationID: id,
		StartTime:      end.Add(-time.Minute),
		EndTime:        &end,
		Status:         models.VerificationCompleted,
	}
}

func TestRegistry_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(discardLogger())

	report := &models.VerificationReport{VerificationID: "v1", Status: models.VerificationRunning}
	require.NoError(t, r.Save(ctx, report))

	// Later changes to the caller's report are not visible until saved.
	report.Results.Errors = append(report.Results.Errors, models.Issue{Type: models.IssuePathMismatch})
	got, err := r.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, models.VerificationRunning, got.Status)
	assert.Empty(t, got.Results.Errors)

	_, err = r.Get(ctx, "unknown")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	err = r.Save(ctx, &models.VerificationReport{})
	assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
}

func TestRegistry_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	r := NewRegistry(discardLogger(), WithClock(clock.Now))

	start := clock.Now()
	require.NoError(t, r.Save(ctx, finished("old", start)))
	require.NoError(t, r.Save(ctx, &models.VerificationReport{VerificationID: "running", StartTime: start, Status: models.VerificationRunning}))

	clock.Advance(time.Hour)
	require.NoError(t, r.Save(ctx, finished("recent", clock.Now())))

	clock.Advance(config.VerificationTTL - time.Hour)
	assert.Zero(t, r.Sweep(), "nothing is older than the TTL yet")

	clock.Advance(time.Second)
	assert.Equal(t, 1, r.Sweep())
	_, err := r.Get(ctx, "old")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	clock.Advance(24 * time.Hour)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())

	_, err = r.Get(ctx, "running")
	require.NoError(t, err, "in-flight reports are never evicted")
}

func TestRegistry_StartStop(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	r := NewRegistry(discardLogger(), WithClock(clock.Now), WithSweepInterval(5*time.Millisecond))
	require.NoError(t, r.Save(ctx, finished("old", clock.Now())))
	clock.Advance(3 * time.Hour)

	r.Start(ctx)
	r.Start(ctx)
	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	r.Stop()
	r.Stop()
}

type memoryArchive struct {
	mu      sync.Mutex
	reports map[string]*models.VerificationReport
	ttls    map[string]time.Duration
	failPut bool
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{
		reports: make(map[string]*models.VerificationReport),
		ttls:    make(map[string]time.Duration),
	}
}

func (a *memoryArchive) Put(ctx context.Context, report *models.VerificationReport, ttl time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failPut {
		return errors.New("archive unavailable")
	}
	a.reports[report.VerificationID] = report.Clone()
	a.ttls[report.VerificationID] = ttl
	return nil
}

func (a *memoryArchive) Get(ctx context.Context, id string) (*models.VerificationReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	report, ok := a.reports[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return report.Clone(), nil
}

func TestRegistry_Archive(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	archive := newMemoryArchive()
	r := NewRegistry(discardLogger(), WithClock(clock.Now), WithArchive(archive))

	require.NoError(t, r.Save(ctx, &models.VerificationReport{VerificationID: "v1", Status: models.VerificationRunning}))
	assert.Empty(t, archive.reports, "only finished reports are archived")

	require.NoError(t, r.Save(ctx, finished("v1", clock.Now())))
	assert.Equal(t, config.VerificationTTL, archive.ttls["v1"])

	clock.Advance(3 * time.Hour)
	require.Equal(t, 1, r.Sweep())

	got, err := r.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, models.VerificationCompleted, got.Status)

	archive.failPut = true
	require.NoError(t, r.Save(ctx, finished("v2", clock.Now())), "archive failures do not fail the save")
}
