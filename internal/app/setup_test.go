package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"stowage/internal/config"
	models "stowage/internal/domain/models/storage"
	storageSvc "stowage/internal/domain/services/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(storeType string) *config.Config {
	return &config.Config{
		Environment: "test",
		ObjectStore: config.ObjectStoreConfig{Type: storeType},
		Verification: config.VerificationConfig{
			Concurrency:    4,
			StorageTimeout: time.Second,
			SweepInterval:  time.Minute,
		},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func TestSetup(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name string
		cfg  func(t *testing.T) *config.Config
	}{
		{"memory", func(t *testing.T) *config.Config { return testConfig("memory") }},
		{"badger", func(t *testing.T) *config.Config {
			cfg := testConfig("badger")
			cfg.ObjectStore.Badger.Path = t.TempDir()
			return cfg
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a, err := Setup(ctx, tt.cfg(t), logger)
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, a.Close()) })

			project, err := a.Projects.CreateProject(ctx, &storageSvc.CreateProjectRequest{OwnerID: "alice", Name: "Studio"})
			require.NoError(t, err)
			folder, err := a.Hierarchy.CreateFolder(ctx, &storageSvc.CreateFolderRequest{
				ProjectID: project.ID, OwnerID: "alice", Name: "Shoots",
			})
			require.NoError(t, err)

			report, err := a.Verification.Verify(ctx, &storageSvc.VerifyRequest{
				FolderID: folder.ID, OwnerID: "alice", Options: models.DefaultVerificationOptions(),
			})
			require.NoError(t, err)
			assert.Equal(t, models.VerificationCompleted, report.Status)
			assert.Equal(t, 100, report.Results.IntegrityScore)

			families, err := a.Metrics.Registry().Gather()
			require.NoError(t, err)
			var found bool
			for _, mf := range families {
				if mf.GetName() == "stowage_verifications_total" {
					found = true
				}
			}
			assert.True(t, found)
		})
	}
}
