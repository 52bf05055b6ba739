// Package app wires repositories, the object store and the storage services
// from configuration. Both the HTTP server and the verify CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stowage/internal/config"
	"stowage/internal/domain/repositories"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"
	"stowage/internal/issues"
	"stowage/internal/metrics"
	"stowage/internal/objectstore"
	badgerstore "stowage/internal/objectstore/badger"
	s3store "stowage/internal/objectstore/s3"
	"stowage/internal/repository/memory"
	"stowage/internal/repository/postgres"
	"stowage/internal/service/auth"
	"stowage/internal/service/storage"
	"stowage/internal/service/verification"

	"github.com/redis/go-redis/v9"
)

// Repositories groups the entity stores.
type Repositories struct {
	Projects  storageRepo.ProjectRepository
	Folders   storageRepo.FolderRepository
	Files     storageRepo.FileRepository
	TxManager repositories.TransactionManager
}

// App holds every long-lived component.
type App struct {
	Repos        Repositories
	Objects      objectstore.Store
	Metrics      *metrics.Metrics
	Authorizer   storageSvc.ResourceAuthorizer
	Projects     storageSvc.ProjectService
	Hierarchy    storageSvc.HierarchyService
	Aggregator   storageSvc.Aggregator
	Registry     *verification.Registry
	Verification *verification.Service

	closers []func() error
}

// Setup builds the application from cfg. Call Close when done, even after a
// partial failure.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
	}

	repos, err := a.setupRepositories(ctx, cfg, logger)
	if err != nil {
		return a, err
	}
	a.Repos = repos

	store, err := a.setupObjectStore(ctx, cfg, logger)
	if err != nil {
		return a, err
	}
	if a.Metrics != nil {
		store = objectstore.WithObserver(store, a.Metrics)
	}
	a.Objects = store

	catalog, err := issues.Load()
	if err != nil {
		return a, fmt.Errorf("load issue catalog: %w", err)
	}

	a.Authorizer = auth.NewOwnerBasedAuthorizer(repos.Projects, repos.Folders, repos.Files)
	resolver := storage.NewPathResolver()
	a.Aggregator = storage.NewAggregator(repos.Folders, repos.Files, logger)
	a.Projects = storage.NewProjectService(repos.Projects, a.Authorizer, logger)
	a.Hierarchy = storage.NewHierarchyService(repos.Folders, repos.Files, resolver, a.Aggregator, repos.TxManager, a.Authorizer, logger)

	verifier := storage.NewVerifier(repos.Folders, repos.Files, repos.Projects, a.Objects, resolver, catalog, storage.VerifierConfig{
		Concurrency:    cfg.Verification.Concurrency,
		StorageTimeout: cfg.Verification.StorageTimeout,
	}, logger)
	repair := storage.NewRepairEngine(repos.Folders, repos.Files, resolver, repos.TxManager, catalog, logger)

	registryOpts := []verification.Option{verification.WithSweepInterval(cfg.Verification.SweepInterval)}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return a, fmt.Errorf("connect to redis: %w", err)
		}
		registryOpts = append(registryOpts, verification.WithArchive(verification.NewRedisArchive(client, cfg.Redis.Prefix)))
		logger.Info("verification archive enabled", "redis_addr", cfg.Redis.Addr)
	}
	a.Registry = verification.NewRegistry(logger, registryOpts...)

	var recorder verification.Recorder
	if a.Metrics != nil {
		recorder = a.Metrics
	}
	a.Verification = verification.NewService(repos.Folders, verifier, repair, a.Authorizer, a.Registry, recorder, logger)

	return a, nil
}

func (a *App) setupRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Repositories, error) {
	if cfg.Database.URL == "" {
		logger.Warn("no database configured, using in-memory repositories")
		store := memory.NewStore()
		return Repositories{
			Projects:  memory.NewProjectRepository(store),
			Folders:   memory.NewFolderRepository(store),
			Files:     memory.NewFileRepository(store),
			TxManager: memory.NewTransactionManager(),
		}, nil
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.Database.URL)
	if err != nil {
		return Repositories{}, fmt.Errorf("create connection pool: %w", err)
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		return Repositories{}, err
	}
	logger.Info("database connected", "table_prefix", cfg.TablePrefix)

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	return Repositories{
		Projects:  postgres.NewProjectRepository(repoConfig),
		Folders:   postgres.NewFolderRepository(repoConfig),
		Files:     postgres.NewFileRepository(repoConfig),
		TxManager: postgres.NewTransactionManager(pool, logger),
	}, nil
}

func (a *App) setupObjectStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (objectstore.Store, error) {
	switch cfg.ObjectStore.Type {
	case "s3":
		client, err := s3store.NewClient(ctx, cfg.ObjectStore.S3)
		if err != nil {
			return nil, err
		}
		store, err := s3store.New(ctx, s3store.Config{
			Client:    client,
			Bucket:    cfg.ObjectStore.S3.Bucket,
			KeyPrefix: cfg.ObjectStore.S3.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("object store ready", "type", "s3", "bucket", cfg.ObjectStore.S3.Bucket)
		return store, nil
	case "badger":
		store, err := badgerstore.Open(badgerstore.Config{Path: cfg.ObjectStore.Badger.Path})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		logger.Info("object store ready", "type", "badger", "path", cfg.ObjectStore.Badger.Path)
		return store, nil
	default:
		logger.Warn("using in-memory object store; contents are lost on exit")
		return objectstore.NewMemoryStore(), nil
	}
}

// Close releases connections and files in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
