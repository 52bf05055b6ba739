package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"

	"github.com/google/uuid"
)

// Recorder observes finished verifications.
type Recorder interface {
	ObserveVerification(report *models.VerificationReport, duration time.Duration)
}

// Service runs verifications and keeps their reports in a Registry.
type Service struct {
	folderRepo storageRepo.FolderRepository
	verifier   storageSvc.Verifier
	repair     storageSvc.RepairEngine
	authorizer storageSvc.ResourceAuthorizer
	registry   *Registry
	recorder   Recorder
	logger     *slog.Logger
	now        func() time.Time

	// background runs are detached from the request and end with Shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ storageSvc.VerificationService = (*Service)(nil)

// NewService creates the verification service. recorder may be nil.
func NewService(
	folderRepo storageRepo.FolderRepository,
	verifier storageSvc.Verifier,
	repair storageSvc.RepairEngine,
	authorizer storageSvc.ResourceAuthorizer,
	registry *Registry,
	recorder Recorder,
	logger *slog.Logger,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		folderRepo: folderRepo,
		verifier:   verifier,
		repair:     repair,
		authorizer: authorizer,
		registry:   registry,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Verify runs a verification to completion.
func (s *Service) Verify(ctx context.Context, req *storageSvc.VerifyRequest) (*models.VerificationReport, error) {
	report, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	s.run(ctx, report)
	return report, nil
}

// Start registers a pending verification and runs it in the background.
func (s *Service) Start(ctx context.Context, req *storageSvc.VerifyRequest) (string, error) {
	report, err := s.prepare(ctx, req)
	if err != nil {
		return "", err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(s.ctx, report)
	}()
	return report.VerificationID, nil
}

// Get returns the current snapshot of a verification.
func (s *Service) Get(ctx context.Context, verificationID string) (*models.VerificationReport, error) {
	return s.registry.Get(ctx, verificationID)
}

// Shutdown cancels background verifications and waits for them to record
// their final state, or for ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every background verification has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// prepare authorizes the request and registers a pending report.
func (s *Service) prepare(ctx context.Context, req *storageSvc.VerifyRequest) (*models.VerificationReport, error) {
	if req.FolderID == "" {
		return nil, fmt.Errorf("%w: folder id is required", domain.ErrValidation)
	}
	if err := s.authorizer.CanAccessFolder(ctx, req.OwnerID, req.FolderID); err != nil {
		return nil, err
	}
	folder, err := s.folderRepo.GetByID(ctx, req.FolderID)
	if err != nil {
		return nil, err
	}
	if folder.IsDeleted {
		return nil, fmt.Errorf("folder %s: %w", req.FolderID, domain.ErrNotFound)
	}

	report := &models.VerificationReport{
		VerificationID: uuid.NewString(),
		FolderID:       folder.ID,
		OwnerID:        req.OwnerID,
		ProjectID:      folder.ProjectID,
		StartTime:      s.now(),
		Status:         models.VerificationPending,
		Options:        req.Options,
		Results: models.VerificationResults{
			Errors:   []models.Issue{},
			Warnings: []models.Issue{},
			Repaired: []models.Repair{},
		},
	}
	if err := s.registry.Save(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// run drives a report from pending to a terminal state. Infrastructure
// failures end up in the report, never in a returned error.
func (s *Service) run(ctx context.Context, report *models.VerificationReport) {
	report.Status = models.VerificationRunning
	s.save(ctx, report)

	s.logger.Info("verification started",
		"verification_id", report.VerificationID,
		"folder_id", report.FolderID,
		"deep_scan", report.Options.DeepScan,
		"auto_repair", report.Options.AutoRepair,
	)

	err := s.verifier.Verify(ctx, report)
	if err == nil && report.Options.AutoRepair {
		err = s.repair.Repair(ctx, report)
	}

	end := s.now()
	report.EndTime = &end
	duration := end.Sub(report.StartTime)

	if err != nil {
		report.Status = models.VerificationFailed
		report.Error = failureMessage(err)
		s.logger.Error("verification failed",
			"verification_id", report.VerificationID,
			"folder_id", report.FolderID,
			"error", err,
		)
	} else {
		report.Status = models.VerificationCompleted
		s.logger.Info("verification completed",
			"verification_id", report.VerificationID,
			"folder_id", report.FolderID,
			"integrity_score", report.Results.IntegrityScore,
			"errors", len(report.Results.Errors),
			"repaired", len(report.Results.Repaired),
			"duration", duration,
		)
	}

	// The final state is recorded even when the run was cancelled.
	s.save(context.WithoutCancel(ctx), report)
	if s.recorder != nil {
		s.recorder.ObserveVerification(report, duration)
	}
}

func (s *Service) save(ctx context.Context, report *models.VerificationReport) {
	if err := s.registry.Save(ctx, report); err != nil {
		s.logger.Warn("failed to save verification report",
			"verification_id", report.VerificationID,
			"error", err,
		)
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "verification cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "verification timed out"
	default:
		return err.Error()
	}
}
