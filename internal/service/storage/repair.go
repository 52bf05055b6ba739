package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	"stowage/internal/domain/repositories"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"
	"stowage/internal/issues"
)

// Repair actions recorded in reports.
const (
	ActionRecomputedPath = "recomputed_path"
	ActionDetachedToRoot = "detached_to_root"
)

type repairEngine struct {
	folderRepo storageRepo.FolderRepository
	fileRepo   storageRepo.FileRepository
	resolver   storageSvc.PathResolver
	txManager  repositories.TransactionManager
	catalog    *issues.Catalog
	cascade    *pathCascade
	logger     *slog.Logger
}

// NewRepairEngine creates the engine that fixes repairable findings
func NewRepairEngine(
	folderRepo storageRepo.FolderRepository,
	fileRepo storageRepo.FileRepository,
	resolver storageSvc.PathResolver,
	txManager repositories.TransactionManager,
	catalog *issues.Catalog,
	logger *slog.Logger,
) storageSvc.RepairEngine {
	return &repairEngine{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
		resolver:   resolver,
		txManager:  txManager,
		catalog:    catalog,
		cascade:    &pathCascade{folderRepo: folderRepo, fileRepo: fileRepo, resolver: resolver},
		logger:     logger,
	}
}

// Repair applies a fix for every repairable error in the report, re-reading
// current state first. A fix that no longer applies is skipped, so running it
// twice changes nothing the second time. A failed fix becomes a warning.
func (e *repairEngine) Repair(ctx context.Context, report *models.VerificationReport) error {
	done := make(map[string]bool)

	for _, issue := range report.Results.Errors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.catalog.Repairable(issue.Type) {
			continue
		}

		key := repairKey(issue)
		if done[key] {
			continue
		}
		done[key] = true

		var (
			repair *models.Repair
			err    error
		)
		switch issue.Type {
		case models.IssuePathMismatch, models.IssueLevelMismatch:
			repair, err = e.recomputePath(ctx, issue)
		case models.IssueOrphanedFile:
			repair, err = e.detachFile(ctx, issue)
		default:
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn("repair failed",
				"verification_id", report.VerificationID,
				"type", issue.Type,
				"folder_id", issue.FolderID,
				"file_id", issue.FileID,
				"error", err,
			)
			warning := e.catalog.New(models.IssueRepairFailed, fmt.Sprintf("could not repair %s: %v", issue.Type, err))
			warning.FolderID, warning.FileID = issue.FolderID, issue.FileID
			report.Results.Warnings = append(report.Results.Warnings, warning)
			continue
		}
		if repair != nil {
			repair.Type = issue.Type
			report.Results.Repaired = append(report.Results.Repaired, *repair)
		}
	}
	return nil
}

// repairKey merges findings that share a fix: path and depth mismatches of
// one folder are both solved by recomputing it.
func repairKey(issue models.Issue) string {
	switch issue.Type {
	case models.IssuePathMismatch, models.IssueLevelMismatch:
		return "folder:" + issue.FolderID
	default:
		return "file:" + issue.FileID
	}
}

// recomputePath rederives a folder's materialized fields from its parent and
// cascades the result to its subtree.
func (e *repairEngine) recomputePath(ctx context.Context, issue models.Issue) (*models.Repair, error) {
	var repair *models.Repair
	err := e.txManager.ExecTx(ctx, func(ctx context.Context) error {
		folder, err := e.folderRepo.GetByID(ctx, issue.FolderID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if folder.IsDeleted {
			return nil
		}

		var parent *models.Folder
		if folder.ParentID != nil {
			parent, err = e.folderRepo.GetByID(ctx, *folder.ParentID)
			if err != nil {
				return fmt.Errorf("load parent: %w", err)
			}
			if parent.IsDeleted {
				return fmt.Errorf("%w: %s", domain.ErrParentNotFound, parent.ID)
			}
		}

		res, err := e.resolver.Resolve(folder.Name, parent, unlimitedDepth)
		if err != nil {
			return err
		}
		if samePath(folder, res) {
			return nil
		}

		before := storageSvc.PathResolution{Path: folder.Path, FullPath: folder.FullPath, Depth: folder.Depth}
		folder.Path, folder.FullPath, folder.Depth = res.Path, res.FullPath, res.Depth
		if err := e.folderRepo.Update(ctx, folder); err != nil {
			return err
		}
		if _, err := e.cascade.Apply(ctx, folder); err != nil {
			return err
		}

		repair = &models.Repair{
			Action:   ActionRecomputedPath,
			FolderID: folder.ID,
			Before:   before,
			After:    res,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repair, nil
}

// detachFile moves a file whose folder is gone to the project root.
func (e *repairEngine) detachFile(ctx context.Context, issue models.Issue) (*models.Repair, error) {
	var repair *models.Repair
	err := e.txManager.ExecTx(ctx, func(ctx context.Context) error {
		file, err := e.fileRepo.GetByID(ctx, issue.FileID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if file.IsDeleted || file.FolderID == nil || *file.FolderID != issue.FolderID {
			return nil
		}

		folder, err := e.folderRepo.GetByID(ctx, *file.FolderID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		case !folder.IsDeleted:
			return nil
		}

		before := file.FullPath
		file.FolderID = nil
		file.FullPath = e.resolver.FilePath(file.Name, nil)
		if err := e.fileRepo.Update(ctx, file); err != nil {
			return err
		}

		repair = &models.Repair{
			Action:   ActionDetachedToRoot,
			FolderID: issue.FolderID,
			FileID:   file.ID,
			Before:   before,
			After:    file.FullPath,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repair, nil
}
