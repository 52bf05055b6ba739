package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stowage/internal/config"
	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	"stowage/internal/domain/repositories"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"

	"github.com/google/uuid"
)

type hierarchyService struct {
	folderRepo storageRepo.FolderRepository
	fileRepo   storageRepo.FileRepository
	resolver   storageSvc.PathResolver
	aggregator storageSvc.Aggregator
	txManager  repositories.TransactionManager
	validator  *ResourceValidator
	authorizer storageSvc.ResourceAuthorizer
	cascade    *pathCascade
	logger     *slog.Logger
	now        func() time.Time
}

// NewHierarchyService creates the folder/file mutation service
func NewHierarchyService(
	folderRepo storageRepo.FolderRepository,
	fileRepo storageRepo.FileRepository,
	resolver storageSvc.PathResolver,
	aggregator storageSvc.Aggregator,
	txManager repositories.TransactionManager,
	authorizer storageSvc.ResourceAuthorizer,
	logger *slog.Logger,
) storageSvc.HierarchyService {
	return &hierarchyService{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
		resolver:   resolver,
		aggregator: aggregator,
		txManager:  txManager,
		validator:  NewResourceValidator(folderRepo),
		authorizer: authorizer,
		cascade:    &pathCascade{folderRepo: folderRepo, fileRepo: fileRepo, resolver: resolver},
		logger:     logger,
		now:        time.Now,
	}
}

// CreateFolder creates a folder under req.ParentID, or at the project root
// when ParentID is nil or empty.
func (s *hierarchyService) CreateFolder(ctx context.Context, req *storageSvc.CreateFolderRequest) (*models.Folder, error) {
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}
	req.Name = strings.TrimSpace(req.Name)

	if err := validateCreateFolderRequest(req); err != nil {
		return nil, err
	}
	if err := s.authorizer.CanAccessProject(ctx, req.OwnerID, req.ProjectID); err != nil {
		return nil, err
	}

	var folder *models.Folder
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		parent, err := s.validator.ParentFolder(ctx, req.ParentID, req.ProjectID)
		if err != nil {
			return err
		}
		if err := s.checkSibling(ctx, req.ProjectID, req.ParentID, req.Name, ""); err != nil {
			return err
		}
		res, err := s.resolver.Resolve(req.Name, parent, config.MaxFolderDepth)
		if err != nil {
			return err
		}

		folder = &models.Folder{
			ID:        uuid.NewString(),
			Name:      req.Name,
			ParentID:  req.ParentID,
			ProjectID: req.ProjectID,
			OwnerID:   req.OwnerID,
			Path:      res.Path,
			FullPath:  res.FullPath,
			Depth:     res.Depth,
			Metadata:  models.FolderMetadata{FileTypes: []string{}},
		}
		if err := s.folderRepo.Create(ctx, folder); err != nil {
			return err
		}

		if parent != nil {
			return s.aggregator.RefreshLineage(ctx, parent.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder created",
		"id", folder.ID,
		"name", folder.Name,
		"project_id", folder.ProjectID,
		"parent_id", folder.ParentID,
		"path", folder.Path,
	)

	return folder, nil
}

// GetFolder returns a live folder
func (s *hierarchyService) GetFolder(ctx context.Context, userID, folderID string) (*models.Folder, error) {
	if err := s.authorizer.CanAccessFolder(ctx, userID, folderID); err != nil {
		return nil, err
	}
	return s.validator.LiveFolder(ctx, folderID)
}

// RenameFolder renames a folder and rewrites the paths of its whole live subtree.
func (s *hierarchyService) RenameFolder(ctx context.Context, userID, folderID, newName string) (*models.Folder, error) {
	newName = strings.TrimSpace(newName)
	if err := validateName(newName, config.MaxFolderNameLength); err != nil {
		return nil, err
	}
	if err := s.authorizer.CanAccessFolder(ctx, userID, folderID); err != nil {
		return nil, err
	}

	var folder *models.Folder
	var stats cascadeStats
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		folder, err = s.validator.LiveFolder(ctx, folderID)
		if err != nil {
			return err
		}
		if folder.Name == newName {
			return nil
		}

		parent, err := s.validator.ParentFolder(ctx, folder.ParentID, folder.ProjectID)
		if err != nil {
			return err
		}
		if err := s.checkSibling(ctx, folder.ProjectID, folder.ParentID, newName, folder.ID); err != nil {
			return err
		}
		res, err := s.resolver.Resolve(newName, parent, unlimitedDepth)
		if err != nil {
			return err
		}

		folder.Name = newName
		folder.Path, folder.FullPath, folder.Depth = res.Path, res.FullPath, res.Depth
		if err := s.folderRepo.Update(ctx, folder); err != nil {
			return err
		}

		stats, err = s.cascade.Apply(ctx, folder)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder renamed",
		"id", folder.ID,
		"name", folder.Name,
		"path", folder.Path,
		"cascaded_folders", stats.Folders,
		"cascaded_files", stats.Files,
	)

	return folder, nil
}

// MoveFolder reparents a folder. The checks run in a fixed order so callers
// get a stable error for requests that violate more than one rule.
func (s *hierarchyService) MoveFolder(ctx context.Context, userID, folderID string, newParentID *string) (*models.Folder, error) {
	if newParentID != nil && *newParentID == "" {
		newParentID = nil
	}
	if err := s.authorizer.CanAccessFolder(ctx, userID, folderID); err != nil {
		return nil, err
	}

	var folder *models.Folder
	var oldParentID *string
	var stats cascadeStats
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		folder, err = s.validator.LiveFolder(ctx, folderID)
		if err != nil {
			return err
		}
		oldParentID = folder.ParentID

		// (a) destination exists and is live
		parent, err := s.validator.ParentFolder(ctx, newParentID, folder.ProjectID)
		if err != nil {
			return err
		}
		// (b) destination is not inside the moved subtree
		if parent != nil {
			if err := s.checkNotDescendant(ctx, folder.ID, parent); err != nil {
				return err
			}
		}
		// (c) depth of the deepest descendant, with the move grace level
		if parent != nil {
			height, err := s.subtreeHeight(ctx, folder.ID)
			if err != nil {
				return err
			}
			if deepest := parent.Depth + 1 + height; deepest > config.MaxFolderDepth+config.MoveDepthGrace {
				return fmt.Errorf("%w: depth %d, maximum %d", domain.ErrDepthExceeded,
					deepest, config.MaxFolderDepth+config.MoveDepthGrace)
			}
		}
		if err := s.checkSibling(ctx, folder.ProjectID, newParentID, folder.Name, folder.ID); err != nil {
			return err
		}

		res, err := s.resolver.Resolve(folder.Name, parent, unlimitedDepth)
		if err != nil {
			return err
		}
		folder.ParentID = newParentID
		folder.Path, folder.FullPath, folder.Depth = res.Path, res.FullPath, res.Depth
		if err := s.folderRepo.Update(ctx, folder); err != nil {
			return err
		}

		stats, err = s.cascade.Apply(ctx, folder)
		if err != nil {
			return err
		}

		return s.refreshLineages(ctx, oldParentID, newParentID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder moved",
		"id", folder.ID,
		"from_parent_id", oldParentID,
		"to_parent_id", folder.ParentID,
		"path", folder.Path,
		"depth", folder.Depth,
		"cascaded_folders", stats.Folders,
		"cascaded_files", stats.Files,
	)

	return folder, nil
}

// CascadeSoftDelete collects the subtree level by level, then flags live
// folders and files in two bulk writes. Records that are already deleted
// keep their original deletedAt.
func (s *hierarchyService) CascadeSoftDelete(ctx context.Context, userID, folderID string) (*storageSvc.DeleteResult, error) {
	if err := s.authorizer.CanAccessFolder(ctx, userID, folderID); err != nil {
		return nil, err
	}

	result := &storageSvc.DeleteResult{FolderID: folderID}
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		root, err := s.folderRepo.GetByID(ctx, folderID)
		if err != nil {
			return err
		}

		ids, err := s.collectSubtree(ctx, root.ID)
		if err != nil {
			return err
		}

		now := s.now()
		result.DeletedFolders, err = s.folderRepo.UpdateMany(ctx,
			storageRepo.FolderFilter{IDs: ids, Deleted: storageRepo.Bool(false)},
			storageRepo.FolderPatch{IsDeleted: storageRepo.Bool(true), DeletedAt: &now},
		)
		if err != nil {
			return fmt.Errorf("soft delete folders: %w", err)
		}
		result.DeletedFiles, err = s.fileRepo.UpdateMany(ctx,
			storageRepo.FileFilter{FolderIDs: ids, Deleted: storageRepo.Bool(false)},
			storageRepo.FilePatch{IsDeleted: storageRepo.Bool(true), DeletedAt: &now},
		)
		if err != nil {
			return fmt.Errorf("soft delete files: %w", err)
		}

		if result.DeletedFolders == 0 && result.DeletedFiles == 0 {
			return nil
		}
		return s.refreshLineages(ctx, root.ParentID, nil)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder subtree soft-deleted",
		"id", folderID,
		"deleted_folders", result.DeletedFolders,
		"deleted_files", result.DeletedFiles,
	)

	return result, nil
}

// collectSubtree returns rootID and the ids of every descendant, live or not,
// with one batched read per level.
func (s *hierarchyService) collectSubtree(ctx context.Context, rootID string) ([]string, error) {
	ids := []string{rootID}
	seen := map[string]bool{rootID: true}
	level := []string{rootID}

	for len(level) > 0 {
		children, err := s.folderRepo.Find(ctx, storageRepo.FolderFilter{ParentIDs: level})
		if err != nil {
			return nil, fmt.Errorf("list subfolders: %w", err)
		}
		var next []string
		for _, child := range children {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			ids = append(ids, child.ID)
			next = append(next, child.ID)
		}
		level = next
	}
	return ids, nil
}

// subtreeHeight returns how many live levels sit below rootID, reading one
// batch per level.
func (s *hierarchyService) subtreeHeight(ctx context.Context, rootID string) (int, error) {
	height := 0
	seen := map[string]bool{rootID: true}
	level := []string{rootID}

	for {
		children, err := s.folderRepo.Find(ctx, storageRepo.FolderFilter{ParentIDs: level, Deleted: storageRepo.Bool(false)})
		if err != nil {
			return 0, fmt.Errorf("list subfolders: %w", err)
		}
		var next []string
		for _, child := range children {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			next = append(next, child.ID)
		}
		if len(next) == 0 {
			return height, nil
		}
		height++
		level = next
	}
}

// checkNotDescendant walks the ancestor chain of dest and rejects the move if
// it meets folderID.
func (s *hierarchyService) checkNotDescendant(ctx context.Context, folderID string, dest *models.Folder) error {
	seen := make(map[string]bool)
	current := dest
	for {
		if current.ID == folderID {
			return fmt.Errorf("%w: %s is inside %s", domain.ErrCyclicMove, dest.ID, folderID)
		}
		if current.ParentID == nil || seen[current.ID] {
			return nil
		}
		seen[current.ID] = true

		next, err := s.folderRepo.GetByID(ctx, *current.ParentID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("walk ancestors: %w", err)
		}
		current = next
	}
}

// checkSibling rejects name if a live folder other than selfID already uses it
// under parentID.
func (s *hierarchyService) checkSibling(ctx context.Context, projectID string, parentID *string, name, selfID string) error {
	filter := storageRepo.FolderFilter{ProjectID: projectID, Deleted: storageRepo.Bool(false)}
	if parentID == nil {
		filter.RootOnly = true
	} else {
		filter.ParentIDs = []string{*parentID}
	}

	siblings, err := s.folderRepo.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate names: %w", err)
	}
	for _, sibling := range siblings {
		if sibling.Name == name && sibling.ID != selfID {
			return domain.NewDuplicateSiblingError(name, sibling.ID)
		}
	}
	return nil
}

// refreshLineages re-aggregates up to two folder lineages, skipping nil and
// repeated ids.
func (s *hierarchyService) refreshLineages(ctx context.Context, a, b *string) error {
	if a != nil {
		if err := s.refreshLineage(ctx, *a); err != nil {
			return err
		}
	}
	if b != nil && (a == nil || *a != *b) {
		return s.refreshLineage(ctx, *b)
	}
	return nil
}

func (s *hierarchyService) refreshLineage(ctx context.Context, folderID string) error {
	err := s.aggregator.RefreshLineage(ctx, folderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
