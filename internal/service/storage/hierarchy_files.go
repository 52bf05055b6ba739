package storage

import (
	"context"
	"fmt"
	"strings"

	"stowage/internal/config"
	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"

	"github.com/google/uuid"
)

// CreateFile registers a file record. The object must already be uploaded
// under req.StorageKey; nothing here touches the object store.
func (s *hierarchyService) CreateFile(ctx context.Context, req *storageSvc.CreateFileRequest) (*models.File, error) {
	if req.FolderID != nil && *req.FolderID == "" {
		req.FolderID = nil
	}
	req.Name = strings.TrimSpace(req.Name)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		req.DisplayName = req.Name
	}

	if err := validateCreateFileRequest(req); err != nil {
		return nil, err
	}
	if err := s.authorizer.CanAccessProject(ctx, req.OwnerID, req.ProjectID); err != nil {
		return nil, err
	}

	var file *models.File
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		folder, err := s.validator.ParentFolder(ctx, req.FolderID, req.ProjectID)
		if err != nil {
			return err
		}

		file = &models.File{
			ID:          uuid.NewString(),
			Name:        req.Name,
			DisplayName: req.DisplayName,
			FolderID:    req.FolderID,
			ProjectID:   req.ProjectID,
			OwnerID:     req.OwnerID,
			FullPath:    s.resolver.FilePath(req.Name, folder),
			Size:        req.Size,
			Checksum:    strings.ToLower(req.Checksum),
			StorageKey:  req.StorageKey,
			MimeType:    req.MimeType,
			FileType:    req.FileType,
		}
		if err := s.fileRepo.Create(ctx, file); err != nil {
			return err
		}

		return s.refreshLineages(ctx, req.FolderID, nil)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file created",
		"id", file.ID,
		"name", file.Name,
		"folder_id", file.FolderID,
		"size", file.Size,
	)

	return file, nil
}

// RenameFile changes a file's name and recomputes its fullPath.
func (s *hierarchyService) RenameFile(ctx context.Context, userID, fileID, newName string) (*models.File, error) {
	newName = strings.TrimSpace(newName)
	if err := validateName(newName, config.MaxFileNameLength); err != nil {
		return nil, err
	}
	if err := s.authorizer.CanAccessFile(ctx, userID, fileID); err != nil {
		return nil, err
	}

	var file *models.File
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		file, err = s.liveFile(ctx, fileID)
		if err != nil {
			return err
		}

		var folder *models.Folder
		if file.FolderID != nil {
			folder, err = s.folderRepo.GetByID(ctx, *file.FolderID)
			if err != nil {
				return fmt.Errorf("load file folder: %w", err)
			}
		}

		if file.DisplayName == file.Name {
			file.DisplayName = newName
		}
		file.Name = newName
		file.FullPath = s.resolver.FilePath(newName, folder)
		if err := s.fileRepo.Update(ctx, file); err != nil {
			return err
		}

		// Type tags may come from the extension.
		return s.refreshLineages(ctx, file.FolderID, nil)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file renamed", "id", file.ID, "name", file.Name, "full_path", file.FullPath)
	return file, nil
}

// MoveFile moves a file into folderID, or to the project root when nil.
func (s *hierarchyService) MoveFile(ctx context.Context, userID, fileID string, folderID *string) (*models.File, error) {
	if folderID != nil && *folderID == "" {
		folderID = nil
	}
	if err := s.authorizer.CanAccessFile(ctx, userID, fileID); err != nil {
		return nil, err
	}

	var file *models.File
	var oldFolderID *string
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		file, err = s.liveFile(ctx, fileID)
		if err != nil {
			return err
		}
		oldFolderID = file.FolderID

		folder, err := s.validator.ParentFolder(ctx, folderID, file.ProjectID)
		if err != nil {
			return err
		}

		file.FolderID = folderID
		file.FullPath = s.resolver.FilePath(file.Name, folder)
		if err := s.fileRepo.Update(ctx, file); err != nil {
			return err
		}

		return s.refreshLineages(ctx, oldFolderID, folderID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file moved",
		"id", file.ID,
		"from_folder_id", oldFolderID,
		"to_folder_id", file.FolderID,
	)
	return file, nil
}

// SoftDeleteFile flags a file as deleted. Deleting a deleted file is a no-op.
func (s *hierarchyService) SoftDeleteFile(ctx context.Context, userID, fileID string) error {
	if err := s.authorizer.CanAccessFile(ctx, userID, fileID); err != nil {
		return err
	}

	return s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		file, err := s.fileRepo.GetByID(ctx, fileID)
		if err != nil {
			return err
		}

		now := s.now()
		n, err := s.fileRepo.UpdateMany(ctx,
			storageRepo.FileFilter{IDs: []string{fileID}, Deleted: storageRepo.Bool(false)},
			storageRepo.FilePatch{IsDeleted: storageRepo.Bool(true), DeletedAt: &now},
		)
		if err != nil {
			return fmt.Errorf("soft delete file: %w", err)
		}
		if n == 0 {
			return nil
		}

		s.logger.Info("file soft-deleted", "id", fileID, "folder_id", file.FolderID)
		return s.refreshLineages(ctx, file.FolderID, nil)
	})
}

func (s *hierarchyService) liveFile(ctx context.Context, fileID string) (*models.File, error) {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsDeleted {
		return nil, fmt.Errorf("file %s: %w", fileID, domain.ErrNotFound)
	}
	return file, nil
}
