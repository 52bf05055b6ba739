package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stowage/internal/config"
	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var errPathSeparator = errors.New("must not contain '/'")

func noPathSeparator(value any) error {
	s, _ := value.(string)
	if strings.Contains(s, "/") {
		return errPathSeparator
	}
	return nil
}

// validateName checks a folder or file name. Names are display strings, so
// anything but an empty or over-long name or a path separator is allowed.
func validateName(name string, maxLength int) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, maxLength),
		validation.By(noPathSeparator),
	)
	if err != nil {
		return fmt.Errorf("%w: name %v", domain.ErrValidation, err)
	}
	return nil
}

func validateCreateFolderRequest(req *storageSvc.CreateFolderRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.ProjectID, validation.Required),
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxFolderNameLength),
			validation.By(noPathSeparator),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func validateCreateFileRequest(req *storageSvc.CreateFileRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.ProjectID, validation.Required),
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxFileNameLength),
			validation.By(noPathSeparator),
		),
		validation.Field(&req.DisplayName, validation.Length(0, config.MaxFileNameLength)),
		validation.Field(&req.StorageKey, validation.Required),
		validation.Field(&req.Size, validation.Min(int64(0))),
		validation.Field(&req.Checksum, validation.By(validChecksum)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func validChecksum(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, ok := hasherFor(s); !ok {
		return errors.New("must be a hex md5, sha1 or sha256 digest")
	}
	return nil
}

// ResourceValidator validates that referenced resources are live before a
// mutation touches them.
type ResourceValidator struct {
	folderRepo storageRepo.FolderRepository
}

// NewResourceValidator creates a new resource validator
func NewResourceValidator(folderRepo storageRepo.FolderRepository) *ResourceValidator {
	return &ResourceValidator{folderRepo: folderRepo}
}

// LiveFolder returns the folder if it exists and is not soft-deleted.
func (v *ResourceValidator) LiveFolder(ctx context.Context, folderID string) (*models.Folder, error) {
	folder, err := v.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.IsDeleted {
		return nil, fmt.Errorf("folder %s: %w", folderID, domain.ErrNotFound)
	}
	return folder, nil
}

// ParentFolder resolves a parent reference. A nil id is the project root and
// yields a nil folder. A missing, soft-deleted or foreign-project parent
// yields domain.ErrParentNotFound.
func (v *ResourceValidator) ParentFolder(ctx context.Context, parentID *string, projectID string) (*models.Folder, error) {
	if parentID == nil {
		return nil, nil
	}

	parent, err := v.folderRepo.GetByID(ctx, *parentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrParentNotFound, *parentID)
		}
		return nil, fmt.Errorf("load parent folder: %w", err)
	}
	if parent.IsDeleted || parent.ProjectID != projectID {
		return nil, fmt.Errorf("%w: %s", domain.ErrParentNotFound, *parentID)
	}
	return parent, nil
}
