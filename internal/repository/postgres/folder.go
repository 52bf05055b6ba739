package postgres

import (
	"context"
	"fmt"
	"strings"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const folderColumns = `id, project_id, parent_id, owner_id, name, path, full_path, depth,
	metadata, is_deleted, deleted_at, version, created_at, updated_at`

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *RepositoryConfig) storageRepo.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanFolder(row pgx.Row) (models.Folder, error) {
	var f models.Folder
	err := row.Scan(
		&f.ID,
		&f.ProjectID,
		&f.ParentID,
		&f.OwnerID,
		&f.Name,
		&f.Path,
		&f.FullPath,
		&f.Depth,
		&f.Metadata, // JSONB
		&f.IsDeleted,
		&f.DeletedAt,
		&f.Version,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if f.Metadata.FileTypes == nil {
		f.Metadata.FileTypes = []string{}
	}
	return f, err
}

// Create inserts a folder with version 1
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder.ID == "" {
		return fmt.Errorf("%w: folder id is required", domain.ErrValidation)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, parent_id, owner_id, name, path, full_path, depth, metadata, is_deleted, deleted_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		RETURNING version, created_at, updated_at
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.ID,
		folder.ProjectID,
		folder.ParentID,
		folder.OwnerID,
		folder.Name,
		folder.Path,
		folder.FullPath,
		folder.Depth,
		folder.Metadata,
		folder.IsDeleted,
		folder.DeletedAt,
	).Scan(&folder.Version, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return r.writeError(err, folder)
	}
	return nil
}

// GetByID retrieves a folder by ID, including soft-deleted ones
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, folderColumns, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return &folder, nil
}

func applyFolderFilter(q *query, filter storageRepo.FolderFilter) {
	if filter.ProjectID != "" {
		q.and("project_id = $%d", filter.ProjectID)
	}
	if len(filter.IDs) > 0 {
		q.and("id = ANY($%d)", filter.IDs)
	}
	if len(filter.ParentIDs) > 0 {
		q.and("parent_id = ANY($%d)", filter.ParentIDs)
	}
	if filter.RootOnly {
		q.andRaw("parent_id IS NULL")
	}
	if filter.Deleted != nil {
		q.and("is_deleted = $%d", *filter.Deleted)
	}
}

// Find lists folders matching the filter in one query, ordered by depth then name
func (r *PostgresFolderRepository) Find(ctx context.Context, filter storageRepo.FolderFilter) ([]models.Folder, error) {
	q := &query{}
	applyFolderFilter(q, filter)
	sql := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY depth, name, id`,
		folderColumns, r.tables.Folders, q.whereClause())

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("find folders: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

// Update saves folder when its stored version still matches, then bumps the version
func (r *PostgresFolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET project_id = $1, parent_id = $2, owner_id = $3, name = $4, path = $5,
		    full_path = $6, depth = $7, is_deleted = $8, deleted_at = $9,
		    version = version + 1, updated_at = now()
		WHERE id = $10 AND version = $11
		RETURNING version, updated_at
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.ProjectID,
		folder.ParentID,
		folder.OwnerID,
		folder.Name,
		folder.Path,
		folder.FullPath,
		folder.Depth,
		folder.IsDeleted,
		folder.DeletedAt,
		folder.ID,
		folder.Version,
	).Scan(&folder.Version, &folder.UpdatedAt)
	if IsPgNoRowsError(err) {
		if _, getErr := r.GetByID(ctx, folder.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("folder %s: %w", folder.ID, domain.ErrConcurrentModification)
	}
	if err != nil {
		return r.writeError(err, folder)
	}
	return nil
}

// UpdateMany applies patch to every matching folder in one statement
func (r *PostgresFolderRepository) UpdateMany(ctx context.Context, filter storageRepo.FolderFilter, patch storageRepo.FolderPatch) (int64, error) {
	q := &query{}
	sets := []string{"version = version + 1", "updated_at = now()"}
	if patch.IsDeleted != nil {
		sets = append(sets, q.bind("is_deleted = $%d", *patch.IsDeleted))
	}
	if patch.DeletedAt != nil {
		sets = append(sets, q.bind("deleted_at = $%d", *patch.DeletedAt))
	}
	if len(sets) == 2 {
		return 0, nil
	}

	applyFolderFilter(q, filter)
	sql := fmt.Sprintf(`UPDATE %s SET %s %s`, r.tables.Folders, strings.Join(sets, ", "), q.whereClause())

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, sql, q.args...)
	if err != nil {
		return 0, fmt.Errorf("update folders: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateMetadata replaces the cached aggregate without touching the version
func (r *PostgresFolderRepository) UpdateMetadata(ctx context.Context, id string, metadata models.FolderMetadata) error {
	query := fmt.Sprintf(`UPDATE %s SET metadata = $1 WHERE id = $2`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, metadata, id)
	if err != nil {
		return fmt.Errorf("update folder metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresFolderRepository) writeError(err error, folder *models.Folder) error {
	switch {
	case isConstraintViolation(err, r.tables.liveSiblingIndex()):
		return domain.NewDuplicateSiblingError(folder.Name, "")
	case IsPgDuplicateError(err):
		return &domain.ConflictError{
			Message:      fmt.Sprintf("folder %s already exists", folder.ID),
			ResourceType: "folder",
			ResourceID:   folder.ID,
		}
	default:
		return fmt.Errorf("save folder: %w", err)
	}
}
