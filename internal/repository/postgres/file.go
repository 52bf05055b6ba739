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

const fileColumns = `id, project_id, folder_id, owner_id, name, display_name, full_path, size,
	checksum, storage_key, mime_type, file_type, is_deleted, deleted_at, version, created_at, updated_at`

// PostgresFileRepository implements the FileRepository interface
type PostgresFileRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewFileRepository creates a new file repository
func NewFileRepository(config *RepositoryConfig) storageRepo.FileRepository {
	return &PostgresFileRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanFile(row pgx.Row) (models.File, error) {
	var f models.File
	err := row.Scan(
		&f.ID,
		&f.ProjectID,
		&f.FolderID,
		&f.OwnerID,
		&f.Name,
		&f.DisplayName,
		&f.FullPath,
		&f.Size,
		&f.Checksum,
		&f.StorageKey,
		&f.MimeType,
		&f.FileType,
		&f.IsDeleted,
		&f.DeletedAt,
		&f.Version,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	return f, err
}

// Create inserts a file with version 1
func (r *PostgresFileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		return fmt.Errorf("%w: file id is required", domain.ErrValidation)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, folder_id, owner_id, name, display_name, full_path, size,
		                checksum, storage_key, mime_type, file_type, is_deleted, deleted_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)
		RETURNING version, created_at, updated_at
	`, r.tables.Files)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		file.ID,
		file.ProjectID,
		file.FolderID,
		file.OwnerID,
		file.Name,
		file.DisplayName,
		file.FullPath,
		file.Size,
		file.Checksum,
		file.StorageKey,
		file.MimeType,
		file.FileType,
		file.IsDeleted,
		file.DeletedAt,
	).Scan(&file.Version, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("file %s already exists", file.ID),
				ResourceType: "file",
				ResourceID:   file.ID,
			}
		}
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// GetByID retrieves a file by ID, including soft-deleted ones
func (r *PostgresFileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, fileColumns, r.tables.Files)

	executor := GetExecutor(ctx, r.pool)
	file, err := scanFile(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return &file, nil
}

func applyFileFilter(q *query, filter storageRepo.FileFilter) {
	if filter.ProjectID != "" {
		q.and("project_id = $%d", filter.ProjectID)
	}
	if len(filter.IDs) > 0 {
		q.and("id = ANY($%d)", filter.IDs)
	}
	if len(filter.FolderIDs) > 0 {
		q.and("folder_id = ANY($%d)", filter.FolderIDs)
	}
	if filter.RootOnly {
		q.andRaw("folder_id IS NULL")
	}
	if filter.HasFolder {
		q.andRaw("folder_id IS NOT NULL")
	}
	if filter.Deleted != nil {
		q.and("is_deleted = $%d", *filter.Deleted)
	}
}

// Find lists files matching the filter in one query, ordered by name
func (r *PostgresFileRepository) Find(ctx context.Context, filter storageRepo.FileFilter) ([]models.File, error) {
	q := &query{}
	applyFileFilter(q, filter)
	sql := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY name, id`, fileColumns, r.tables.Files, q.whereClause())

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("find files: %w", err)
	}
	defer rows.Close()

	files := []models.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

// Update saves file when its stored version still matches, then bumps the version
func (r *PostgresFileRepository) Update(ctx context.Context, file *models.File) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET project_id = $1, folder_id = $2, owner_id = $3, name = $4, display_name = $5,
		    full_path = $6, size = $7, checksum = $8, storage_key = $9, mime_type = $10,
		    file_type = $11, is_deleted = $12, deleted_at = $13,
		    version = version + 1, updated_at = now()
		WHERE id = $14 AND version = $15
		RETURNING version, updated_at
	`, r.tables.Files)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		file.ProjectID,
		file.FolderID,
		file.OwnerID,
		file.Name,
		file.DisplayName,
		file.FullPath,
		file.Size,
		file.Checksum,
		file.StorageKey,
		file.MimeType,
		file.FileType,
		file.IsDeleted,
		file.DeletedAt,
		file.ID,
		file.Version,
	).Scan(&file.Version, &file.UpdatedAt)
	if IsPgNoRowsError(err) {
		if _, getErr := r.GetByID(ctx, file.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("file %s: %w", file.ID, domain.ErrConcurrentModification)
	}
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// UpdateMany applies patch to every matching file in one statement
func (r *PostgresFileRepository) UpdateMany(ctx context.Context, filter storageRepo.FileFilter, patch storageRepo.FilePatch) (int64, error) {
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
	applyFileFilter(q, filter)

	sql := fmt.Sprintf(`UPDATE %s SET %s %s`, r.tables.Files, strings.Join(sets, ", "), q.whereClause())

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, sql, q.args...)
	if err != nil {
		return 0, fmt.Errorf("update files: %w", err)
	}
	return tag.RowsAffected(), nil
}
