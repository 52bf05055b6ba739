package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestApplyFolderFilter(t *testing.T) {
	tests := []struct {
		name      string
		filter    storageRepo.FolderFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "empty filter",
			wantWhere: "",
		},
		{
			name:      "children of a level",
			filter:    storageRepo.FolderFilter{ParentIDs: []string{"a", "b"}, Deleted: storageRepo.Bool(false)},
			wantWhere: "WHERE parent_id = ANY($1) AND is_deleted = $2",
			wantArgs:  []any{[]string{"a", "b"}, false},
		},
		{
			name:      "live project roots",
			filter:    storageRepo.FolderFilter{ProjectID: "p1", RootOnly: true, Deleted: storageRepo.Bool(false)},
			wantWhere: "WHERE project_id = $1 AND parent_id IS NULL AND is_deleted = $2",
			wantArgs:  []any{"p1", false},
		},
		{
			name:      "empty id list does not constrain",
			filter:    storageRepo.FolderFilter{IDs: []string{}},
			wantWhere: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &query{}
			applyFolderFilter(q, tt.filter)
			assert.Equal(t, tt.wantWhere, q.whereClause())
			assert.Equal(t, tt.wantArgs, q.args)
		})
	}
}

func TestApplyFileFilter_AfterSetClauses(t *testing.T) {
	q := &query{}
	set := q.bind("is_deleted = $%d", true)
	applyFileFilter(q, storageRepo.FileFilter{FolderIDs: []string{"f1"}, HasFolder: true, Deleted: storageRepo.Bool(false)})

	assert.Equal(t, "is_deleted = $1", set)
	assert.Equal(t, "WHERE folder_id = ANY($2) AND folder_id IS NOT NULL AND is_deleted = $3", q.whereClause())
	assert.Len(t, q.args, 3)
}

func TestWriteError(t *testing.T) {
	tables := NewTableNames("test_")
	repo := &PostgresFolderRepository{tables: tables}
	folder := &models.Folder{ID: "f1", Name: "Shoots"}

	sibling := &pgconn.PgError{Code: "23505", ConstraintName: "test_folders_live_sibling_idx"}
	err := repo.writeError(fmt.Errorf("insert: %w", sibling), folder)
	assert.True(t, errors.Is(err, domain.ErrDuplicateSibling))

	pkey := &pgconn.PgError{Code: "23505", ConstraintName: "test_folders_pkey"}
	err = repo.writeError(pkey, folder)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.False(t, errors.Is(err, domain.ErrDuplicateSibling))

	err = repo.writeError(errors.New("boom"), folder)
	assert.False(t, errors.Is(err, domain.ErrConflict))
}

func TestSchemaStatements_UsePrefix(t *testing.T) {
	for _, stmt := range schemaStatements(NewTableNames("dev_")) {
		assert.True(t, strings.Contains(stmt, "dev_"), stmt)
	}
}
