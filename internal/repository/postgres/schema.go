package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements returns the DDL for the prefixed tables. Folder parents and
// file folders are plain columns without foreign keys, so dangling references
// can exist and be reported by verification.
func schemaStatements(t *TableNames) []string {
	return []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id         TEXT PRIMARY KEY,
				owner_id   TEXT NOT NULL,
				name       TEXT NOT NULL,
				is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
				deleted_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, t.Projects),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id         TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				parent_id  TEXT,
				owner_id   TEXT NOT NULL,
				name       TEXT NOT NULL,
				path       TEXT NOT NULL,
				full_path  TEXT NOT NULL,
				depth      INTEGER NOT NULL DEFAULT 0,
				metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
				is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
				deleted_at TIMESTAMPTZ,
				version    BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, t.Folders),
		fmt.Sprintf(`
			CREATE UNIQUE INDEX IF NOT EXISTS %s
			ON %s (project_id, COALESCE(parent_id, ''), name)
			WHERE NOT is_deleted`, t.liveSiblingIndex(), t.Folders),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_parent_idx ON %[1]s (parent_id)`, t.Folders),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id           TEXT PRIMARY KEY,
				project_id   TEXT NOT NULL,
				folder_id    TEXT,
				owner_id     TEXT NOT NULL,
				name         TEXT NOT NULL,
				display_name TEXT NOT NULL DEFAULT '',
				full_path    TEXT NOT NULL,
				size         BIGINT NOT NULL DEFAULT 0,
				checksum     TEXT NOT NULL DEFAULT '',
				storage_key  TEXT NOT NULL DEFAULT '',
				mime_type    TEXT NOT NULL DEFAULT '',
				file_type    TEXT NOT NULL DEFAULT '',
				is_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
				deleted_at   TIMESTAMPTZ,
				version      BIGINT NOT NULL DEFAULT 1,
				created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, t.Files),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_folder_idx ON %[1]s (folder_id)`, t.Files),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_project_idx ON %[1]s (project_id)`, t.Files),
	}
}

// EnsureSchema creates the tables and indexes when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, stmt := range schemaStatements(tables) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
