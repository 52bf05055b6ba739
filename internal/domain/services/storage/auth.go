package storage

import "context"

// ResourceAuthorizer checks if a user can act on resources.
// Current implementation: ownership-based (user owns the project).
type ResourceAuthorizer interface {
	// CanAccessProject checks if user can access a project
	CanAccessProject(ctx context.Context, userID, projectID string) error

	// CanAccessFolder checks if user can access a folder (via its project)
	CanAccessFolder(ctx context.Context, userID, folderID string) error

	// CanAccessFile checks if user can access a file (via its project)
	CanAccessFile(ctx context.Context, userID, fileID string) error
}
