package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

// Error implementations
func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Hierarchy mutation rejections. Each one is returned before any write happens.
var (
	// ErrDuplicateSibling is matched by a *ConflictError raised for a live
	// sibling folder that already uses the requested name.
	ErrDuplicateSibling = errors.New("duplicate sibling")

	// ErrParentNotFound means the referenced parent folder is missing or soft-deleted.
	ErrParentNotFound = fmt.Errorf("parent folder %w", ErrNotFound)

	// ErrCyclicMove means the destination is the folder itself or one of its descendants.
	ErrCyclicMove = fmt.Errorf("%w: cannot move folder into its own subtree", ErrValidation)

	// ErrDepthExceeded means the resulting depth is above the nesting ceiling.
	ErrDepthExceeded = fmt.Errorf("%w: folder depth limit exceeded", ErrValidation)

	// ErrConcurrentModification means a version compare-and-swap lost against another writer.
	ErrConcurrentModification = fmt.Errorf("concurrent modification: %w", ErrConflict)
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (file, folder, project)
	ResourceID   string // ID of the existing/conflicting resource
	Reason       error  // Optional, more specific sentinel (e.g. ErrDuplicateSibling)
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode implements the HTTPError interface
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict and the optional Reason
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict || (e.Reason != nil && target == e.Reason)
}

// NewDuplicateSiblingError builds the conflict returned when a live sibling
// folder already carries name.
func NewDuplicateSiblingError(name, existingID string) *ConflictError {
	return &ConflictError{
		Message:      fmt.Sprintf("a folder named %q already exists in this location", name),
		ResourceType: "folder",
		ResourceID:   existingID,
		Reason:       ErrDuplicateSibling,
	}
}
