package config

import "time"

const (
	// MaxProjectNameLength is the maximum length for project names.
	MaxProjectNameLength = 255

	// MaxFolderNameLength is the maximum length for folder names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxFolderNameLength = 255

	// MaxFileNameLength is the maximum length for file names.
	// Same as folder names for consistency.
	MaxFileNameLength = 255

	// MaxFolderDepth is the nesting ceiling. Root folders have depth 0.
	MaxFolderDepth = 20

	// MoveDepthGrace is the extra depth tolerated for move operations only.
	MoveDepthGrace = 1

	// VerificationTTL is how long finished verification reports stay queryable.
	VerificationTTL = 2 * time.Hour
)
