package repository

import "errors"

// Sentinel errors returned by repositories. pgx-specific errors are
// translated at this boundary so services never depend on the driver.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("repository: not found")

	// ErrDuplicate indicates an insert lost to a uniqueness constraint,
	// e.g. a concurrent attempt start for the same (user, assessment).
	ErrDuplicate = errors.New("repository: duplicate row")
)
