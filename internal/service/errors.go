package service

import "errors"

// Typed error kinds returned by the engine's operations. All of these
// are expected, recoverable conditions — handlers map them to response
// codes, none of them is fatal.
var (
	// ErrNotAvailable means the assessment is not in PUBLISHED status.
	ErrNotAvailable = errors.New("assessment not available")

	// ErrNotFound means the session does not exist or does not belong
	// to the calling user. Ownership mismatches are deliberately not
	// distinguishable from missing rows.
	ErrNotFound = errors.New("session not found")

	// ErrSessionClosed means a write was attempted against a terminal
	// session. Late answers are rejected, never silently dropped.
	ErrSessionClosed = errors.New("session already closed")

	// ErrAlreadyStarted is the transient creation race. It never
	// reaches callers: the lifecycle manager recovers by re-reading
	// the winning row.
	ErrAlreadyStarted = errors.New("attempt already started")

	// ErrUnauthorized means the caller lacks the role required for a
	// manager-scoped read.
	ErrUnauthorized = errors.New("insufficient role")
)
