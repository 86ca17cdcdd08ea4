package ledger

import "errors"

// Domain errors for the ledger package.
var (
	// ErrFileNotFound is returned when no entry exists for a path.
	ErrFileNotFound = errors.New("ledger: file not found")

	// ErrInvalidEntry is returned when an entry lacks its path, hash, run id or status.
	ErrInvalidEntry = errors.New("ledger: invalid entry")
)
