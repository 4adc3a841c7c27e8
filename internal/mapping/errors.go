package mapping

import "errors"

// Domain errors for the mapping package.
var (
	// ErrPoolExhausted is returned when every handle in [MinHandle, MaxHandle] is in use.
	ErrPoolExhausted = errors.New("mapping: handle pool exhausted")

	// ErrHandleNotFound is returned when no entry owns a handle.
	ErrHandleNotFound = errors.New("mapping: handle not found")

	// ErrInvalidEntry is returned when a stored or supplied entry breaks the
	// mapping invariants (bad key, handle out of range, duplicate handle).
	ErrInvalidEntry = errors.New("mapping: invalid entry")
)
