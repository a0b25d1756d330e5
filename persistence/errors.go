package persistence

import "errors"

// Sentinel errors for repository operations.
var (
	// ErrBaseNotFound is returned when the base document does not exist.
	ErrBaseNotFound = errors.New("base document not found")

	// ErrVariantNotFound is returned when a requested variant is not found.
	ErrVariantNotFound = errors.New("variant not found")

	// ErrInvalidVariantName is returned for empty names or names that are
	// not valid path segments.
	ErrInvalidVariantName = errors.New("invalid variant name")

	// ErrNilDocument is returned when a nil document is registered.
	ErrNilDocument = errors.New("document cannot be nil")
)
