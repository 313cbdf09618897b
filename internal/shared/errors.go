package shared

import "errors"

// Sentinel errors shared across domain packages.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates a unique key collision (name/code/sku).
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInUse indicates a delete was blocked by live references.
	ErrInUse = errors.New("entity is referenced by other records")
	// ErrValidation indicates a request failed business validation.
	ErrValidation = errors.New("validation failed")
)
