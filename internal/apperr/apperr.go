// Package apperr defines the error categories shared across the service.
// Components wrap these sentinels with fmt.Errorf("...: %w", ...) and the
// HTTP layer maps them to status codes with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound is returned for an unknown project ID, public hash, or
	// missing file.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed or disallowed input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a create collides with an existing ID
	// or a rename target already exists.
	ErrConflict = errors.New("conflict")

	// ErrInvalidPath is returned when a resolved path would escape its
	// project directory. Presented externally as not found.
	ErrInvalidPath = errors.New("invalid path")

	// ErrExternalService is returned when the container runtime backend
	// is unreachable, errors, or times out.
	ErrExternalService = errors.New("external service failure")

	// ErrIO is returned when reading or writing local state fails.
	ErrIO = errors.New("io failure")
)
