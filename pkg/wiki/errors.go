package wiki

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the core. Handlers map these to HTTP statuses
// with errors.Is; everything else is an internal error.
var (
	// ErrNotFound is returned when a page or version does not exist,
	// including version ids that belong to a different page.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied is returned when the page exists but the actor lacks
	// the required access level.
	ErrAccessDenied = errors.New("access denied")

	// ErrValidation is returned for malformed or missing input, before any
	// mutation happens.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned for no-op or conflicting mutations: reverting
	// to the current version, deleting the current version, hard-deleting a
	// page that still has children.
	ErrConflict = errors.New("conflict")
)

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrConflict}, args...)...)
}

func accessDeniedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrAccessDenied}, args...)...)
}
