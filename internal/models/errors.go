package models

import "errors"

// Error taxonomy shared across repositories, services, and handlers. All of
// these are terminal for the request that hit them; none is retried.
var (
	// ErrNotFound means a referenced row (reviewer, revision, request, task
	// state, comment) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the actor lacks the required capability for the
	// attempted operation, or an ownership check failed.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyShared means a share already exists for the same
	// (external reviewer, page) pair. User-correctable.
	ErrAlreadyShared = errors.New("page has already been shared with this email address")

	// ErrConstraintViolation means a creation would violate an identity or
	// grant uniqueness invariant at the storage layer.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrValidation means malformed input to a mutation. User-correctable.
	ErrValidation = errors.New("validation error")
)
