// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. ErrForbidden indicates that the current user tried to act
// on a record owned by someone else, while the per-entity not-found
// errors cover rows that are missing or soft-deleted.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state. Handlers translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailExists      = errors.New("email already exists")
	ErrPropertyNotFound = errors.New("property not found")
	ErrCultureNotFound  = errors.New("culture not found")
	ErrActivityNotFound = errors.New("activity not found")
)
