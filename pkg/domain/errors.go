package domain

import "errors"

// Sentinel errors shared by every layer. The transport maps these onto
// HTTP status codes; the core only wraps them with context.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrStorage         = errors.New("storage failure")
)
