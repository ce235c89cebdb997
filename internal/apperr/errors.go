// Package apperr holds the sentinel errors shared across layers.
// Callers wrap them with fmt.Errorf("...: %w") and match with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")
	ErrPrecondition  = errors.New("precondition failed")
	ErrUpstream      = errors.New("upstream failure")
)
