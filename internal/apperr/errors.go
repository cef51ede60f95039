// Package apperr holds sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidPath   = errors.New("invalid path")
	ErrRunInProgress = errors.New("run already in progress")
)
