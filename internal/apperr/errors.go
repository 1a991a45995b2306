// Package apperr defines the errors shared between the tracker service and
// its transports.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidID    = errors.New("invalid id")
	ErrInvalidInput = errors.New("invalid input")
	ErrMalformed    = errors.New("malformed record")
)
