// Package apperr defines the sentinel errors shared across yourview packages.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUpstream         = errors.New("upstream failure")
	ErrUpstreamTimeout  = errors.New("upstream timeout")
	ErrRejected         = errors.New("rejected")
	ErrTooLarge         = errors.New("too large")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)
