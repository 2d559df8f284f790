// Package apperr defines the sentinel errors shared across the canvas layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrMissingCredential is returned before any network call when no API key is supplied.
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamFailure   = errors.New("upstream failure")

	// ErrHasDownstreamDependents blocks deletion of a node that still has outgoing edges.
	ErrHasDownstreamDependents = errors.New("node has downstream dependents")
	ErrLoadFormat              = errors.New("invalid project file")

	// ErrSessionActive is returned when an analysis session is already running.
	ErrSessionActive = errors.New("analysis session already active")
)
