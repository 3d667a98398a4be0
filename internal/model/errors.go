package model

import "errors"

// Error taxonomy. Callers test with errors.Is; wrapped messages carry the
// operation-specific detail.
var (
	// ErrValidation marks malformed caller input. Rejected immediately,
	// never retried.
	ErrValidation = errors.New("validation error")

	// ErrRemoteService marks thread creation/validation/streaming failures
	// against the remote assistant API.
	ErrRemoteService = errors.New("remote service error")

	// ErrToolNotFound marks a tool call naming an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")
)
