// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/queue/sync layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates missing or malformed input for a mutation.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition indicates a lifecycle transition not present in the
	// transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotEditable indicates the work order is in a state that forbids
	// editing or deletion.
	ErrNotEditable = errors.New("work order not editable in current state")

	// ErrPermission indicates the acting user is not allowed to perform the
	// mutation.
	ErrPermission = errors.New("permission denied")

	// ErrOffline indicates the remote authority is unreachable.
	ErrOffline = errors.New("offline")

	// ErrRemoteRejected indicates the remote authority refused a replayed
	// action.
	ErrRemoteRejected = errors.New("remote rejected action")

	// ErrUnauthorized indicates a missing or expired session token.
	ErrUnauthorized = errors.New("unauthorized")
)
