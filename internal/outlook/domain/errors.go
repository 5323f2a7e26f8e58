package domain

import "errors"

// Provider error taxonomy. Application code folds everything except
// ErrUnauthorized into a boolean outcome; the typed errors still exist
// so callers and logs can tell the cases apart.
var (
	// ErrUnauthorized means the session probe against the provider failed.
	ErrUnauthorized = errors.New("outlook: unauthorized")

	// ErrNotFound means the requested remote object is not fetchable.
	ErrNotFound = errors.New("outlook: not found")

	// ErrConflict means the requested slot is already occupied.
	ErrConflict = errors.New("outlook: slot conflict")

	// ErrValidation means the remote event failed its validity invariant.
	ErrValidation = errors.New("outlook: invalid event")

	// ErrTransport covers network errors and malformed provider responses.
	ErrTransport = errors.New("outlook: transport failure")
)
