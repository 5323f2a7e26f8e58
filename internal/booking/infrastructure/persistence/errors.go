package persistence

import "errors"

// ErrVersionConflict is returned when an update loses an optimistic
// concurrency race. Callers reload the aggregate and retry.
var ErrVersionConflict = errors.New("aggregate version conflict")
