package orchestrator

import "errors"

// ErrWaitTimeout is returned when a module did not reach an actionable
// state within the wait timeout or before the caller's context ended.
var ErrWaitTimeout = errors.New("modkit: wait for module state timed out")
