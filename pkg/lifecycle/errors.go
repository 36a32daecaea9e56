package lifecycle

import "errors"

// Common lifecycle errors.
var (
	// ErrIllegalTransition is returned when a status change is not one of the valid edges.
	ErrIllegalTransition = errors.New("modkit: illegal status transition")

	// ErrHookPanic wraps a value recovered from a panicking hook.
	ErrHookPanic = errors.New("modkit: hook panicked")
)
