package lifecycle

import "fmt"

// Status represents the lifecycle state of a module.
// Values are ordered; comparisons with < and >= are meaningful.
type Status int32

const (
	StatusUninitialized Status = iota
	StatusInstanced
	StatusStarting
	StatusStarted
	StatusStopping
	StatusStopped
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "Uninitialized"
	case StatusInstanced:
		return "Instanced"
	case StatusStarting:
		return "Starting"
	case StatusStarted:
		return "Started"
	case StatusStopping:
		return "Stopping"
	case StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// CanStart reports whether a module in status s may be started.
func CanStart(s Status) bool {
	return s == StatusInstanced || s == StatusStopped
}

// CanRun reports whether a run body may execute the OnStarted hook.
func CanRun(s Status) bool {
	return s == StatusStarting
}

// CanStop reports whether a module in status s may be stopped.
func CanStop(s Status) bool {
	return s == StatusStarted
}

// ValidTransition reports whether from -> to is an edge of the state machine.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusUninitialized:
		return to == StatusInstanced
	case StatusInstanced:
		return to == StatusStarting
	case StatusStarting:
		return to == StatusStarted
	case StatusStarted:
		return to == StatusStopping
	case StatusStopping:
		return to == StatusStopped
	case StatusStopped:
		return to == StatusStarting
	}
	return false
}

// CheckTransition returns ErrIllegalTransition wrapped with both statuses
// when from -> to is not valid.
func CheckTransition(from, to Status) error {
	if !ValidTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}
