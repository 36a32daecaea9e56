package module

import (
	"errors"
	"fmt"
)

var (
	// ErrNilLifecycle is returned by New when no hooks are supplied.
	ErrNilLifecycle = errors.New("modkit: nil lifecycle")

	// ErrExecutorRejected is reported when the executor refuses a run body.
	ErrExecutorRejected = errors.New("modkit: executor rejected run")
)

// Hook names used in errors, logs and observer notifications.
const (
	HookInstanced = "OnInstanced"
	HookStarted   = "OnStarted"
	HookStopped   = "OnStopped"
)

// HookError records which hook of which module failed.
type HookError struct {
	Module string
	Hook   string
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("module '%s' %s failed: %v", e.Module, e.Hook, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}
