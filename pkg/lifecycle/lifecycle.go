package lifecycle

import (
	"context"
	"time"
)

// Lifecycle is implemented by every module. The driver calls each hook on
// a fixed edge of the state machine:
//
//   - OnInstanced while Uninitialized, synchronously during construction
//   - OnStarted while Starting, on the module's own execution context
//   - OnStopped while Stopping, on the goroutine that called Stop
//   - OnException with any error or panic raised by OnStarted or OnStopped
//
// None of the hooks may change the status directly.
type Lifecycle interface {
	OnInstanced() error
	OnStarted(ctx context.Context) error
	OnStopped() error
	OnException(err error)
}

// Identifier may be implemented by a Lifecycle to override its registry key.
// Without it the key is the Go type name of the Lifecycle value.
type Identifier interface {
	ID() string
}

// Base implements Lifecycle with no-op hooks. Embed it and override
// only the hooks a module needs.
type Base struct{}

func (Base) OnInstanced() error                  { return nil }
func (Base) OnStarted(ctx context.Context) error { return nil }
func (Base) OnStopped() error                    { return nil }
func (Base) OnException(err error)               {}

// StatusChange describes one transition of one module.
type StatusChange struct {
	Module   string
	Previous Status
	Current  Status
	Reason   string
	At       time.Time
}

// HookFailure describes an error or panic raised by a hook.
type HookFailure struct {
	Module string
	Hook   string
	Err    error
}

// Observer is notified of transitions and hook failures.
// Calls are synchronous on the goroutine performing the transition and
// should return quickly.
type Observer interface {
	OnStatusChange(change StatusChange)
	OnHookFailure(failure HookFailure)
}

// BaseObserver provides no-op implementations for Observer.
type BaseObserver struct{}

func (BaseObserver) OnStatusChange(StatusChange) {}
func (BaseObserver) OnHookFailure(HookFailure)   {}

// Observers fans out to every element.
type Observers []Observer

func (o Observers) OnStatusChange(change StatusChange) {
	for _, obs := range o {
		obs.OnStatusChange(change)
	}
}

func (o Observers) OnHookFailure(failure HookFailure) {
	for _, obs := range o {
		obs.OnHookFailure(failure)
	}
}
