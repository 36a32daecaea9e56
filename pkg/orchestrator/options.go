package orchestrator

import (
	"github.com/bft-labs/modkit/pkg/lifecycle"
	"github.com/bft-labs/modkit/pkg/log"
)

// Option configures optional behavior of an Orchestrator.
type Option func(*options)

type options struct {
	logger       log.Logger
	panicHandler func(any)
	observers    lifecycle.Observers
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPanicHandler sets the handler for panics that escape a run body on
// the worker pool. Hook panics are already recovered by the module; this
// only sees failures in the driver itself, such as a panicking observer.
// If not provided, the panic is logged.
func WithPanicHandler(handler func(any)) Option {
	return func(o *options) {
		if handler != nil {
			o.panicHandler = handler
		}
	}
}

// WithObserver adds an observer to every module created by Register.
func WithObserver(observer lifecycle.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}
