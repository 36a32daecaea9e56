package module

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/bft-labs/modkit/pkg/lifecycle"
	"github.com/bft-labs/modkit/pkg/log"
)

// TracerName is the instrumentation name used for hook spans.
const TracerName = "github.com/bft-labs/modkit/pkg/module"

// Option configures optional behavior of a Module.
type Option func(*options)

type options struct {
	id        string
	logger    log.Logger
	executor  Executor
	observers lifecycle.Observers
	tracer    trace.Tracer
	ctx       context.Context
}

func defaultOptions() options {
	return options{
		logger:   log.NewNoopLogger(),
		executor: GoExecutor,
		tracer:   noop.NewTracerProvider().Tracer(TracerName),
		ctx:      context.Background(),
	}
}

// WithID overrides the registry key derived from the hooks' type.
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
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

// WithExecutor sets the executor the run body is submitted to.
// If not provided, every run gets its own goroutine.
func WithExecutor(executor Executor) Option {
	return func(o *options) {
		if executor != nil {
			o.executor = executor
		}
	}
}

// WithObserver adds an observer notified of transitions and hook failures.
// Observers are called in registration order while the transition is in
// progress; they must not call Start, Stop or Await on the same module.
func WithObserver(observer lifecycle.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}

// WithTracer sets the tracer used to wrap hook calls in spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithContext sets the parent of the context handed to OnStarted.
// Values are inherited; cancellation of ctx is visible to the hook.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}
