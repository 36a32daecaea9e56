package event

import "github.com/bft-labs/modkit/pkg/log"

const (
	// DefaultQueueHint is the initial capacity of the dispatcher queue.
	DefaultQueueHint = 64

	// DefaultBatchSize is the maximum number of events taken per drain.
	DefaultBatchSize = 32
)

// Option configures optional behavior of a Dispatcher.
type Option func(*options)

type options struct {
	id        string
	logger    log.Logger
	queueHint int64
	batchSize int64
}

func defaultOptions() options {
	return options{
		logger:    log.NewNoopLogger(),
		queueHint: DefaultQueueHint,
		batchSize: DefaultBatchSize,
	}
}

// WithID sets the module id the dispatcher registers under.
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

// WithQueueHint sets the initial queue capacity. The queue grows as needed.
func WithQueueHint(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueHint = int64(n)
		}
	}
}

// WithBatchSize sets how many queued events are delivered per drain.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = int64(n)
		}
	}
}
