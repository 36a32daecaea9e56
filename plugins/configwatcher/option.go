package configwatcher

import "github.com/bft-labs/modkit/pkg/log"

// Option configures optional behavior of a Watcher.
type Option func(*Watcher)

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithPinned marks config keys that reloads must not change, as accepted
// by config.ApplyFileConfig.
func WithPinned(pinned map[string]bool) Option {
	return func(w *Watcher) {
		w.pinned = pinned
	}
}
