// Package configwatcher provides a module that reloads the modkit TOML
// configuration when the file changes and posts config.ConfigChanged on
// the event bus. Pair it with orchestrator.ConfigListener to apply new
// settings at run time.
package configwatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/modkit/pkg/config"
	"github.com/bft-labs/modkit/pkg/event"
	"github.com/bft-labs/modkit/pkg/log"
	"github.com/bft-labs/modkit/pkg/module"
)

var (
	// ErrNoPath is returned from OnInstanced when no file path is set.
	ErrNoPath = errors.New("configwatcher: config path is required")

	// ErrNoBus is returned from OnInstanced when no bus is set.
	ErrNoBus = errors.New("configwatcher: event bus is required")
)

// Config holds configuration options for the config watcher.
type Config struct {
	// Path is the TOML file to watch.
	// Default: config.DefaultConfigPath()
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:          config.DefaultConfigPath(),
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Watcher is a lifecycle.Lifecycle that watches one config file.
type Watcher struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	bus           event.Bus
	pinned        map[string]bool
	logger        log.Logger

	stop     chan struct{}
	debounce *time.Timer
}

// New creates a watcher posting reloads to bus. Wrap it with module.New
// or orchestrator.Register to run it.
func New(cfg Config, bus event.Bus, opts ...Option) *Watcher {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}

	w := &Watcher{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		bus:           bus,
		logger:        log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = log.With(w.logger, log.String("path", w.path))
	return w
}

// ID returns the module id.
func (w *Watcher) ID() string {
	return "configwatcher"
}

// OnInstanced checks that the watcher has a file and a bus.
func (w *Watcher) OnInstanced() error {
	if w.path == "" {
		return ErrNoPath
	}
	if w.bus == nil {
		return ErrNoBus
	}
	return nil
}

// OnStarted posts the current configuration, then watches the file's
// directory until OnStopped. Editors often replace files rather than
// write them in place, so the directory is watched, not the file.
func (w *Watcher) OnStarted(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	stop := make(chan struct{})
	w.mu.Lock()
	w.stop = stop
	w.mu.Unlock()

	module.Ready(ctx)
	w.logger.Info("config watcher started")

	if config.FileExists(w.path) {
		w.reload()
	}

	target := filepath.Clean(w.path)
	for {
		select {
		case <-stop:
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.debounceReload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

// OnStopped ends the watch loop and cancels a pending reload.
func (w *Watcher) OnStopped() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
	return nil
}

// OnException implements lifecycle.Lifecycle.
func (w *Watcher) OnException(err error) {
	w.logger.Error("config watcher failed", log.Err(err))
}

func (w *Watcher) debounceReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stop == nil {
		return
	}
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.debounceDelay, w.reload)
}

// reload resolves the configuration and posts it. Invalid files are
// logged and skipped so the last good configuration stays in effect.
func (w *Watcher) reload() {
	cfg, err := config.Load(w.path, w.pinned)
	if err != nil {
		w.logger.Warn("config reload failed", log.Err(err))
		return
	}

	if err := w.bus.Post(config.ConfigChanged{Path: w.path, Config: cfg}); err != nil {
		w.logger.Warn("config change not posted", log.Err(err))
		return
	}
	w.logger.Info("configuration reloaded")
}
