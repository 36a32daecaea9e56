package config

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bft-labs/modkit/pkg/log"
)

// Config holds orchestrator and dispatcher settings.
type Config struct {
	// WaitTimeout bounds how long a coordinated start or stop waits for a
	// module to reach a state it can act on.
	WaitTimeout time.Duration

	// PoolSize is the minimum capacity of the execution pool. The pool
	// grows to the number of registered modules when that is larger.
	PoolSize int

	// QueueHint is the initial capacity of the event dispatcher queue
	// built by orchestrator.RegisterBus. Read when the bus is built.
	QueueHint int

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		WaitTimeout: 30 * time.Second,
		PoolSize:    16,
		QueueHint:   64,
		LogLevel:    "info",
		LogFormat:   "console",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool size must not be negative")
	}
	if c.QueueHint < 0 {
		return fmt.Errorf("queue hint must not be negative")
	}
	if c.QueueHint == 0 {
		c.QueueHint = DefaultConfig().QueueHint
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	switch c.LogFormat {
	case "":
		c.LogFormat = "console"
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// NewLogger builds a zerolog-backed logger for the configured level and
// format, writing to w.
func (c Config) NewLogger(w io.Writer) (log.Logger, error) {
	return log.NewZerologAdapterFor(w, c.LogLevel, c.LogFormat)
}

// ConfigChanged is posted on the event bus after a configuration reload.
type ConfigChanged struct {
	Path   string
	Config Config
}

// configSetter applies values while respecting pinned keys.
type configSetter struct {
	pinned map[string]bool
}

func newConfigSetter(pinned map[string]bool) *configSetter {
	return &configSetter{pinned: pinned}
}

// setString sets a string value if not empty and key not pinned.
func (s *configSetter) setString(key, value string, dst *string) {
	if value == "" || s.pinned[key] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and key not pinned.
func (s *configSetter) setInt(key string, value int, dst *int) {
	if value <= 0 || s.pinned[key] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and key not pinned.
func (s *configSetter) setDuration(key, value string, dst *time.Duration) error {
	if value == "" || s.pinned[key] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(key, value string, dst *int) error {
	if value == "" || s.pinned[key] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
