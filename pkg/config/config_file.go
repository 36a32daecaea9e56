package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	WaitTimeout string `toml:"wait_timeout"`
	PoolSize    int    `toml:"pool_size"`
	QueueHint   int    `toml:"queue_hint"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.modkit/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".modkit", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// Keys in pinned are left unchanged.
func ApplyFileConfig(cfg *Config, fc FileConfig, pinned map[string]bool) error {
	s := newConfigSetter(pinned)

	if err := s.setDuration("wait-timeout", fc.WaitTimeout, &cfg.WaitTimeout); err != nil {
		return err
	}

	s.setInt("pool-size", fc.PoolSize, &cfg.PoolSize)
	s.setInt("queue-hint", fc.QueueHint, &cfg.QueueHint)

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Load resolves a Config from defaults, the file at path when it exists,
// and the environment, then validates it. An empty path skips the file.
func Load(path string, pinned map[string]bool) (Config, error) {
	cfg := DefaultConfig()

	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return cfg, err
		}
		if err := ApplyFileConfig(&cfg, fc, pinned); err != nil {
			return cfg, err
		}
	}

	if err := ApplyEnvConfig(&cfg, pinned); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
