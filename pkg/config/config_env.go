package config

import "os"

// ApplyEnvConfig applies configuration from environment variables (MODKIT_*).
// Keys in pinned are left unchanged.
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, pinned map[string]bool) error {
	s := newConfigSetter(pinned)

	if err := s.setDuration("wait-timeout", os.Getenv("MODKIT_WAIT_TIMEOUT"), &cfg.WaitTimeout); err != nil {
		return err
	}
	if err := s.setIntFromString("pool-size", os.Getenv("MODKIT_POOL_SIZE"), &cfg.PoolSize); err != nil {
		return err
	}
	if err := s.setIntFromString("queue-hint", os.Getenv("MODKIT_QUEUE_HINT"), &cfg.QueueHint); err != nil {
		return err
	}

	s.setString("log-level", os.Getenv("MODKIT_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("MODKIT_LOG_FORMAT"), &cfg.LogFormat)

	return nil
}
