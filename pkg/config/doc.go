// Package config holds the orchestrator configuration.
//
// Values are resolved in increasing precedence: DefaultConfig, a TOML
// file, then MODKIT_* environment variables. Keys listed in the pinned
// map passed to ApplyFileConfig and ApplyEnvConfig are left untouched, so
// values set in code always win:
//
//	cfg := config.DefaultConfig()
//	cfg.PoolSize = 8
//	pinned := map[string]bool{"pool-size": true}
//
//	if fc, err := config.LoadFileConfig(path); err == nil {
//	    _ = config.ApplyFileConfig(&cfg, fc, pinned)
//	}
//	_ = config.ApplyEnvConfig(&cfg, pinned)
//	err := cfg.Validate()
//
// Load performs the same steps for the common case.
package config
