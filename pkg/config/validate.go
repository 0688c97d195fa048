package config

import "fmt"

// Validate checks structural invariants of a loaded Config. It does not
// check that Policy.Dir exists on disk — a missing policy directory is a
// fatal startup error raised when the loader first runs, not here.
func Validate(cfg *Config) error {
	if cfg.Gateway.ListenAddr == "" {
		return fmt.Errorf("config: gateway listen address must not be empty")
	}
	if cfg.Policy.Dir == "" {
		return fmt.Errorf("config: policy directory must not be empty")
	}
	if cfg.Policy.QuietPeriod <= 0 {
		return fmt.Errorf("config: policy quiet period must be positive")
	}
	if cfg.Approval.TTL <= 0 {
		return fmt.Errorf("config: approval TTL must be positive")
	}
	if cfg.Audit.RingSize <= 0 {
		return fmt.Errorf("config: decision ring size must be positive")
	}
	if cfg.Policy.Git.Enabled() && cfg.Policy.Git.PollInterval <= 0 {
		return fmt.Errorf("config: policy git poll interval must be positive when a git repo is configured")
	}
	return nil
}
