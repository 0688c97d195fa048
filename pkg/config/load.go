package config

import (
	"os"
	"strconv"
	"time"
)

// Load builds a Config from defaults overridden by environment variables,
// matching pkg/config/load.go's LoadConfigWithEnvOverrides shape: defaults
// first, then env, then validation.
func Load() (*Config, error) {
	cfg := Defaults()
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Gateway.ListenAddr = ":" + v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Gateway.ListenAddr = v
	}
	if v := os.Getenv("POLICY_DIR"); v != "" {
		cfg.Policy.Dir = v
	}
	if v := os.Getenv("POLICY_QUIET_PERIOD_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Policy.QuietPeriod = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("POLICY_GIT_REPO"); v != "" {
		cfg.Policy.Git.Repo = v
	}
	if v := os.Getenv("POLICY_GIT_BRANCH"); v != "" {
		cfg.Policy.Git.Branch = v
	}
	if v := os.Getenv("POLICY_GIT_POLL_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.Policy.Git.PollInterval = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("POLICY_GIT_PATH"); v != "" {
		cfg.Policy.Git.Path = v
	}
	if v := os.Getenv("POLICY_GIT_AUTH_TYPE"); v != "" {
		cfg.Policy.Git.Auth.Type = v
	}
	if v := os.Getenv("POLICY_GIT_TOKEN"); v != "" {
		cfg.Policy.Git.Auth.Token = v
	}
	if v := os.Getenv("POLICY_GIT_SSH_KEY_PATH"); v != "" {
		cfg.Policy.Git.Auth.SSHKeyPath = v
	}
	if v := os.Getenv("POLICY_GIT_SSH_KEY_PASSPHRASE"); v != "" {
		cfg.Policy.Git.Auth.SSHKeyPassphrase = v
	}
	if v := os.Getenv("POLICY_GIT_LOCAL_PATH"); v != "" {
		cfg.Policy.Git.Clone.LocalPath = v
	}
	if v := os.Getenv("APPROVAL_TTL_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.Approval.TTL = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("DECISION_RING_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Audit.RingSize = n
		}
	}
	if v := os.Getenv("OTEL_ENDPOINT"); v != "" {
		cfg.Telemetry.OTelEndpoint = v
	}
	if v := os.Getenv("METRICS_NAMESPACE"); v != "" {
		cfg.Telemetry.MetricsNamespace = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Telemetry.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Telemetry.LogFormat = v
	}
	if v := os.Getenv("PAYMENTS_DB_PATH"); v != "" {
		cfg.ToolAdapters.PaymentsDBPath = v
	}
	if v := os.Getenv("FILES_ADAPTER_ROOT"); v != "" {
		cfg.ToolAdapters.FilesRoot = v
	}
}
