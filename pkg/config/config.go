// Package config defines Aegis's typed configuration, loaded from
// environment variables with defaults: typed sub-structs per concern, a
// Load/Defaults pair, and a Validate step.
package config

import "time"

// Config is the root configuration for an Aegis process.
type Config struct {
	Gateway      GatewayConfig
	Policy       PolicyConfig
	Approval     ApprovalConfig
	Audit        AuditConfig
	Telemetry    TelemetryConfig
	ToolAdapters ToolAdaptersConfig
}

// GatewayConfig configures the Dispatch Orchestrator's HTTP surface.
type GatewayConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	MaxHeaderBytes  int
	CORS            CORSConfig
}

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	MaxAge           int
	AllowCredentials bool
}

// PolicyConfig configures the Loader/Watcher pair.
type PolicyConfig struct {
	Dir         string
	QuietPeriod time.Duration
	Git         GitConfig
}

// GitConfig configures the optional Git-backed policy source. Enabled
// only when Repo is non-empty; when disabled, Policy.Dir is read directly
// and never touched by a clone/pull cycle.
type GitConfig struct {
	Repo         string
	Branch       string // default "main"
	Path         string // subdirectory within the repo holding policy files
	PollInterval time.Duration
	PollTimeout  time.Duration
	Auth         GitAuthConfig
	Clone        GitCloneConfig
}

// GitAuthConfig selects how the Git source authenticates to Repo.
type GitAuthConfig struct {
	Type             string // "token", "ssh", or "none"
	Token            string
	SSHKeyPath       string
	SSHKeyPassphrase string
}

// GitCloneConfig controls how the repository is cloned to local disk.
type GitCloneConfig struct {
	LocalPath    string
	Depth        int
	CleanOnStart bool
}

func (g GitConfig) Enabled() bool {
	return g.Repo != ""
}

// ApprovalConfig configures the Approval Store.
type ApprovalConfig struct {
	TTL time.Duration
}

// AuditConfig configures the Decision Ring.
type AuditConfig struct {
	RingSize int
}

// TelemetryConfig configures logging, metrics, and tracing.
type TelemetryConfig struct {
	LogLevel         string
	LogFormat        string
	MetricsNamespace string
	OTelEndpoint     string // empty disables OTLP export
}

// ToolAdaptersConfig configures the mock tool adapters the gateway
// forwards allowed/approved calls to.
type ToolAdaptersConfig struct {
	PaymentsDBPath string
	FilesRoot      string
}
