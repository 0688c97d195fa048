package config

import "time"

// Defaults returns a Config populated with Aegis's documented defaults.
func Defaults() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  10 * time.Second,
			MaxHeaderBytes:  1 << 20,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Agent-ID", "X-Parent-Agent", "X-Request-ID"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         3600,
			},
		},
		Policy: PolicyConfig{
			Dir:         "./policies",
			QuietPeriod: 300 * time.Millisecond,
			Git: GitConfig{
				Branch:       "main",
				PollInterval: 30 * time.Second,
				PollTimeout:  10 * time.Second,
				Auth: GitAuthConfig{
					Type: "none",
				},
				Clone: GitCloneConfig{
					Depth: 1,
				},
			},
		},
		Approval: ApprovalConfig{
			TTL: 900 * time.Second,
		},
		Audit: AuditConfig{
			RingSize: 50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:         "info",
			LogFormat:        "json",
			MetricsNamespace: "aegis",
		},
		ToolAdapters: ToolAdaptersConfig{
			PaymentsDBPath: "./aegis-payments.db",
			FilesRoot:      "/sandbox",
		},
	}
}
