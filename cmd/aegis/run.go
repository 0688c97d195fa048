package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"aegis-hq/aegis/pkg/admin"
	"aegis-hq/aegis/pkg/approval"
	"aegis-hq/aegis/pkg/audit"
	"aegis-hq/aegis/pkg/config"
	"aegis-hq/aegis/pkg/gateway"
	"aegis-hq/aegis/pkg/policy/gitsource"
	"aegis-hq/aegis/pkg/policy/index"
	"aegis-hq/aegis/pkg/policy/loader"
	"aegis-hq/aegis/pkg/policy/watch"
	"aegis-hq/aegis/pkg/telemetry"
	"aegis-hq/aegis/pkg/tooladapter/files"
	"aegis-hq/aegis/pkg/tooladapter/payments"
)

var runFlags struct {
	listenAddr string
	policyDir  string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Aegis gateway",
	Long: `Start the Aegis gateway: load and watch the policy directory, bring up
the pending-approval store and decision ring, and serve the dispatch and
admin HTTP surface until an interrupt signal arrives.`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runFlags.listenAddr, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVarP(&runFlags.policyDir, "policy-dir", "p", "", "override policy directory")
}

// fatalInitError is a startup failure with no prior published snapshot to
// fall back on (e.g. the policy directory does not exist). Exits 1.
type fatalInitError struct{ err error }

func (e *fatalInitError) Error() string { return e.err.Error() }
func (e *fatalInitError) Unwrap() error { return e.err }
func (e *fatalInitError) ExitCode() int { return 1 }

// bindError is a failure to bind the configured listen address. Exits 2.
type bindError struct{ err error }

func (e *bindError) Error() string { return e.err.Error() }
func (e *bindError) Unwrap() error { return e.err }
func (e *bindError) ExitCode() int { return 2 }

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return &fatalInitError{fmt.Errorf("load config: %w", err)}
	}
	if runFlags.listenAddr != "" {
		cfg.Gateway.ListenAddr = runFlags.listenAddr
	}
	if runFlags.policyDir != "" {
		cfg.Policy.Dir = runFlags.policyDir
	}
	config.SetConfig(cfg)

	logLevel := slog.LevelInfo
	switch cfg.Telemetry.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	policyDir := cfg.Policy.Dir
	var gitPoller *gitsource.Poller
	if cfg.Policy.Git.Enabled() {
		repo, err := gitsource.NewRepository(cfg.Policy.Git)
		if err != nil {
			return &fatalInitError{fmt.Errorf("configure git policy source: %w", err)}
		}
		if err := repo.Clone(context.Background()); err != nil {
			return &fatalInitError{fmt.Errorf("clone policy repository: %w", err)}
		}
		policyDir = repo.PolicyPath()
		gitPoller = gitsource.NewPoller(repo, cfg.Policy.Git.PollInterval, logger)
		logger.Info("git policy source cloned", "repo", cfg.Policy.Git.Repo, "branch", cfg.Policy.Git.Branch, "path", policyDir)
	}

	initial, initialWarnings, err := loader.Load(policyDir)
	if err != nil {
		return &fatalInitError{fmt.Errorf("initial policy load: %w", err)}
	}
	for _, w := range initialWarnings {
		logger.Warn("policy load warning", "source", w.SourcePath, "message", w.Message)
	}
	logger.Info("policy loaded", "agents", len(initial.Agents), "fingerprint", initial.VersionFingerprint)

	idx := index.New(initial)
	ring := audit.New(cfg.Audit.RingSize, audit.NewMetrics(cfg.Telemetry.MetricsNamespace, nil))
	approvals := approval.New(cfg.Approval.TTL, logger)
	defer approvals.Stop()

	sink, shutdownSink := buildSink(cfg, logger)
	defer shutdownSink()

	watcher, err := watch.New(policyDir, cfg.Policy.QuietPeriod, idx, logger, func(err error) {
		sink.EmitReloadError(context.Background(), err)
	})
	if err != nil {
		return &fatalInitError{fmt.Errorf("start policy watcher: %w", err)}
	}
	watcher.SetInitialWarnings(initialWarnings)

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	watchDone := make(chan error, 1)
	go func() { watchDone <- watcher.Start(watchCtx) }()
	defer func() {
		cancelWatch()
		_ = watcher.Stop()
	}()

	if gitPoller != nil {
		go gitPoller.Run(watchCtx)
	}

	adapters, closeAdapters, err := buildAdapters(cfg)
	if err != nil {
		return &fatalInitError{err}
	}
	defer closeAdapters()

	orchestrator := gateway.New(idx, approvals, ring, sink, adapters, logger)
	adminHandler := admin.New(idx, ring, approvals, watcher.Warnings)
	srv := gateway.NewServer(cfg.Gateway, orchestrator, adminHandler.Routes, logger)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start(sigCtx) }()

	select {
	case err := <-serveErr:
		if err != nil {
			return &bindError{err}
		}
		return nil
	case <-sigCtx.Done():
		logger.Info("shutdown signal received")
		return <-serveErr
	case err := <-watchDone:
		if err != nil {
			logger.Error("policy watcher stopped unexpectedly", "error", err)
		}
		stop()
		return <-serveErr
	}
}

// buildSink composes the always-on slog sink with an optional OTLP sink,
// active only when OTEL_ENDPOINT is configured.
func buildSink(cfg *config.Config, logger *slog.Logger) (telemetry.Sink, func()) {
	slogSink := telemetry.NewSlogSink(logger)
	if cfg.Telemetry.OTelEndpoint == "" {
		return slogSink, func() {}
	}

	otlpSink, err := telemetry.NewOTLPSink(context.Background(), cfg.Telemetry.OTelEndpoint)
	if err != nil {
		logger.Warn("failed to initialize OTLP exporter, continuing without it", "error", err)
		return slogSink, func() {}
	}

	multi := telemetry.NewMultiSink(slogSink, otlpSink)
	return multi, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.ShutdownTimeout)
		defer cancel()
		if err := otlpSink.Shutdown(shutdownCtx); err != nil {
			logger.Warn("OTLP shutdown error", "error", err)
		}
	}
}

// buildAdapters constructs the mock tool adapters and returns a combined
// close function for the ones holding resources (the payments database).
func buildAdapters(cfg *config.Config) (map[string]gateway.ToolAdapter, func(), error) {
	paymentsAdapter, err := payments.New(cfg.ToolAdapters.PaymentsDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("init payments adapter: %w", err)
	}
	filesAdapter := files.New(cfg.ToolAdapters.FilesRoot)

	adapters := map[string]gateway.ToolAdapter{
		"payments": paymentsAdapter,
		"files":    filesAdapter,
	}
	return adapters, func() { _ = paymentsAdapter.Close() }, nil
}
