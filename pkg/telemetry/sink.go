// Package telemetry implements the Telemetry sink the Dispatch Orchestrator
// emits decisions and reload failures through. It never receives raw
// request params, only the params_hash already computed by the audit
// package.
package telemetry

import (
	"context"
	"log/slog"

	"aegis-hq/aegis/pkg/audit"
)

// Sink is the interface the orchestrator emits decisions and reload errors
// through.
type Sink interface {
	EmitDecision(ctx context.Context, rec audit.Record)
	EmitReloadError(ctx context.Context, err error)
}

// SlogSink is the always-active sink: structured JSON logs via log/slog,
// following the same structured-field conventions used throughout
// pkg/policy/manager and pkg/server.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink constructs a SlogSink. If logger is nil, slog.Default() is
// used.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) EmitDecision(ctx context.Context, rec audit.Record) {
	s.logger.InfoContext(ctx, "dispatch decision",
		"agent_id", rec.AgentID,
		"parent_agent", rec.ParentAgent,
		"tool", rec.Tool,
		"action", rec.Action,
		"decision", rec.Decision,
		"reason", rec.Reason,
		"params_hash", rec.ParamsHash,
		"latency_ms", rec.LatencyMS,
		"trace_id", rec.TraceID,
		"policy_fingerprint", rec.PolicyFingerprint,
	)
}

func (s *SlogSink) EmitReloadError(ctx context.Context, err error) {
	s.logger.ErrorContext(ctx, "policy reload failed", "error", err)
}

// MultiSink fans out to every configured Sink. Used to compose the
// always-on SlogSink with the optional OTLP sink.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink returns a Sink that forwards to each of sinks in order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) EmitDecision(ctx context.Context, rec audit.Record) {
	for _, s := range m.sinks {
		s.EmitDecision(ctx, rec)
	}
}

func (m *MultiSink) EmitReloadError(ctx context.Context, err error) {
	for _, s := range m.sinks {
		s.EmitReloadError(ctx, err)
	}
}
