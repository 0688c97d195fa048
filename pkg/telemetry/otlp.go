package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"aegis-hq/aegis/pkg/audit"
)

// OTLPSink exports decision spans and reload-error events over OTLP-HTTP.
// Active only when OTEL_ENDPOINT is configured; grounded on
// pkg/telemetry/tracing/tracer.go's exporter/provider bootstrap, adapted
// from gRPC to HTTP to match the domain-stack dependency chosen for Aegis.
type OTLPSink struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewOTLPSink dials endpoint and builds a batching OTLP-HTTP exporter.
func NewOTLPSink(ctx context.Context, endpoint string) (*OTLPSink, error) {
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("aegis"),
	))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	return &OTLPSink{
		provider: provider,
		tracer:   provider.Tracer("aegis/dispatch"),
	}, nil
}

// EmitDecision records the decision as a zero-duration span carrying the
// decision's attributes. Raw params never reach this call; only
// rec.ParamsHash does.
func (o *OTLPSink) EmitDecision(ctx context.Context, rec audit.Record) {
	_, span := o.tracer.Start(ctx, "dispatch.decision",
		trace.WithTimestamp(rec.Timestamp),
		trace.WithAttributes(
			attribute.String("agent_id", rec.AgentID),
			attribute.String("parent_agent", rec.ParentAgent),
			attribute.String("tool", rec.Tool),
			attribute.String("action", rec.Action),
			attribute.String("decision", rec.Decision),
			attribute.String("reason", rec.Reason),
			attribute.String("params_hash", rec.ParamsHash),
			attribute.Int64("latency_ms", rec.LatencyMS),
			attribute.String("policy_fingerprint", rec.PolicyFingerprint),
		),
	)
	span.End(trace.WithTimestamp(rec.Timestamp.Add(time.Duration(rec.LatencyMS) * time.Millisecond)))
}

// EmitReloadError records a reload failure as an errored span event.
func (o *OTLPSink) EmitReloadError(ctx context.Context, err error) {
	_, span := o.tracer.Start(ctx, "policy.reload_error")
	span.RecordError(err)
	span.End()
}

// Shutdown flushes pending spans. Call before process exit.
func (o *OTLPSink) Shutdown(ctx context.Context) error {
	return o.provider.Shutdown(ctx)
}
