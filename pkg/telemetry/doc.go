// Package telemetry implements the Telemetry sink the Dispatch
// Orchestrator emits terminal decisions and policy reload failures
// through: an always-on structured-logging sink (SlogSink) and an
// optional OpenTelemetry trace exporter (OTLPSink), composed by
// MultiSink. Prometheus decision counters and histograms live with the
// component that produces them, in pkg/audit, rather than here.
package telemetry
