// Package gateway implements the Dispatch Orchestrator (component G): the
// one piece that ties the Evaluator, Approval Store, Decision Ring, and
// Telemetry sink together and exposes them over HTTP.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"aegis-hq/aegis/pkg/approval"
	"aegis-hq/aegis/pkg/audit"
	"aegis-hq/aegis/pkg/evaluator"
	"aegis-hq/aegis/pkg/policy/index"
	"aegis-hq/aegis/pkg/telemetry"
)

// ToolAdapter is the capability every tool integration implements. Adapters
// never see policy; they only execute an already-authorized call.
type ToolAdapter interface {
	Invoke(ctx context.Context, tool, action string, params map[string]any) (map[string]any, error)
}

// OutcomeKind tags the result of Dispatch or Release.
type OutcomeKind string

const (
	OutcomeDenied            OutcomeKind = "denied"
	OutcomeApprovalRequired  OutcomeKind = "approval_required"
	OutcomeForwarded         OutcomeKind = "forwarded"
	OutcomeAdapterError      OutcomeKind = "adapter_error"
	OutcomeAdapterTimeout    OutcomeKind = "adapter_timeout"
	OutcomeApprovalNotFound  OutcomeKind = "approval_not_found"
	OutcomeApprovalConflict  OutcomeKind = "approval_conflict"
	OutcomeApprovalExpired   OutcomeKind = "approval_expired"
)

// DispatchOutcome is the tagged result returned to the HTTP layer. Only the
// fields relevant to Kind are meaningful.
type DispatchOutcome struct {
	Kind OutcomeKind

	Result     map[string]any // OutcomeForwarded
	ApprovalID string         // OutcomeApprovalRequired

	// Reason is a fixed, sanitized, user-facing string — never raw error
	// text. Set for Denied and AdapterError.
	Reason string

	// CurrentStatus is set for OutcomeApprovalConflict.
	CurrentStatus approval.Status
}

// Orchestrator wires the core components to a tool registry. It holds no
// mutable state of its own beyond that registry — every invariant lives in
// the components it composes.
type Orchestrator struct {
	index    *index.Index
	approval *approval.Store
	ring     *audit.Ring
	sink     telemetry.Sink
	adapters map[string]ToolAdapter
	logger   *slog.Logger
}

// New constructs an Orchestrator. adapters maps tool name to the adapter
// invoked for that tool.
func New(idx *index.Index, approvalStore *approval.Store, ring *audit.Ring, sink telemetry.Sink, adapters map[string]ToolAdapter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if adapters == nil {
		adapters = map[string]ToolAdapter{}
	}
	return &Orchestrator{
		index:    idx,
		approval: approvalStore,
		ring:     ring,
		sink:     sink,
		adapters: adapters,
		logger:   logger,
	}
}

// Dispatch evaluates req against the current policy snapshot and either
// denies it, parks it pending approval, or forwards it to the matching
// tool adapter.
func (o *Orchestrator) Dispatch(ctx context.Context, traceID string, req evaluator.Request) DispatchOutcome {
	start := time.Now()
	snapshot := o.index.Current()
	dec := evaluator.Evaluate(snapshot, req)

	switch dec.Kind {
	case evaluator.KindDeny:
		o.record(ctx, req, "deny", dec.Reason, start, snapshot.VersionFingerprint, traceID)
		return DispatchOutcome{Kind: OutcomeDenied, Reason: dec.Reason}

	case evaluator.KindApprovalRequired:
		id := o.approval.Create(req)
		o.record(ctx, req, "approval_required", "", start, snapshot.VersionFingerprint, traceID)
		return DispatchOutcome{Kind: OutcomeApprovalRequired, ApprovalID: id}

	default: // KindAllow
		return o.forward(ctx, req, "allow", start, snapshot.VersionFingerprint, traceID)
	}
}

// Release resolves a pending approval and, if it is ready, forwards the
// captured request to its adapter without re-evaluating policy: the
// approval was already issued against a specific permission and policy
// may have changed in the meantime, but release honors the original
// grant rather than second-guessing it.
func (o *Orchestrator) Release(ctx context.Context, traceID, id, approverID string) DispatchOutcome {
	result := o.approval.Release(id, approverID)

	switch result.Kind {
	case approval.ResultNotFound:
		return DispatchOutcome{Kind: OutcomeApprovalNotFound}
	case approval.ResultConflict:
		return DispatchOutcome{Kind: OutcomeApprovalConflict, CurrentStatus: result.CurrentStatus}
	case approval.ResultExpired:
		return DispatchOutcome{Kind: OutcomeApprovalExpired}
	default: // approval.ResultReady
		start := time.Now()
		snapshot := o.index.Current()
		return o.forward(ctx, result.Request, "approved_executed", start, snapshot.VersionFingerprint, traceID)
	}
}

// forward invokes the matched tool adapter, honoring ctx's deadline, and
// records the terminal decision. This is the only blocking step on the
// request path.
func (o *Orchestrator) forward(ctx context.Context, req evaluator.Request, label string, start time.Time, fingerprint, traceID string) DispatchOutcome {
	adapter, ok := o.adapters[req.Tool]
	if !ok {
		reason := "no adapter registered for tool"
		o.record(ctx, req, "adapter_error", reason, start, fingerprint, traceID)
		return DispatchOutcome{Kind: OutcomeAdapterError, Reason: reason}
	}

	result, err := adapter.Invoke(ctx, req.Tool, req.Action, req.Params)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			o.record(ctx, req, "adapter_timeout", "adapter timeout", start, fingerprint, traceID)
			return DispatchOutcome{Kind: OutcomeAdapterTimeout}
		}
		reason := "adapter invocation failed"
		o.record(ctx, req, "adapter_error", reason, start, fingerprint, traceID)
		return DispatchOutcome{Kind: OutcomeAdapterError, Reason: reason}
	}

	o.record(ctx, req, label, "", start, fingerprint, traceID)
	return DispatchOutcome{Kind: OutcomeForwarded, Result: result}
}

// record appends a Record to the Decision Ring and emits it to telemetry,
// hashing params exactly once.
func (o *Orchestrator) record(ctx context.Context, req evaluator.Request, decision, reason string, start time.Time, fingerprint, traceID string) {
	rec := audit.Record{
		Timestamp:         start,
		AgentID:           req.AgentID,
		ParentAgent:       req.ParentAgent,
		Tool:              req.Tool,
		Action:            req.Action,
		Decision:          decision,
		Reason:            reason,
		ParamsHash:        audit.HashParams(req.Params),
		LatencyMS:         time.Since(start).Milliseconds(),
		TraceID:           traceID,
		PolicyFingerprint: fingerprint,
	}
	o.ring.Append(rec)
	o.sink.EmitDecision(ctx, rec)
}
