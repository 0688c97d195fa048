package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis-hq/aegis/pkg/approval"
	"aegis-hq/aegis/pkg/audit"
	"aegis-hq/aegis/pkg/evaluator"
	"aegis-hq/aegis/pkg/policy/ast"
	"aegis-hq/aegis/pkg/policy/index"
	"aegis-hq/aegis/pkg/telemetry"
)

type stubAdapter struct {
	result map[string]any
	err    error
	block  bool
}

func (s *stubAdapter) Invoke(ctx context.Context, tool, action string, params map[string]any) (map[string]any, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.result, s.err
}

type recordingSink struct {
	decisions []audit.Record
}

func (r *recordingSink) EmitDecision(ctx context.Context, rec audit.Record) {
	r.decisions = append(r.decisions, rec)
}
func (r *recordingSink) EmitReloadError(ctx context.Context, err error) {}

func newTestOrchestrator(t *testing.T, snapshot *ast.PolicySet, adapters map[string]ToolAdapter) (*Orchestrator, *recordingSink, *audit.Ring) {
	t.Helper()
	idx := index.New(snapshot)
	store := approval.New(time.Minute, nil)
	t.Cleanup(store.Stop)
	ring := audit.New(10, nil)
	sink := &recordingSink{}
	return New(idx, store, ring, sink, adapters, nil), sink, ring
}

func snapshotWithAllowed(agentID, tool, action string, requireApproval bool) *ast.PolicySet {
	return &ast.PolicySet{
		Agents: map[string]ast.AgentRule{
			agentID: {
				ID: agentID,
				Permissions: []ast.Permission{
					{Tool: tool, Actions: map[string]struct{}{action: {}}, RequireApproval: requireApproval},
				},
			},
		},
		VersionFingerprint: "fp-1",
	}
}

func TestDispatch_Denied(t *testing.T) {
	o, sink, ring := newTestOrchestrator(t, &ast.PolicySet{Agents: map[string]ast.AgentRule{}}, nil)

	outcome := o.Dispatch(context.Background(), "trace-1", evaluator.Request{AgentID: "ghost"})

	assert.Equal(t, OutcomeDenied, outcome.Kind)
	assert.Equal(t, "unknown agent", outcome.Reason)
	require.Len(t, sink.decisions, 1)
	assert.Equal(t, "deny", sink.decisions[0].Decision)
	assert.Len(t, ring.Snapshot(0), 1)
}

func TestDispatch_ApprovalRequired(t *testing.T) {
	snapshot := snapshotWithAllowed("bot-1", "payments", "create", true)
	o, sink, _ := newTestOrchestrator(t, snapshot, nil)

	outcome := o.Dispatch(context.Background(), "trace-1", evaluator.Request{AgentID: "bot-1", Tool: "payments", Action: "create"})

	assert.Equal(t, OutcomeApprovalRequired, outcome.Kind)
	assert.NotEmpty(t, outcome.ApprovalID)
	require.Len(t, sink.decisions, 1)
	assert.Equal(t, "approval_required", sink.decisions[0].Decision)
}

func TestDispatch_ForwardedOnAllow(t *testing.T) {
	snapshot := snapshotWithAllowed("bot-1", "payments", "create", false)
	adapter := &stubAdapter{result: map[string]any{"status": "created"}}
	o, sink, _ := newTestOrchestrator(t, snapshot, map[string]ToolAdapter{"payments": adapter})

	outcome := o.Dispatch(context.Background(), "trace-1", evaluator.Request{AgentID: "bot-1", Tool: "payments", Action: "create"})

	assert.Equal(t, OutcomeForwarded, outcome.Kind)
	assert.Equal(t, "created", outcome.Result["status"])
	require.Len(t, sink.decisions, 1)
	assert.Equal(t, "allow", sink.decisions[0].Decision)
}

func TestDispatch_NoAdapterRegistered(t *testing.T) {
	snapshot := snapshotWithAllowed("bot-1", "payments", "create", false)
	o, _, _ := newTestOrchestrator(t, snapshot, nil)

	outcome := o.Dispatch(context.Background(), "trace-1", evaluator.Request{AgentID: "bot-1", Tool: "payments", Action: "create"})

	assert.Equal(t, OutcomeAdapterError, outcome.Kind)
	assert.Equal(t, "no adapter registered for tool", outcome.Reason)
}

func TestDispatch_AdapterError(t *testing.T) {
	snapshot := snapshotWithAllowed("bot-1", "payments", "create", false)
	adapter := &stubAdapter{err: errors.New("db unavailable")}
	o, _, _ := newTestOrchestrator(t, snapshot, map[string]ToolAdapter{"payments": adapter})

	outcome := o.Dispatch(context.Background(), "trace-1", evaluator.Request{AgentID: "bot-1", Tool: "payments", Action: "create"})

	assert.Equal(t, OutcomeAdapterError, outcome.Kind)
	assert.Equal(t, "adapter invocation failed", outcome.Reason)
}

func TestDispatch_AdapterTimeout(t *testing.T) {
	snapshot := snapshotWithAllowed("bot-1", "payments", "create", false)
	adapter := &stubAdapter{block: true}
	o, _, _ := newTestOrchestrator(t, snapshot, map[string]ToolAdapter{"payments": adapter})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	outcome := o.Dispatch(ctx, "trace-1", evaluator.Request{AgentID: "bot-1", Tool: "payments", Action: "create"})

	assert.Equal(t, OutcomeAdapterTimeout, outcome.Kind)
}

func TestRelease_ForwardsAfterApproval(t *testing.T) {
	snapshot := snapshotWithAllowed("bot-1", "payments", "create", true)
	adapter := &stubAdapter{result: map[string]any{"status": "created"}}
	o, _, _ := newTestOrchestrator(t, snapshot, map[string]ToolAdapter{"payments": adapter})

	dispatchOutcome := o.Dispatch(context.Background(), "trace-1", evaluator.Request{AgentID: "bot-1", Tool: "payments", Action: "create"})
	require.Equal(t, OutcomeApprovalRequired, dispatchOutcome.Kind)

	releaseOutcome := o.Release(context.Background(), "trace-2", dispatchOutcome.ApprovalID, "alice")

	assert.Equal(t, OutcomeForwarded, releaseOutcome.Kind)
	assert.Equal(t, "created", releaseOutcome.Result["status"])
}

func TestRelease_NotFound(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &ast.PolicySet{Agents: map[string]ast.AgentRule{}}, nil)

	outcome := o.Release(context.Background(), "trace-1", "missing", "alice")
	assert.Equal(t, OutcomeApprovalNotFound, outcome.Kind)
}

var _ telemetry.Sink = (*recordingSink)(nil)
