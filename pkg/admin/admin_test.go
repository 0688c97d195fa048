package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis-hq/aegis/pkg/approval"
	"aegis-hq/aegis/pkg/audit"
	"aegis-hq/aegis/pkg/evaluator"
	"aegis-hq/aegis/pkg/policy/ast"
	"aegis-hq/aegis/pkg/policy/index"
)

func newTestHandler(t *testing.T) (*Handler, *index.Index, *audit.Ring, *approval.Store) {
	t.Helper()
	idx := index.New(&ast.PolicySet{
		Agents: map[string]ast.AgentRule{"bot-1": {ID: "bot-1"}, "bot-2": {ID: "bot-2"}},
		Sources: []ast.Source{
			{Path: "a.yaml", Version: 1, AgentCount: 2},
		},
	})
	ring := audit.New(10, nil)
	store := approval.New(time.Minute, nil)
	t.Cleanup(store.Stop)

	warnings := []ast.LoadWarning{{SourcePath: "b.yaml", Message: "missing required field: version"}}
	h := New(idx, ring, store, func() []ast.LoadWarning { return warnings })
	return h, idx, ring, store
}

func TestHandleAgents(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	mux := http.NewServeMux()
	h.Routes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/agents", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"bot-1", "bot-2"}, body["agents"])
}

func TestHandlePolicies_IncludesWarnings(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	mux := http.NewServeMux()
	h.Routes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/policies", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	policies := body["policies"].([]any)
	require.Len(t, policies, 1)
	warnings := body["warnings"].([]any)
	require.Len(t, warnings, 1)
}

func TestHandleDecisions_RespectsLimit(t *testing.T) {
	h, _, ring, _ := newTestHandler(t)
	for i := 0; i < 5; i++ {
		ring.Append(audit.Record{AgentID: "bot-1"})
	}
	mux := http.NewServeMux()
	h.Routes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/decisions?limit=2", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	decisions := body["decisions"].([]any)
	assert.Len(t, decisions, 2)
}

func TestHandlePendingApprovals(t *testing.T) {
	h, _, _, store := newTestHandler(t)
	store.Create(evaluator.Request{AgentID: "bot-1"})
	mux := http.NewServeMux()
	h.Routes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/approvals/pending", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	pending := body["pending_approvals"].([]any)
	assert.Len(t, pending, 1)
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 50, parseLimit("", 50, 500))
	assert.Equal(t, 10, parseLimit("10", 50, 500))
	assert.Equal(t, 50, parseLimit("not-a-number", 50, 500))
	assert.Equal(t, 50, parseLimit("-5", 50, 500))
	assert.Equal(t, 500, parseLimit("10000", 50, 500))
}
