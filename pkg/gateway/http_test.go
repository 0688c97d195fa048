package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis-hq/aegis/pkg/policy/ast"
)

func newTestServerMux(t *testing.T, snapshot *ast.PolicySet, adapters map[string]ToolAdapter) *http.ServeMux {
	t.Helper()
	o, _, _ := newTestOrchestrator(t, snapshot, adapters)
	mux := http.NewServeMux()
	o.Routes(mux)
	return mux
}

func TestHandleDispatch_MissingAgentHeader(t *testing.T) {
	mux := newTestServerMux(t, &ast.PolicySet{Agents: map[string]ast.AgentRule{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/tools/payments/create", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDispatch_DeniedReturnsForbidden(t *testing.T) {
	mux := newTestServerMux(t, &ast.PolicySet{Agents: map[string]ast.AgentRule{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/tools/payments/create", nil)
	req.Header.Set(AgentIDHeader, "ghost")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unknown agent", body["reason"])
}

func TestHandleDispatch_ForwardedReturnsOK(t *testing.T) {
	snapshot := snapshotWithAllowed("bot-1", "payments", "create", false)
	adapter := &stubAdapter{result: map[string]any{"status": "created"}}
	mux := newTestServerMux(t, snapshot, map[string]ToolAdapter{"payments": adapter})

	body, _ := json.Marshal(map[string]any{"amount": 10})
	req := httptest.NewRequest(http.MethodPost, "/tools/payments/create", bytes.NewReader(body))
	req.Header.Set(AgentIDHeader, "bot-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleDispatch_ApprovalRequiredReturnsAccepted(t *testing.T) {
	snapshot := snapshotWithAllowed("bot-1", "payments", "create", true)
	mux := newTestServerMux(t, snapshot, nil)

	req := httptest.NewRequest(http.MethodPost, "/tools/payments/create", nil)
	req.Header.Set(AgentIDHeader, "bot-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["approval_id"])
}

func TestHandleApprove_MissingApproverHeader(t *testing.T) {
	mux := newTestServerMux(t, &ast.PolicySet{Agents: map[string]ast.AgentRule{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/approve/some-id", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleApprove_UnknownIDReturnsNotFound(t *testing.T) {
	mux := newTestServerMux(t, &ast.PolicySet{Agents: map[string]ast.AgentRule{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/approve/unknown-id", nil)
	req.Header.Set(AgentIDHeader, "alice")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	mux := newTestServerMux(t, &ast.PolicySet{Agents: map[string]ast.AgentRule{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleMetrics_Exposed(t *testing.T) {
	mux := newTestServerMux(t, &ast.PolicySet{Agents: map[string]ast.AgentRule{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDecodeParams_EmptyBodyYieldsEmptyMap(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/tools/x/y", nil)
	params, err := decodeParams(req)
	require.NoError(t, err)
	assert.Empty(t, params)
}

func TestDecodeParams_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/tools/x/y", bytes.NewReader([]byte("{not json")))
	_, err := decodeParams(req)
	assert.Error(t, err)
}
