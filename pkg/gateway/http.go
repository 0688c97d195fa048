package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aegis-hq/aegis/pkg/evaluator"
	"aegis-hq/aegis/pkg/gateway/middleware"
)

// AgentIDHeader is the header every dispatch and release call must carry.
// Aegis trusts it at face value — caller authentication beyond this header
// is out of scope.
const AgentIDHeader = "X-Agent-ID"

// ParentAgentHeader optionally names the caller's own caller, for ancestry
// checks against allow_only_parents and deny_if_parent.
const ParentAgentHeader = "X-Parent-Agent"

// Routes registers the dispatch and release surface on mux. Admin routes
// are registered separately by pkg/admin, which only needs read access to
// the same components.
func (o *Orchestrator) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /tools/{tool}/{action}", o.handleDispatch)
	mux.HandleFunc("POST /api/approve/{approval_id}", o.handleApprove)
	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (o *Orchestrator) handleDispatch(w http.ResponseWriter, r *http.Request) {
	agentID := r.Header.Get(AgentIDHeader)
	if agentID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "missing X-Agent-ID header")
		return
	}

	params, err := decodeParams(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := evaluator.Request{
		AgentID:     agentID,
		ParentAgent: r.Header.Get(ParentAgentHeader),
		Tool:        r.PathValue("tool"),
		Action:      r.PathValue("action"),
		Params:      params,
	}

	outcome := o.Dispatch(r.Context(), middleware.GetRequestID(r.Context()), req)

	switch outcome.Kind {
	case OutcomeDenied:
		middleware.WriteError(w, http.StatusForbidden, outcome.Reason)
	case OutcomeApprovalRequired:
		middleware.WriteJSON(w, http.StatusAccepted, map[string]any{"approval_id": outcome.ApprovalID})
	case OutcomeForwarded:
		middleware.WriteJSON(w, http.StatusOK, outcome.Result)
	case OutcomeAdapterTimeout:
		middleware.WriteError(w, http.StatusGatewayTimeout, "adapter timeout")
	default: // OutcomeAdapterError
		middleware.WriteError(w, http.StatusBadGateway, outcome.Reason)
	}
}

func (o *Orchestrator) handleApprove(w http.ResponseWriter, r *http.Request) {
	approverID := r.Header.Get(AgentIDHeader)
	if approverID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "missing X-Agent-ID header")
		return
	}

	approvalID := r.PathValue("approval_id")
	outcome := o.Release(r.Context(), middleware.GetRequestID(r.Context()), approvalID, approverID)

	switch outcome.Kind {
	case OutcomeApprovalNotFound:
		middleware.WriteError(w, http.StatusNotFound, "unknown approval id")
	case OutcomeApprovalConflict:
		middleware.WriteError(w, http.StatusConflict, fmt.Sprintf("approval already %s", outcome.CurrentStatus))
	case OutcomeApprovalExpired:
		middleware.WriteError(w, http.StatusConflict, "approval expired")
	case OutcomeForwarded:
		middleware.WriteJSON(w, http.StatusOK, outcome.Result)
	case OutcomeAdapterTimeout:
		middleware.WriteError(w, http.StatusGatewayTimeout, "adapter timeout")
	default: // OutcomeAdapterError
		middleware.WriteError(w, http.StatusBadGateway, outcome.Reason)
	}
}

// decodeParams reads the JSON request body as a params map. An empty body
// is treated as no params, not an error.
func decodeParams(r *http.Request) (map[string]any, error) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return map[string]any{}, nil
	}

	var params map[string]any
	if err := json.Unmarshal(body, &params); err != nil {
		return nil, err
	}
	return params, nil
}
