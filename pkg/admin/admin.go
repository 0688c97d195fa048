// Package admin implements the read-only admin surface: it owns no state
// of its own, only views the Policy Index, Decision Ring, and Approval
// Store.
package admin

import (
	"net/http"

	"aegis-hq/aegis/pkg/approval"
	"aegis-hq/aegis/pkg/audit"
	"aegis-hq/aegis/pkg/gateway/middleware"
	"aegis-hq/aegis/pkg/policy/ast"
	"aegis-hq/aegis/pkg/policy/index"
)

const (
	defaultDecisionsLimit = 50
	maxDecisionsLimit     = 500
)

// Handler holds the read-only dependencies the admin routes query.
type Handler struct {
	index    *index.Index
	ring     *audit.Ring
	approval *approval.Store
	warnings func() []ast.LoadWarning
}

// New constructs a Handler. warnings may be nil if load-warning
// surfacing is not wired; the policies view then reports no warnings.
func New(idx *index.Index, ring *audit.Ring, approvalStore *approval.Store, warnings func() []ast.LoadWarning) *Handler {
	if warnings == nil {
		warnings = func() []ast.LoadWarning { return nil }
	}
	return &Handler{index: idx, ring: ring, approval: approvalStore, warnings: warnings}
}

// Routes registers the four read-only admin routes.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/agents", h.handleAgents)
	mux.HandleFunc("GET /api/admin/policies", h.handlePolicies)
	mux.HandleFunc("GET /api/admin/decisions", h.handleDecisions)
	mux.HandleFunc("GET /api/admin/approvals/pending", h.handlePendingApprovals)
}

func (h *Handler) handleAgents(w http.ResponseWriter, r *http.Request) {
	snapshot := h.index.Current()
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"agents": snapshot.AgentIDs()})
}

// policySummary is the admin-facing shape of ast.Source.
type policySummary struct {
	Path       string `json:"path"`
	Version    int    `json:"version"`
	AgentCount int    `json:"agent_count"`
}

func (h *Handler) handlePolicies(w http.ResponseWriter, r *http.Request) {
	snapshot := h.index.Current()
	summaries := make([]policySummary, 0, len(snapshot.Sources))
	for _, src := range snapshot.Sources {
		summaries = append(summaries, policySummary{
			Path:       src.Path,
			Version:    src.Version,
			AgentCount: src.AgentCount,
		})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"policies": summaries,
		"warnings": h.warnings(),
	})
}

func (h *Handler) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), defaultDecisionsLimit, maxDecisionsLimit)
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"decisions": h.ring.Snapshot(limit)})
}

func (h *Handler) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"pending_approvals": h.approval.ListPending()})
}
