// Package evaluator implements the pure decision function at the heart of
// Aegis: given a policy snapshot and a request, it returns a Decision. It
// never blocks, never does I/O, and never mutates its inputs.
package evaluator

import (
	"aegis-hq/aegis/pkg/policy/ast"
)

// Request is the evaluation input, built by the gateway from an inbound
// HTTP call.
type Request struct {
	AgentID      string
	ParentAgent  string // empty means absent
	Tool         string
	Action       string
	Params       map[string]any
}

// Kind enumerates the tagged Decision variants.
type Kind string

const (
	KindAllow            Kind = "allow"
	KindDeny             Kind = "deny"
	KindApprovalRequired Kind = "approval_required"
)

// Decision is the tagged-variant result of evaluate. Only the fields
// relevant to Kind are meaningful.
type Decision struct {
	Kind Kind

	// Reason is set for KindDeny: a fixed, sanitized, user-facing string.
	Reason string

	// PermissionRef identifies the matched permission for KindApprovalRequired
	// (tool/action pair), for audit and approval-store bookkeeping.
	PermissionRef PermissionRef
}

// PermissionRef identifies a permission by the tool/action pair it grants.
type PermissionRef struct {
	Tool   string
	Action string
}

func deny(reason string) Decision {
	return Decision{Kind: KindDeny, Reason: reason}
}

// Evaluate runs the normative algorithm from the evaluation order: the first
// terminal step wins. snapshot may be nil only for unreachable agents (an
// empty PolicySet still reports "unknown agent", never a panic).
func Evaluate(snapshot *ast.PolicySet, req Request) Decision {
	rule, ok := snapshot.Lookup(req.AgentID)
	if !ok {
		return deny("unknown agent")
	}

	if d, terminal := checkParents(rule, req); terminal {
		return d
	}

	perm, ok := selectPermission(rule, req)
	if !ok {
		return deny("action not permitted")
	}

	if d, terminal := checkConditions(perm, req); terminal {
		return d
	}

	if perm.RequireApproval {
		return Decision{
			Kind:          KindApprovalRequired,
			PermissionRef: PermissionRef{Tool: perm.Tool, Action: req.Action},
		}
	}

	return Decision{Kind: KindAllow}
}

// checkParents runs the agent-level ancestry checks, before the permission
// scan: allow_only_parents first, then deny_if_parent.
func checkParents(rule ast.AgentRule, req Request) (Decision, bool) {
	if rule.HasAllowOnlyParents() {
		if req.ParentAgent == "" {
			return deny("parent required"), true
		}
		if _, ok := rule.AllowOnlyParents[req.ParentAgent]; !ok {
			return deny("parent not permitted"), true
		}
	}
	if req.ParentAgent != "" {
		if _, ok := rule.DenyIfParent[req.ParentAgent]; ok {
			return deny("parent denied"), true
		}
	}
	return Decision{}, false
}

// selectPermission scans permissions in declared order and returns the
// first whose tool matches and whose actions include req.Action.
func selectPermission(rule ast.AgentRule, req Request) (ast.Permission, bool) {
	for _, perm := range rule.Permissions {
		if perm.Tool == req.Tool && perm.AllowsAction(req.Action) {
			return perm, true
		}
	}
	return ast.Permission{}, false
}

// checkConditions evaluates the matched permission's conditions in the
// fixed canonical order (max_amount, currencies, folder_prefix).
func checkConditions(perm ast.Permission, req Request) (Decision, bool) {
	for _, cond := range ast.SortConditions(perm.Conditions) {
		switch c := cond.(type) {
		case ast.MaxAmount:
			amount, ok := numberParam(req.Params, "amount")
			if !ok {
				return deny("amount required"), true
			}
			if amount > float64(c) {
				return deny("amount exceeds limit"), true
			}
		case ast.Currencies:
			currency, ok := stringParam(req.Params, "currency")
			if !ok {
				return deny("currency required"), true
			}
			if _, allowed := c[currency]; !allowed {
				return deny("currency not allowed"), true
			}
		case ast.FolderPrefix:
			path, ok := stringParam(req.Params, "path")
			if !ok || !hasPrefix(path, string(c)) {
				return deny("path outside allowed folder"), true
			}
		}
	}
	return Decision{}, false
}

func numberParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
