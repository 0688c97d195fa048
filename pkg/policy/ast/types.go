// Package ast defines the canonicalized, in-memory representation of Aegis
// policy files: the output of the Loader and the input to the Index and
// Evaluator. Nothing in this package touches YAML, the filesystem, or HTTP.
package ast

import "sort"

// PolicyFile is one parsed and validated source file.
type PolicyFile struct {
	Version    int
	Agents     []AgentRule
	SourcePath string
}

// AgentRule is the set of permissions and ancestry constraints for one agent.
type AgentRule struct {
	ID               string
	AllowOnlyParents map[string]struct{} // nil means unset
	DenyIfParent     map[string]struct{}
	Permissions      []Permission
}

// HasAllowOnlyParents reports whether the allow_only_parents constraint was
// present in the source file (as opposed to an empty set).
func (a AgentRule) HasAllowOnlyParents() bool {
	return a.AllowOnlyParents != nil
}

// Permission is one tool/action grant. Conditions keep the order in which
// they appear in the source file; SortConditions yields the canonical
// evaluation order.
type Permission struct {
	Tool            string
	Actions         map[string]struct{}
	ActionsOrdered  []string // preserves source order for admin listing
	Conditions      []Condition
	RequireApproval bool
}

// AllowsAction reports whether this permission grants the given action.
func (p Permission) AllowsAction(action string) bool {
	_, ok := p.Actions[action]
	return ok
}

// Condition is the closed sum of condition kinds recognized from a
// ConditionMap. Unknown keys never reach this type — the Loader drops them
// with a warning before a Condition is ever constructed.
type Condition interface {
	isCondition()
	// Name returns the canonical evaluation-order key, used to sort
	// conditions into a fixed, deterministic order.
	Name() string
}

// conditionOrder fixes the evaluation order named in the evaluator's
// algorithm: max_amount, then currencies, then folder_prefix.
var conditionOrder = map[string]int{
	"max_amount":    0,
	"currencies":    1,
	"folder_prefix": 2,
}

// SortConditions orders conditions into the fixed canonical order so that
// denial messages are deterministic regardless of source YAML key order.
func SortConditions(conds []Condition) []Condition {
	sorted := make([]Condition, len(conds))
	copy(sorted, conds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return conditionOrder[sorted[i].Name()] < conditionOrder[sorted[j].Name()]
	})
	return sorted
}

// MaxAmount is the max_amount condition: params.amount must be <= this value.
type MaxAmount float64

func (MaxAmount) isCondition()  {}
func (MaxAmount) Name() string  { return "max_amount" }

// Currencies is the currencies condition: params.currency must be a member.
type Currencies map[string]struct{}

func (Currencies) isCondition() {}
func (Currencies) Name() string { return "currencies" }

// FolderPrefix is the folder_prefix condition: params.path must start with it.
type FolderPrefix string

func (FolderPrefix) isCondition() {}
func (FolderPrefix) Name() string { return "folder_prefix" }

// LoadWarning records a non-fatal problem encountered while loading one
// source file: a dropped file, or an unrecognized condition key.
type LoadWarning struct {
	SourcePath string
	Message    string
}

// Source describes one contributing file for admin introspection.
type Source struct {
	Path       string
	Version    int
	AgentCount int
}

// PolicySet is an immutable, fingerprinted snapshot of all active rules.
// Once constructed it is never mutated; the Index publishes new instances
// by swapping a pointer, never by editing this struct's fields in place.
type PolicySet struct {
	Agents             map[string]AgentRule
	VersionFingerprint string
	Sources            []Source
}

// Lookup returns the rule for agentID and whether it exists.
func (p *PolicySet) Lookup(agentID string) (AgentRule, bool) {
	if p == nil {
		return AgentRule{}, false
	}
	rule, ok := p.Agents[agentID]
	return rule, ok
}

// AgentIDs returns the sorted list of agent ids in the snapshot, for stable
// admin listings.
func (p *PolicySet) AgentIDs() []string {
	if p == nil {
		return nil
	}
	ids := make([]string, 0, len(p.Agents))
	for id := range p.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
