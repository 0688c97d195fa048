package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aegis-hq/aegis/pkg/policy/ast"
)

// Load parses every *.yml/*.yaml file under dir, validates each
// independently, and merges the survivors into one immutable PolicySet.
// A per-file problem drops that file and produces a LoadWarning; it never
// aborts the load. Only a directory-level I/O failure returns a non-nil
// error, in which case the caller must retain its previous snapshot.
func Load(dir string) (*ast.PolicySet, []ast.LoadWarning, error) {
	paths, err := collectPolicyFiles(dir)
	if err != nil {
		return nil, nil, &DirectoryError{Dir: dir, Err: err}
	}

	var warnings []ast.LoadWarning
	agents := make(map[string]ast.AgentRule)
	var sources []ast.Source

	// Lexical order is the merge order: a later agent definition in sorted
	// source-path order wins over an earlier one with the same id.
	sort.Strings(paths)

	for _, path := range paths {
		file, fileWarnings, err := loadFile(path)
		warnings = append(warnings, fileWarnings...)
		if err != nil {
			warnings = append(warnings, ast.LoadWarning{SourcePath: path, Message: err.Error()})
			continue
		}

		for _, agent := range file.Agents {
			agents[agent.ID] = agent
		}
		sources = append(sources, ast.Source{
			Path:       path,
			Version:    file.Version,
			AgentCount: len(file.Agents),
		})
	}

	set := &ast.PolicySet{
		Agents:  agents,
		Sources: sources,
	}
	set.VersionFingerprint = fingerprint(set)

	return set, warnings, nil
}

// loadFile reads, parses, validates, and normalizes one source file. Any
// failure returns a descriptive error and the file is entirely dropped by
// the caller.
func loadFile(path string) (*ast.PolicyFile, []ast.LoadWarning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &LoadError{Path: path, Err: err}
	}

	doc, root, err := parseYAML(path, data)
	if err != nil {
		return nil, nil, err
	}

	if !hasTopLevelKey(root, "version") {
		return nil, nil, &ValidationError{Path: path, Reason: "missing required field: version"}
	}
	if doc.Version != 1 {
		return nil, nil, &ValidationError{Path: path, Reason: fmt.Sprintf("unrecognized version %d (only version 1 is supported)", doc.Version)}
	}
	if !hasTopLevelKey(root, "agents") {
		return nil, nil, &ValidationError{Path: path, Reason: "missing required field: agents"}
	}

	var warnings []ast.LoadWarning
	rules := make([]ast.AgentRule, 0, len(doc.Agents))

	for i, a := range doc.Agents {
		rule, agentWarnings, err := buildAgentRule(path, i, a)
		if err != nil {
			warnings = append(warnings, ast.LoadWarning{SourcePath: path, Message: err.Error()})
			continue
		}
		warnings = append(warnings, agentWarnings...)
		rules = append(rules, rule)
	}

	return &ast.PolicyFile{
		Version:    doc.Version,
		Agents:     rules,
		SourcePath: path,
	}, warnings, nil
}

// buildAgentRule validates and normalizes one agent entry. A single
// malformed agent does not drop the whole file — only itself, surfaced as
// a LoadWarning by the caller — since file-level drop criteria concern
// structural problems (missing version/agents), not one bad entry among
// many.
func buildAgentRule(path string, index int, a yamlAgent) (ast.AgentRule, []ast.LoadWarning, error) {
	id := strings.TrimSpace(a.ID)
	if id == "" {
		return ast.AgentRule{}, nil, fmt.Errorf("agent[%d]: missing required field: id", index)
	}

	perms := a.Permissions
	if len(perms) == 0 {
		perms = a.Allow
	}
	if len(perms) == 0 {
		return ast.AgentRule{}, nil, fmt.Errorf("agent %q: missing required field: permissions", id)
	}

	var warnings []ast.LoadWarning
	permissions := make([]ast.Permission, 0, len(perms))
	for pi, yp := range perms {
		perm, permWarnings, err := buildPermission(path, id, pi, yp)
		if err != nil {
			return ast.AgentRule{}, nil, err
		}
		warnings = append(warnings, permWarnings...)
		permissions = append(permissions, perm)
	}

	rule := ast.AgentRule{
		ID:           id,
		DenyIfParent: toSet(a.DenyIfParent),
		Permissions:  permissions,
	}
	if a.AllowOnlyParents != nil {
		rule.AllowOnlyParents = toSet(a.AllowOnlyParents)
	}

	return rule, warnings, nil
}

func buildPermission(path, agentID string, index int, yp yamlPermission) (ast.Permission, []ast.LoadWarning, error) {
	tool := strings.TrimSpace(yp.Tool)
	if tool == "" {
		return ast.Permission{}, nil, fmt.Errorf("agent %q permission[%d]: missing required field: tool", agentID, index)
	}
	if len(yp.Actions) == 0 {
		return ast.Permission{}, nil, fmt.Errorf("agent %q permission[%d]: actions must be a non-empty list", agentID, index)
	}

	actionSet := make(map[string]struct{}, len(yp.Actions))
	ordered := make([]string, 0, len(yp.Actions))
	for _, action := range yp.Actions {
		action = strings.TrimSpace(action)
		if action == "" {
			continue
		}
		if _, dup := actionSet[action]; dup {
			continue
		}
		actionSet[action] = struct{}{}
		ordered = append(ordered, action)
	}
	if len(ordered) == 0 {
		return ast.Permission{}, nil, fmt.Errorf("agent %q permission[%d]: actions must be a non-empty list", agentID, index)
	}

	conds, warnings := parseConditions(path, yp.Conditions)

	return ast.Permission{
		Tool:            tool,
		Actions:         actionSet,
		ActionsOrdered:  ordered,
		Conditions:      conds,
		RequireApproval: yp.RequireApproval,
	}, warnings, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

// collectPolicyFiles walks dir non-recursively, collecting *.yml/*.yaml
// files and skipping hidden files and subdirectories.
func collectPolicyFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".yml" || ext == ".yaml" {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}

// fingerprint hashes the sorted, canonicalized content of a PolicySet so
// that two semantically-equal snapshots produce the same digest regardless
// of file ordering or whitespace.
func fingerprint(set *ast.PolicySet) string {
	ids := set.AgentIDs()
	var b strings.Builder
	for _, id := range ids {
		rule := set.Agents[id]
		fmt.Fprintf(&b, "agent:%s\n", id)
		writeSortedSet(&b, "allow_only_parents", rule.AllowOnlyParents, rule.HasAllowOnlyParents())
		writeSortedSet(&b, "deny_if_parent", rule.DenyIfParent, true)
		for _, perm := range rule.Permissions {
			fmt.Fprintf(&b, "perm:%s:%v:%t\n", perm.Tool, perm.ActionsOrdered, perm.RequireApproval)
			for _, cond := range ast.SortConditions(perm.Conditions) {
				fmt.Fprintf(&b, "cond:%s=%v\n", cond.Name(), cond)
			}
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writeSortedSet(b *strings.Builder, label string, set map[string]struct{}, present bool) {
	if !present {
		return
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(b, "%s:%v\n", label, keys)
}
