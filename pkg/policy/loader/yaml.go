package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"aegis-hq/aegis/pkg/policy/ast"
)

// yamlPolicyFile is the intermediate decode target for one source file.
type yamlPolicyFile struct {
	Version int          `yaml:"version"`
	Agents  []yamlAgent  `yaml:"agents"`
}

type yamlAgent struct {
	ID               string           `yaml:"id"`
	AllowOnlyParents []string         `yaml:"allow_only_parents"`
	DenyIfParent     []string         `yaml:"deny_if_parent"`
	Permissions      []yamlPermission `yaml:"permissions"`
	// Allow is an accepted alias for Permissions.
	Allow []yamlPermission `yaml:"allow"`
}

type yamlPermission struct {
	Tool            string    `yaml:"tool"`
	Actions         []string  `yaml:"actions"`
	RequireApproval bool      `yaml:"require_approval"`
	Conditions      yaml.Node `yaml:"conditions"`
}

// knownConditionKeys is the closed set of recognized ConditionMap keys.
var knownConditionKeys = map[string]bool{
	"max_amount":    true,
	"currencies":    true,
	"folder_prefix": true,
}

// hasTopLevelKey reports whether a raw YAML mapping node has the given key,
// used to distinguish "absent" from "present but empty" for required
// fields (version and agents must be present).
func hasTopLevelKey(root *yaml.Node, key string) bool {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == key {
			return true
		}
	}
	return false
}

// parseYAML parses raw file bytes into the intermediate structure and the
// raw node tree (kept for presence checks and line-number reporting).
func parseYAML(path string, data []byte) (*yamlPolicyFile, *yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, &ParseError{Path: path, Err: err}
	}

	var doc yamlPolicyFile
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		if err := root.Content[0].Decode(&doc); err != nil {
			return nil, nil, &ParseError{Path: path, Line: root.Content[0].Line, Column: root.Content[0].Column, Err: err}
		}
	}

	return &doc, &root, nil
}

// parseConditions decodes a conditions mapping node into the closed
// Condition sum type, dropping and warning on unrecognized keys.
func parseConditions(path string, node yaml.Node) ([]ast.Condition, []ast.LoadWarning) {
	if node.Kind != yaml.MappingNode {
		return nil, nil
	}

	var conds []ast.Condition
	var warnings []ast.LoadWarning

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		valNode := node.Content[i+1]

		if !knownConditionKeys[key] {
			warnings = append(warnings, ast.LoadWarning{
				SourcePath: path,
				Message:    fmt.Sprintf("unrecognized condition key %q ignored", key),
			})
			continue
		}

		switch key {
		case "max_amount":
			var v float64
			if err := valNode.Decode(&v); err != nil {
				warnings = append(warnings, ast.LoadWarning{SourcePath: path, Message: "max_amount: expected a number, ignored"})
				continue
			}
			conds = append(conds, ast.MaxAmount(v))
		case "currencies":
			var list []string
			if err := valNode.Decode(&list); err != nil {
				warnings = append(warnings, ast.LoadWarning{SourcePath: path, Message: "currencies: expected a list of strings, ignored"})
				continue
			}
			set := make(ast.Currencies, len(list))
			for _, c := range list {
				set[c] = struct{}{}
			}
			conds = append(conds, set)
		case "folder_prefix":
			var v string
			if err := valNode.Decode(&v); err != nil {
				warnings = append(warnings, ast.LoadWarning{SourcePath: path, Message: "folder_prefix: expected a string, ignored"})
				continue
			}
			conds = append(conds, ast.FolderPrefix(v))
		}
	}

	return conds, warnings
}
