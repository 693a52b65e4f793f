// Package schema compiles the JSON-compatible wire form of a routing schema
// into an immutable decision tree with explicit predicate variants. All
// structural validation happens here, at load time; routing never discovers
// a malformed schema per record.
package schema

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/agentic-research/coherence/api"
)

// ValidationError reports a malformed schema. It is fatal at load time.
type ValidationError struct {
	Path   string // slash-joined position inside the schema tree
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "schema validation: " + e.Reason
	}
	return fmt.Sprintf("schema validation at %s: %s", e.Path, e.Reason)
}

// Node is either a *Level (internal node) or a Template (leaf).
type Node interface{ isNode() }

// Template is a leaf: a filename pattern with "{field}" placeholders.
type Template string

func (Template) isNode() {}

// Branch pairs a compiled predicate with its subtree.
type Branch struct {
	Pred  Predicate
	Child Node
}

// Level is one internal node: a routing field plus its ordered branches.
//
// The wire form is a JSON object, which carries no declaration order, so
// branches are canonically ordered: within each precedence tier,
// lexicographically by key. Matching walks tiers Exact, Alternation,
// Numeric, then falls back to the Default branch.
type Level struct {
	Field    string
	Branches []Branch
}

func (*Level) isNode() {}

// Schema is an immutable compiled routing schema.
type Schema struct {
	Root Node
	raw  api.RawSchema
}

// Raw returns the wire form the schema was compiled from.
func (s *Schema) Raw() api.RawSchema { return s.raw }

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Compile validates and compiles a raw schema. An empty raw schema yields a
// schema with a nil root; routing against it fails, but discovery may
// legitimately propose one for an empty corpus.
func Compile(raw api.RawSchema) (*Schema, error) {
	if len(raw) == 0 {
		return &Schema{raw: raw}, nil
	}
	root, err := compileNode(raw, "")
	if err != nil {
		return nil, err
	}
	return &Schema{Root: root, raw: raw}, nil
}

func compileNode(node map[string]any, path string) (Node, error) {
	if len(node) != 1 {
		return nil, &ValidationError{
			Path:   path,
			Reason: fmt.Sprintf("internal node must have exactly one routing field, got %d", len(node)),
		}
	}
	var field string
	for f := range node {
		field = f
	}
	levelPath := join(path, field)

	branchesRaw, ok := node[field].(map[string]any)
	if !ok {
		return nil, &ValidationError{
			Path:   levelPath,
			Reason: fmt.Sprintf("routing field must map predicate keys to subtrees, got %T", node[field]),
		}
	}
	if len(branchesRaw) == 0 {
		return nil, &ValidationError{Path: levelPath, Reason: "internal node has no predicate keys"}
	}

	keys := make([]string, 0, len(branchesRaw))
	for k := range branchesRaw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	level := &Level{Field: field}
	defaults := 0
	for _, key := range keys {
		pred, err := ParsePredicate(key)
		if err != nil {
			return nil, &ValidationError{Path: levelPath, Reason: err.Error()}
		}
		if pred.Kind == Default {
			defaults++
			if defaults > 1 {
				return nil, &ValidationError{Path: levelPath, Reason: "multiple default keys"}
			}
			if pred.DefField != field {
				return nil, &ValidationError{
					Path:   levelPath,
					Reason: fmt.Sprintf("default key %q names field %q, routing field is %q", key, pred.DefField, field),
				}
			}
		}

		var child Node
		switch c := branchesRaw[key].(type) {
		case string:
			if err := validateTemplate(c); err != nil {
				return nil, &ValidationError{Path: join(levelPath, key), Reason: err.Error()}
			}
			child = Template(c)
		case map[string]any:
			child, err = compileNode(c, join(levelPath, key))
			if err != nil {
				return nil, err
			}
		default:
			return nil, &ValidationError{
				Path:   join(levelPath, key),
				Reason: fmt.Sprintf("subtree must be a template string or nested node, got %T", c),
			}
		}
		level.Branches = append(level.Branches, Branch{Pred: pred, Child: child})
	}

	// Stable precedence ordering: Exact, Alternation, Numeric, Default;
	// lexicographic by key within a tier (sort above is stable input).
	sort.SliceStable(level.Branches, func(i, j int) bool {
		return level.Branches[i].Pred.Kind < level.Branches[j].Pred.Kind
	})
	return level, nil
}

func validateTemplate(tmpl string) error {
	if tmpl == "" {
		return fmt.Errorf("empty leaf template")
	}
	depth := 0
	for _, r := range tmpl {
		switch r {
		case '{':
			depth++
			if depth > 1 {
				return fmt.Errorf("template %q: nested brace", tmpl)
			}
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("template %q: unbalanced brace", tmpl)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("template %q: unbalanced brace", tmpl)
	}
	// Every brace pair must be a well-formed placeholder.
	stripped := placeholderRe.ReplaceAllString(tmpl, "")
	for _, r := range stripped {
		if r == '{' || r == '}' {
			return fmt.Errorf("template %q: malformed placeholder", tmpl)
		}
	}
	return nil
}

// Placeholders lists the distinct field names a template references,
// in order of first appearance.
func (t Template) Placeholders() []string {
	seen := make(map[string]bool)
	var fields []string
	for _, m := range placeholderRe.FindAllStringSubmatch(string(t), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			fields = append(fields, m[1])
		}
	}
	return fields
}

func join(path, seg string) string {
	if path == "" {
		return seg
	}
	return path + "/" + seg
}
