// Package route implements the schema router and the query pattern
// generator. Both are pure: they compute paths and glob patterns from an
// immutable compiled schema and never touch the filesystem. The caller owns
// directory creation, the file write, and collision handling on the
// returned path.
package route

import (
	"fmt"
	"path"
	"strings"

	"github.com/agentic-research/coherence/api"
	"github.com/agentic-research/coherence/internal/schema"
)

// RoutingError means a schema level matched no predicate key and had no
// default. The record is not persisted; nothing partial is written.
type RoutingError struct {
	Field string
	Value string
	At    string // path routed so far
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing: no predicate for %s=%q at %s", e.Field, e.Value, e.At)
}

// TemplateError means the terminal template references a field the record
// does not carry even after default substitution.
type TemplateError struct {
	Template string
	Field    string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q: record has no field %q", e.Template, e.Field)
}

// Engine holds an immutable schema and a root location. It carries no
// mutable state; identical (schema, record) input always yields the
// identical path.
type Engine struct {
	schema *schema.Schema
	root   string
}

// New builds an engine over a compiled schema rooted at root.
func New(s *schema.Schema, root string) *Engine {
	return &Engine{schema: s, root: root}
}

// Schema returns the engine's compiled schema.
func (e *Engine) Schema() *schema.Schema { return e.schema }

// Root returns the engine's root location.
func (e *Engine) Root() string { return e.root }

// Route walks the record through the schema and returns the rendered
// relative path. Fail-closed: a NotMatched level yields *RoutingError and a
// template referencing an absent field yields *TemplateError; no partial
// path escapes.
func (e *Engine) Route(rec api.Record) (string, error) {
	if e.schema == nil || e.schema.Root == nil {
		return "", &RoutingError{Field: "", Value: "", At: e.root}
	}

	segments := []string{e.root}
	effective := rec
	cloned := false
	node := e.schema.Root

	for {
		level, ok := node.(*schema.Level)
		if !ok {
			break
		}
		value, present := effective[level.Field]
		res := level.Match(value, present)
		if res.Index < 0 {
			return "", &RoutingError{
				Field: level.Field,
				Value: value.String(),
				At:    path.Join(segments...),
			}
		}
		if res.Substituted != nil {
			if !cloned {
				// Copy-on-write: never mutate the caller's record.
				effective = effective.Clone()
				cloned = true
			}
			effective[level.Field] = *res.Substituted
		}
		branch := level.Branches[res.Index]
		segments = append(segments, level.Field+"="+segmentText(&branch.Pred, effective[level.Field]))
		node = branch.Child
	}

	tmpl := node.(schema.Template)
	filename, err := render(tmpl, effective)
	if err != nil {
		return "", err
	}
	segments = append(segments, filename)
	return path.Join(segments...), nil
}

// segmentText renders the directory segment for a matched branch. Exact
// matches use the literal, alternation and numeric keys use the key text,
// and a taken default uses the substituted value. All forms pass through
// the sanitizer so routing and querying agree byte for byte.
func segmentText(p *schema.Predicate, v api.Value) string {
	switch p.Kind {
	case schema.Exact:
		return Sanitize(p.Literal)
	case schema.Alternation, schema.Numeric:
		return Sanitize(p.Key)
	default:
		return Sanitize(v.String())
	}
}

// render substitutes every {field} placeholder from the record.
func render(tmpl schema.Template, rec api.Record) (string, error) {
	out := string(tmpl)
	for _, field := range tmpl.Placeholders() {
		v, ok := rec[field]
		if !ok {
			return "", &TemplateError{Template: string(tmpl), Field: field}
		}
		out = strings.ReplaceAll(out, "{"+field+"}", v.String())
	}
	return out, nil
}

var opReplacer = strings.NewReplacer(
	">=", "gte_",
	"<=", "lte_",
	"==", "eq_",
	"!=", "ne_",
	">", "gt_",
	"<", "lt_",
)

// Sanitize makes a predicate key or value safe as a path segment:
// comparison operators become readable prefixes, everything outside
// [A-Za-z0-9_.-] is dropped.
func Sanitize(s string) string {
	s = opReplacer.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '-', r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}
