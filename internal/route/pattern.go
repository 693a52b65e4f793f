package route

import (
	"path"

	"github.com/agentic-research/coherence/api"
	"github.com/agentic-research/coherence/internal/schema"
)

// Pattern mirrors the schema walk for a partial record and emits a glob
// pattern. Levels the intent constrains become the literal segment the
// router would have produced; unconstrained levels become "field=*" and the
// walk continues down a branch whose subtree can still consume the intent's
// remaining fields. The terminal segment is a bare wildcard covering the
// leaf template.
//
// For schemas without overlapping predicates, every record consistent with
// the intent routes under the widened pattern and no inconsistent record
// does. Defaults are never substituted here: an unspecified field is a
// wildcard, which still covers paths the router produced via a default.
func (e *Engine) Pattern(intent api.Record) string {
	segments := []string{e.root}
	if e.schema == nil || e.schema.Root == nil {
		return path.Join(e.root, "*")
	}

	node := e.schema.Root
	for {
		level, ok := node.(*schema.Level)
		if !ok {
			break
		}
		value, present := intent[level.Field]
		if present {
			if idx := matchLiteral(level, value); idx >= 0 {
				branch := level.Branches[idx]
				segments = append(segments, level.Field+"="+segmentText(&branch.Pred, value))
				node = branch.Child
				continue
			}
		}
		// Unspecified, or a value outside the schema: wildcard this level.
		// Subtrees can diverge, so keep exploring down a branch that can
		// still consume the intent's remaining fields.
		segments = append(segments, level.Field+"=*")
		node = descendFor(level, intent)
	}

	segments = append(segments, "*")
	return path.Join(segments...)
}

// descendFor picks the subtree to explore below a wildcarded level: the
// first branch, in canonical order, whose subtree routes on a field the
// intent constrains. Without such a branch the first branch stands in;
// sibling subtrees in synthesized schemas share their shape anyway.
func descendFor(level *schema.Level, intent api.Record) schema.Node {
	for _, b := range level.Branches {
		if mentionsAny(b.Child, intent) {
			return b.Child
		}
	}
	return level.Branches[0].Child
}

func mentionsAny(node schema.Node, intent api.Record) bool {
	level, ok := node.(*schema.Level)
	if !ok {
		return false
	}
	if _, ok := intent[level.Field]; ok {
		return true
	}
	for _, b := range level.Branches {
		if mentionsAny(b.Child, intent) {
			return true
		}
	}
	return false
}

// matchLiteral is the query-side precedence pass: same tiers as routing,
// but defaults are skipped entirely.
func matchLiteral(level *schema.Level, v api.Value) int {
	for i := range level.Branches {
		p := &level.Branches[i].Pred
		if p.Kind == schema.Default {
			continue
		}
		if p.Matches(v) {
			return i
		}
	}
	return -1
}
