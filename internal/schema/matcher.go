package schema

import "github.com/agentic-research/coherence/api"

// MatchResult reports the outcome of matching one level.
type MatchResult struct {
	// Index into Level.Branches of the matched branch; -1 when NotMatched.
	Index int
	// Substituted is non-nil when a Default key supplied the value. The
	// router folds it into the effective record before rendering.
	Substituted *api.Value
}

// NotMatched is the zero outcome: no predicate key accepted the value.
var NotMatched = MatchResult{Index: -1}

// Match evaluates the level's candidate keys against a field value with the
// fixed precedence Exact > Alternation > Numeric. Within a tier the first
// branch in canonical order wins. When nothing matches — or the field is
// absent (present == false) — a Default key, if any, substitutes its value
// and matching re-enters once; if the substituted value still matches no
// other key, the Default branch itself is taken. A level without a Default
// yields NotMatched.
func (l *Level) Match(v api.Value, present bool) MatchResult {
	if present {
		if idx := l.matchOnce(v); idx >= 0 {
			return MatchResult{Index: idx}
		}
	}

	defIdx := -1
	for i := range l.Branches {
		if l.Branches[i].Pred.Kind == Default {
			defIdx = i
			break
		}
	}
	if defIdx < 0 {
		return NotMatched
	}

	sub := api.Str(l.Branches[defIdx].Pred.DefValue)
	if idx := l.matchOnce(sub); idx >= 0 {
		return MatchResult{Index: idx, Substituted: &sub}
	}
	return MatchResult{Index: defIdx, Substituted: &sub}
}

// matchOnce runs a single precedence pass over the non-default branches.
// Branches are stored tier-ordered, so a linear scan respects precedence.
func (l *Level) matchOnce(v api.Value) int {
	for i := range l.Branches {
		p := &l.Branches[i].Pred
		if p.Kind == Default {
			continue
		}
		if p.Matches(v) {
			return i
		}
	}
	return -1
}
