package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentic-research/coherence/api"
)

// PredicateKind enumerates the four predicate key variants. Keys are parsed
// into one of these exactly once, at schema load time.
type PredicateKind int

const (
	// Exact matches when the value's canonical string equals the literal.
	Exact PredicateKind = iota
	// Alternation matches when the value equals any pipe-delimited member.
	Alternation
	// Numeric matches a comparison or bounded range against a
	// numeric-coercible value.
	Numeric
	// Default supplies a value for an absent or unmatched field and
	// re-enters matching with the substituted value.
	Default
)

func (k PredicateKind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Alternation:
		return "alternation"
	case Numeric:
		return "numeric"
	case Default:
		return "default"
	}
	return "unknown"
}

// NumericPred is a compiled comparison expression.
type NumericPred struct {
	Op        string // "<", "<=", ">", ">=", "==", "!="; empty for a range
	Threshold float64
	Lo, Hi    float64 // inclusive bounds when IsRange
	IsRange   bool
}

// Predicate is one compiled predicate key.
type Predicate struct {
	Kind PredicateKind
	Key  string // the original key text

	Literal string      // Exact
	Alts    []string    // Alternation members, in key order
	Num     NumericPred // Numeric

	// Default only: the field being defaulted and the substituted value.
	DefField string
	DefValue string
}

var (
	defaultKeyRe = regexp.MustCompile(`^\{([A-Za-z0-9_]+)=([^{}|]*)\}$`)
	compareRe    = regexp.MustCompile(`^(>=|<=|==|!=|>|<)\s*(-?[0-9.]+)$`)
	rangeRe      = regexp.MustCompile(`^([0-9.]+)\s*-\s*([0-9.]+)$`)
)

// ParsePredicate classifies a raw predicate key string into its variant.
// Detection order mirrors matching precedence in reverse specificity:
// default form, comparison, range, alternation, then exact literal.
func ParsePredicate(key string) (Predicate, error) {
	if m := defaultKeyRe.FindStringSubmatch(key); m != nil {
		return Predicate{Kind: Default, Key: key, DefField: m[1], DefValue: m[2]}, nil
	}
	if m := compareRe.FindStringSubmatch(key); m != nil {
		threshold, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return Predicate{}, fmt.Errorf("numeric predicate %q: %w", key, err)
		}
		return Predicate{
			Kind: Numeric,
			Key:  key,
			Num:  NumericPred{Op: m[1], Threshold: threshold},
		}, nil
	}
	if m := rangeRe.FindStringSubmatch(key); m != nil {
		lo, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Predicate{}, fmt.Errorf("range predicate %q: %w", key, err)
		}
		hi, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return Predicate{}, fmt.Errorf("range predicate %q: %w", key, err)
		}
		if lo > hi {
			return Predicate{}, fmt.Errorf("range predicate %q: lower bound above upper", key)
		}
		return Predicate{
			Kind: Numeric,
			Key:  key,
			Num:  NumericPred{Lo: lo, Hi: hi, IsRange: true},
		}, nil
	}
	if strings.Contains(key, "|") {
		alts := strings.Split(key, "|")
		for _, alt := range alts {
			if alt == "" {
				return Predicate{}, fmt.Errorf("alternation %q: empty member", key)
			}
		}
		return Predicate{Kind: Alternation, Key: key, Alts: alts}, nil
	}
	if key == "" {
		return Predicate{}, fmt.Errorf("empty predicate key")
	}
	return Predicate{Kind: Exact, Key: key, Literal: key}, nil
}

// Matches reports whether a single value satisfies this predicate.
// Default predicates never match directly; the matcher handles them.
func (p *Predicate) Matches(v api.Value) bool {
	switch p.Kind {
	case Exact:
		return v.String() == p.Literal
	case Alternation:
		s := v.String()
		for _, alt := range p.Alts {
			if s == alt {
				return true
			}
		}
		return false
	case Numeric:
		f, ok := v.Float()
		if !ok {
			// Non-coercible values fall through; not an error.
			return false
		}
		return p.Num.eval(f)
	}
	return false
}

func (n NumericPred) eval(f float64) bool {
	if n.IsRange {
		return n.Lo <= f && f <= n.Hi
	}
	switch n.Op {
	case ">":
		return f > n.Threshold
	case "<":
		return f < n.Threshold
	case ">=":
		return f >= n.Threshold
	case "<=":
		return f <= n.Threshold
	case "==":
		return f == n.Threshold
	case "!=":
		return f != n.Threshold
	}
	return false
}
