package discover

import (
	"sort"
	"strings"

	"github.com/agentic-research/coherence/api"
)

// maxExactBranches caps how many Exact keys one synthesized level carries;
// surplus values collapse into a single Alternation key.
const maxExactBranches = 8

// ClusterSchema is the synthesis result for one cluster.
type ClusterSchema struct {
	ID     int
	Size   int
	Field  string // discriminating field; empty when none qualifies
	Values []string
	Schema api.RawSchema // nil when no structure was found

	// Fields and Singles describe the cluster even when it has no internal
	// structure: a pure cluster is all Singles, and the merge step reads
	// them to branch on the values that separate clusters from each other.
	Fields  []string          // all observed fields, sorted
	Singles map[string]string // fields with exactly one value in the cluster
}

// Synthesize builds a schema branch for one cluster of records. The
// discriminating field is the one with the highest distinct value count
// that is at least 2 and strictly below the cluster size: a field unique
// per record identifies rather than groups, and a single-valued field
// cannot branch. Distinct values become Exact keys (overflow folds into an
// Alternation); the leaf is a template over the remaining fields.
func Synthesize(id int, cluster []api.Record) ClusterSchema {
	cs := ClusterSchema{ID: id, Size: len(cluster)}
	if len(cluster) == 0 {
		return cs
	}

	stats := make(map[string]map[string]bool)
	for _, rec := range cluster {
		for field, v := range rec {
			if field == depthField {
				continue
			}
			if stats[field] == nil {
				stats[field] = make(map[string]bool)
			}
			stats[field][v.String()] = true
		}
	}

	fields := make([]string, 0, len(stats))
	for f := range stats {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	cs.Fields = fields

	cs.Singles = make(map[string]string)
	for _, f := range fields {
		if len(stats[f]) == 1 {
			for v := range stats[f] {
				cs.Singles[f] = v
			}
		}
	}

	best, bestDistinct := "", 0
	for _, f := range fields {
		distinct := len(stats[f])
		if distinct < 2 || distinct >= len(cluster) {
			continue
		}
		if distinct > bestDistinct {
			best, bestDistinct = f, distinct
		}
	}
	if best == "" {
		return cs
	}

	values := make([]string, 0, bestDistinct)
	for v := range stats[best] {
		values = append(values, v)
	}
	sort.Strings(values)

	var remaining []string
	for _, f := range fields {
		if f != best {
			remaining = append(remaining, f)
		}
	}
	leaf := leafTemplate(remaining)

	cs.Field = best
	cs.Values = values
	cs.Schema = api.RawSchema{best: exactBranches(values, leaf)}
	return cs
}

// exactBranches maps each value to the leaf template, folding any surplus
// beyond maxExactBranches into a single Alternation key.
func exactBranches(values []string, leaf string) map[string]any {
	branches := make(map[string]any, len(values))
	if len(values) > maxExactBranches {
		for _, v := range values[:maxExactBranches-1] {
			branches[v] = leaf
		}
		branches[strings.Join(values[maxExactBranches-1:], "|")] = leaf
	} else {
		for _, v := range values {
			branches[v] = leaf
		}
	}
	return branches
}

// leafTemplate renders the non-routing fields into a filename template.
func leafTemplate(fields []string) string {
	if len(fields) == 0 {
		return "record.json"
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = "{" + f + "}"
	}
	return strings.Join(parts, "_") + ".json"
}
