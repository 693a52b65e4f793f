package discover

import (
	"fmt"
	"sort"

	"github.com/agentic-research/coherence/api"
)

// Merge reconciles per-cluster schemas into one proposal. The largest
// cluster's structure wins; other clusters that branch on the same field
// contribute any predicate keys the base is missing, while clusters that
// branch on a different field are discarded and noted for human review.
// Clusters without internal structure still contribute: a field that is
// constant inside every cluster but differs between them is exactly what
// separated the corpus, so its per-cluster values become Exact branches.
func Merge(schemas []ClusterSchema) (api.RawSchema, []string) {
	var withStructure []ClusterSchema
	for _, cs := range schemas {
		if cs.Schema != nil {
			withStructure = append(withStructure, cs)
		}
	}
	if len(withStructure) == 0 {
		if merged, notes := contrastBranch(schemas); merged != nil {
			return merged, notes
		}
		return api.RawSchema{}, nil
	}

	sort.Slice(withStructure, func(i, j int) bool {
		if withStructure[i].Size != withStructure[j].Size {
			return withStructure[i].Size > withStructure[j].Size
		}
		return withStructure[i].ID < withStructure[j].ID
	})

	base := withStructure[0]
	merged := api.RawSchema{base.Field: copyBranches(base.Schema[base.Field].(map[string]any))}
	var notes []string

	for _, cs := range withStructure[1:] {
		if cs.Field != base.Field {
			notes = append(notes, fmt.Sprintf(
				"cluster %d (%d records) branched on %q instead of %q; its structure was discarded",
				cs.ID, cs.Size, cs.Field, base.Field))
			continue
		}
		target := merged[base.Field].(map[string]any)
		added := 0
		for key, sub := range cs.Schema[cs.Field].(map[string]any) {
			if _, exists := target[key]; !exists {
				target[key] = sub
				added++
			}
		}
		if added > 0 {
			notes = append(notes, fmt.Sprintf(
				"cluster %d contributed %d additional %q branch(es)", cs.ID, added, base.Field))
		}
	}

	// Structureless clusters pinned to a single value of the base field
	// still widen the level: a pure success cluster next to a base that
	// branches on outcome means success belongs in the proposal.
	target := merged[base.Field].(map[string]any)
	for _, cs := range schemas {
		if cs.Schema != nil {
			continue
		}
		v, ok := cs.Singles[base.Field]
		if !ok {
			continue
		}
		if _, exists := target[v]; !exists {
			target[v] = anyBranchLeaf(target)
			notes = append(notes, fmt.Sprintf(
				"cluster %d (%d records) holds %q=%q throughout; added it as a branch",
				cs.ID, cs.Size, base.Field, v))
		}
	}
	return merged, notes
}

// contrastBranch salvages a proposal from clusters that are each internally
// uniform. It picks the field that is single-valued in every cluster yet
// takes the most distinct values across them (lexicographic tie-break), and
// branches on those values. The leaf covers fields every cluster shares.
func contrastBranch(schemas []ClusterSchema) (api.RawSchema, []string) {
	values := make(map[string]map[string]bool)
	seenIn := make(map[string]int)
	fieldIn := make(map[string]int)
	clusters := 0
	for _, cs := range schemas {
		if cs.Size == 0 {
			continue
		}
		clusters++
		for f, v := range cs.Singles {
			if values[f] == nil {
				values[f] = make(map[string]bool)
			}
			values[f][v] = true
			seenIn[f]++
		}
		for _, f := range cs.Fields {
			fieldIn[f]++
		}
	}
	if clusters < 2 {
		return nil, nil
	}

	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	best, bestDistinct := "", 0
	for _, f := range fields {
		if seenIn[f] < clusters || len(values[f]) < 2 {
			continue
		}
		if len(values[f]) > bestDistinct {
			best, bestDistinct = f, len(values[f])
		}
	}
	if best == "" {
		return nil, nil
	}

	var remaining []string
	for f, n := range fieldIn {
		if f != best && n == clusters {
			remaining = append(remaining, f)
		}
	}
	sort.Strings(remaining)

	vals := make([]string, 0, bestDistinct)
	for v := range values[best] {
		vals = append(vals, v)
	}
	sort.Strings(vals)

	merged := api.RawSchema{best: exactBranches(vals, leafTemplate(remaining))}
	notes := []string{fmt.Sprintf(
		"field %q is uniform inside each cluster but separates the %d clusters; branched on its %d value(s)",
		best, clusters, bestDistinct)}
	return merged, notes
}

// anyBranchLeaf picks a deterministic existing subtree to reuse for a
// branch contributed without one of its own.
func anyBranchLeaf(branches map[string]any) any {
	keys := make([]string, 0, len(branches))
	for k := range branches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return branches[keys[0]]
}

func copyBranches(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
