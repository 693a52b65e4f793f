package discover

import (
	"sort"
	"strings"

	"github.com/agentic-research/coherence/api"
)

// FieldSetClusterer is the degraded-but-safe fallback: records are bucketed
// by the exact set of fields they carry. No vector math, deterministic,
// and cheap. Results produced through it are flagged as degraded.
type FieldSetClusterer struct {
	// Corpus must be the records the vectors were extracted from; the
	// heuristic groups on fields, not on the vectors themselves.
	Corpus []api.Record
}

// Cluster implements Clusterer. Bucket labels are ordered by first
// appearance; k caps the bucket count by folding the smallest buckets into
// a single overflow group.
func (h FieldSetClusterer) Cluster(vectors [][]float64, k int) ([]int, error) {
	raw := make([]int, len(h.Corpus))
	byKey := make(map[string]int)
	counts := make(map[int]int)
	next := 0
	for i, rec := range h.Corpus {
		key := fieldSetKey(rec)
		id, ok := byKey[key]
		if !ok {
			id = next
			byKey[key] = id
			next++
		}
		raw[i] = id
		counts[id]++
	}

	if k > 0 && next > k {
		// Keep the k-1 largest buckets, fold the rest together.
		ids := make([]int, 0, next)
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(a, b int) bool {
			if counts[ids[a]] != counts[ids[b]] {
				return counts[ids[a]] > counts[ids[b]]
			}
			return ids[a] < ids[b]
		})
		keep := make(map[int]bool, k-1)
		for _, id := range ids[:k-1] {
			keep[id] = true
		}
		overflow := next
		for i, id := range raw {
			if !keep[id] {
				raw[i] = overflow
			}
		}
	}
	return relabel(raw), nil
}

func fieldSetKey(rec api.Record) string {
	return strings.Join(rec.Fields(), "\x00")
}
