package discover

import "errors"

// Clusterer partitions feature vectors into at most k groups. The returned
// slice assigns a cluster label to each vector; labels are dense and
// ordered by first appearance. Implementations must be deterministic.
//
// The narrow interface keeps the statistical implementation and the
// field-set heuristic interchangeable without touching orchestration.
type Clusterer interface {
	Cluster(vectors [][]float64, k int) ([]int, error)
}

// ErrTooFewVectors is returned when the input cannot be clustered
// statistically; the orchestrator falls back to the heuristic.
var ErrTooFewVectors = errors.New("cluster: need at least two vectors")

// relabel maps arbitrary cluster identifiers to dense labels ordered by
// first appearance, so assignments are stable across runs.
func relabel(raw []int) []int {
	next := 0
	mapping := make(map[int]int)
	out := make([]int, len(raw))
	for i, id := range raw {
		label, ok := mapping[id]
		if !ok {
			label = next
			mapping[id] = label
			next++
		}
		out[i] = label
	}
	return out
}
