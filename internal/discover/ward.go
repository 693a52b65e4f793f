package discover

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// WardClusterer is the default statistical clusterer: agglomerative
// hierarchical clustering with Ward (variance-minimizing) linkage, updated
// via the Lance-Williams recurrence on squared Euclidean distances.
//
// It merges until at most k clusters remain, then keeps merging while the
// cheapest merge costs nothing — identical groups never stay split, so a
// corpus of N identical records collapses to a single cluster regardless
// of k. Complexity is O(n²) space and roughly O(n³) time in the worst
// case; callers with large corpora must pre-sample (the orchestrator's
// SampleSize does this).
type WardClusterer struct{}

// Cluster implements Clusterer.
func (WardClusterer) Cluster(vectors [][]float64, k int) ([]int, error) {
	n := len(vectors)
	if n < 2 {
		return nil, ErrTooFewVectors
	}
	if k < 1 {
		return nil, fmt.Errorf("cluster: k must be positive, got %d", k)
	}
	if k > n {
		k = n
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("cluster: vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	// Squared Euclidean distance matrix over active clusters.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(vectors[i], vectors[j], 2)
			dist[i][j] = d * d
			dist[j][i] = dist[i][j]
		}
	}

	active := make([]bool, n)
	size := make([]int, n)
	member := make([]int, n) // record → current cluster index
	for i := 0; i < n; i++ {
		active[i] = true
		size[i] = 1
		member[i] = i
	}

	remaining := n
	for remaining > 1 {
		// Cheapest merge, ties broken by lowest index pair.
		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !active[j] {
					continue
				}
				if dist[i][j] < best {
					best = dist[i][j]
					bi, bj = i, j
				}
			}
		}
		if remaining <= k && best > 0 {
			break
		}

		// Merge bj into bi; Lance-Williams update for Ward linkage.
		ni, nj := float64(size[bi]), float64(size[bj])
		for m := 0; m < n; m++ {
			if !active[m] || m == bi || m == bj {
				continue
			}
			nm := float64(size[m])
			dist[bi][m] = ((ni+nm)*dist[bi][m] + (nj+nm)*dist[bj][m] - nm*dist[bi][bj]) / (ni + nj + nm)
			dist[m][bi] = dist[bi][m]
		}
		size[bi] += size[bj]
		active[bj] = false
		for r := range member {
			if member[r] == bj {
				member[r] = bi
			}
		}
		remaining--
	}

	return relabel(member), nil
}

// Centroids computes per-cluster mean vectors for the given assignments.
func Centroids(vectors [][]float64, assignments []int) [][]float64 {
	if len(vectors) == 0 {
		return nil
	}
	k := 0
	for _, a := range assignments {
		if a+1 > k {
			k = a + 1
		}
	}
	dim := len(vectors[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, vec := range vectors {
		floats.Add(sums[assignments[i]], vec)
		counts[assignments[i]]++
	}
	for i := range sums {
		if counts[i] > 0 {
			floats.Scale(1/float64(counts[i]), sums[i])
		}
	}
	return sums
}
