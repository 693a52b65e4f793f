package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWard_SeparableGroups(t *testing.T) {
	vectors := [][]float64{
		{1, 0, 0.2}, {1, 0, 0.2}, {1, 0, 0.2},
		{0, 1, 0.9}, {0, 1, 0.9}, {0, 1, 0.9},
	}

	labels, err := WardClusterer{}.Cluster(vectors, 5)
	require.NoError(t, err)
	require.Len(t, labels, 6)

	// Two clean groups collapse to exactly two clusters even with k=5:
	// zero-cost merges always apply.
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, labels)
}

func TestWard_IdenticalVectorsCollapse(t *testing.T) {
	vectors := make([][]float64, 8)
	for i := range vectors {
		vectors[i] = []float64{1, 1, 0.5}
	}

	labels, err := WardClusterer{}.Cluster(vectors, 4)
	require.NoError(t, err)
	for _, l := range labels {
		assert.Equal(t, 0, l)
	}
}

func TestWard_RespectsK(t *testing.T) {
	vectors := [][]float64{
		{0, 0}, {0.1, 0}, {5, 5}, {5.1, 5}, {10, 10}, {10.1, 10},
	}

	labels, err := WardClusterer{}.Cluster(vectors, 2)
	require.NoError(t, err)

	distinct := map[int]bool{}
	for _, l := range labels {
		distinct[l] = true
	}
	assert.Len(t, distinct, 2)
	// The far group must not be split across the near pair.
	assert.Equal(t, labels[4], labels[5])
}

func TestWard_Deterministic(t *testing.T) {
	vectors := [][]float64{
		{1, 0}, {0.9, 0.1}, {0, 1}, {0.1, 0.9}, {0.5, 0.5},
	}

	first, err := WardClusterer{}.Cluster(vectors, 2)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		labels, err := WardClusterer{}.Cluster(vectors, 2)
		require.NoError(t, err)
		assert.Equal(t, first, labels)
	}
}

func TestWard_Errors(t *testing.T) {
	_, err := WardClusterer{}.Cluster([][]float64{{1}}, 2)
	assert.ErrorIs(t, err, ErrTooFewVectors)

	_, err = WardClusterer{}.Cluster([][]float64{{1}, {2}}, 0)
	assert.Error(t, err)

	_, err = WardClusterer{}.Cluster([][]float64{{1, 2}, {1}}, 2)
	assert.Error(t, err, "mismatched dimensions")
}

func TestCentroids(t *testing.T) {
	vectors := [][]float64{{0, 0}, {2, 2}, {10, 0}}
	cents := Centroids(vectors, []int{0, 0, 1})

	require.Len(t, cents, 2)
	assert.Equal(t, []float64{1, 1}, cents[0])
	assert.Equal(t, []float64{10, 0}, cents[1])
}
