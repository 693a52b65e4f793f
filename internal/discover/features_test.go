package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/coherence/api"
)

func makeEpisodes(n int, outcome string) []api.Record {
	records := make([]api.Record, n)
	for i := range records {
		records[i] = api.Record{
			"agent":   api.Str("researcher"),
			"outcome": api.Str(outcome),
			"task":    api.Str("task-" + string(rune('a'+i%26))),
		}
	}
	return records
}

func TestExtract_Stats(t *testing.T) {
	corpus := []api.Record{
		{"agent": api.Str("researcher"), "outcome": api.Str("success")},
		{"agent": api.Str("writer"), "outcome": api.Str("success")},
		{"agent": api.Str("writer")},
	}
	f := Extract(corpus)

	assert.Equal(t, []string{"agent", "outcome"}, f.Fields)
	assert.Equal(t, 3, f.Stats["agent"].Count)
	assert.Equal(t, 2, f.Stats["agent"].Cardinality)
	assert.Equal(t, 2, f.Stats["outcome"].Count)
	assert.Equal(t, 1, f.Stats["outcome"].Cardinality)
}

func TestExtract_PresenceBitmaps(t *testing.T) {
	corpus := []api.Record{
		{"a": api.Str("1")},
		{"a": api.Str("2"), "b": api.Str("x")},
		{"b": api.Str("y")},
	}
	f := Extract(corpus)

	assert.True(t, f.Presence["a"].Contains(0))
	assert.True(t, f.Presence["a"].Contains(1))
	assert.False(t, f.Presence["a"].Contains(2))
	assert.Equal(t, uint64(2), f.Presence["b"].GetCardinality())
}

func TestExtract_VectorsSeparateByValue(t *testing.T) {
	// Same field set, different enum values: the one-hot dimensions must
	// make the vectors differ.
	corpus := append(makeEpisodes(5, "success"), makeEpisodes(5, "failure")...)
	f := Extract(corpus)

	require.Len(t, f.Vectors, 10)
	dim := len(f.Vectors[0])
	for _, v := range f.Vectors {
		require.Len(t, v, dim)
	}
	assert.NotEqual(t, f.Vectors[0], f.Vectors[5])
}

func TestExtract_IdenticalRecordsShareVectors(t *testing.T) {
	corpus := []api.Record{
		{"agent": api.Str("writer"), "outcome": api.Str("success")},
		{"agent": api.Str("writer"), "outcome": api.Str("success")},
		{"agent": api.Str("critic"), "outcome": api.Str("failure")},
		{"agent": api.Str("critic"), "outcome": api.Str("failure")},
	}
	f := Extract(corpus)

	assert.Equal(t, f.Vectors[0], f.Vectors[1])
	assert.NotEqual(t, f.Vectors[0], f.Vectors[2])
}

func TestExtract_IdentifierFieldsSkipped(t *testing.T) {
	// "task" is unique per record here; it must not contribute one-hots.
	corpus := []api.Record{
		{"task": api.Str("a")},
		{"task": api.Str("b")},
		{"task": api.Str("c")},
	}
	f := Extract(corpus)

	// presence bit + field count only
	assert.Len(t, f.Vectors[0], 2)
}

func TestFromPaths(t *testing.T) {
	records := FromPaths([]string{
		"memories/agent=researcher/outcome=success/r1.json",
		`memories\agent=writer\outcome=failure\r2.json`,
		"no/routing/signal.json",
	})
	require.Len(t, records, 3)

	assert.Equal(t, api.Str("researcher"), records[0]["agent"])
	assert.Equal(t, api.Str("success"), records[0]["outcome"])
	assert.Equal(t, api.Int(4), records[0][depthField])
	assert.Equal(t, api.Str("writer"), records[1]["agent"])
	// No key=value segments: only the depth survives.
	assert.Equal(t, api.Record{depthField: api.Int(3)}, records[2])
}

func TestExtract_DepthSeparatesBarePaths(t *testing.T) {
	// Neither path carries a routing segment; depth is the only signal
	// left and it must still tell the vectors apart.
	records := FromPaths([]string{
		"inbox/a.json",
		"archive/2026/08/b.json",
	})
	f := Extract(records)

	require.Len(t, f.Vectors, 2)
	assert.NotEqual(t, f.Vectors[0], f.Vectors[1])
}
