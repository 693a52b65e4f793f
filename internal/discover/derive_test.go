package discover

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/coherence/api"
	"github.com/agentic-research/coherence/internal/route"
	"github.com/agentic-research/coherence/internal/schema"
)

func TestDerive_EmptyCorpus(t *testing.T) {
	proposal, err := Derive(nil, DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, proposal.Schema)
	assert.Contains(t, proposal.Explanation, "insufficient data")
	assert.False(t, proposal.Degraded)
}

func TestDerive_TwoGroupCorpus(t *testing.T) {
	// Two structurally distinct groups: episodes carrying a status, and
	// bare notes. The status values repeat within the episode group.
	var corpus []api.Record
	for i := 0; i < 10; i++ {
		corpus = append(corpus, api.Record{
			"agent":  api.Str("researcher"),
			"status": api.Str(fmt.Sprintf("s%d", i%7)),
		})
		corpus = append(corpus, api.Record{
			"kind": api.Str("note"),
			"uid":  api.Str(fmt.Sprintf("u%d", i)),
		})
	}

	proposal, err := Derive(corpus, DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, proposal.Schema)
	assert.False(t, proposal.Degraded)
	assert.Contains(t, proposal.Explanation, "Derived schema from 20 records")
	_, ok := proposal.Schema["status"]
	assert.True(t, ok, "episode group should branch on status: %v", proposal.Schema)

	// The proposal must compile into a working router.
	s, err := schema.Compile(proposal.Schema)
	require.NoError(t, err)
	assert.NotNil(t, s.Root)
}

// A corpus that splits cleanly on one field yields clusters that are each
// internally uniform; the proposal must still branch on that field, and the
// branched schema must agree with the query side.
func TestDerive_SeparableCorpus(t *testing.T) {
	var corpus []api.Record
	for i := 0; i < 3; i++ {
		corpus = append(corpus, api.Record{
			"agent":   api.Str("researcher"),
			"outcome": api.Str("success"),
			"task":    api.Str(fmt.Sprintf("t%d", i)),
		})
		corpus = append(corpus, api.Record{
			"agent":   api.Str("researcher"),
			"outcome": api.Str("failure"),
			"task":    api.Str(fmt.Sprintf("u%d", i)),
		})
	}

	proposal, err := Derive(corpus, DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, proposal.Schema)
	assert.False(t, proposal.Degraded)

	branches, ok := proposal.Schema["outcome"].(map[string]any)
	require.True(t, ok, "expected branching on outcome: %v", proposal.Schema)
	assert.Contains(t, branches, "success")
	assert.Contains(t, branches, "failure")

	// Routed documents land under the pattern for the matching intent.
	s, err := schema.Compile(proposal.Schema)
	require.NoError(t, err)
	e := route.New(s, "memories")
	routed, err := e.Route(corpus[0])
	require.NoError(t, err)
	matched, err := doublestar.Match(e.Pattern(api.Record{"outcome": api.Str("success")}), routed)
	require.NoError(t, err)
	assert.True(t, matched, "routed path %q outside the success pattern", routed)
}

// A proposed schema must route the records it was derived from.
func TestDerive_ProposalRoundTrips(t *testing.T) {
	// "status" repeats but is too value-diverse for one-hot features, so
	// the corpus clusters as one structural group with "status" left as
	// the discriminating field inside it.
	var corpus []api.Record
	for i := 0; i < 12; i++ {
		corpus = append(corpus, api.Record{
			"status": api.Str(fmt.Sprintf("s%d", i%7)),
			"uid":    api.Str(fmt.Sprintf("u%d", i)),
		})
	}

	proposal, err := Derive(corpus, DefaultOptions())
	require.NoError(t, err)

	s, err := schema.Compile(proposal.Schema)
	require.NoError(t, err)
	require.NotNil(t, s.Root, "expected routing structure, got: %s", proposal.Explanation)
	engine := route.New(s, "memories")

	for _, rec := range corpus {
		p, err := engine.Route(rec)
		require.NoError(t, err, "derived schema must route its own corpus")
		assert.NotEmpty(t, p)
	}
}

func TestDerive_NoDiscriminatingField(t *testing.T) {
	corpus := []api.Record{
		{"kind": api.Str("note"), "uid": api.Str("a")},
		{"kind": api.Str("note"), "uid": api.Str("b")},
		{"kind": api.Str("note"), "uid": api.Str("c")},
	}

	proposal, err := Derive(corpus, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, proposal.Schema)
	assert.Contains(t, proposal.Explanation, "No discriminating field")
}

type failingClusterer struct{}

func (failingClusterer) Cluster([][]float64, int) ([]int, error) {
	return nil, errors.New("numerical backend unavailable")
}

func TestDerive_FallbackIsDegraded(t *testing.T) {
	corpus := []api.Record{
		{"a": api.Str("1"), "x": api.Str("p")},
		{"a": api.Str("2"), "x": api.Str("p")},
		{"b": api.Str("3"), "x": api.Str("q")},
		{"b": api.Str("4"), "x": api.Str("q")},
	}

	proposal, err := Derive(corpus, Options{Clusterer: failingClusterer{}})
	require.NoError(t, err)
	assert.True(t, proposal.Degraded)
	assert.Contains(t, proposal.Warning, "field-set heuristic")
}

func TestDerive_SingleRecordUsesFallback(t *testing.T) {
	corpus := []api.Record{{"a": api.Str("1")}}

	proposal, err := Derive(corpus, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, proposal.Degraded, "one vector cannot be clustered statistically")
}

func TestDerive_SamplingIsDeterministic(t *testing.T) {
	var corpus []api.Record
	for i := 0; i < 500; i++ {
		corpus = append(corpus, api.Record{
			"group": api.Str(fmt.Sprintf("g%d", i%4)),
			"uid":   api.Str(fmt.Sprintf("u%d", i)),
		})
	}
	opts := Options{MaxClusters: 4, SampleSize: 100, Seed: 7}

	first, err := Derive(corpus, opts)
	require.NoError(t, err)
	second, err := Derive(corpus, opts)
	require.NoError(t, err)
	assert.Equal(t, first.Explanation, second.Explanation)
	assert.Equal(t, first.Schema, second.Schema)
}

func TestDerivePaths(t *testing.T) {
	paths := []string{
		"memories/agent=researcher/outcome=success/a.json",
		"memories/agent=researcher/outcome=success/b.json",
		"memories/agent=researcher/outcome=failure/c.json",
		"memories/agent=researcher/outcome=failure/d.json",
		"memories/agent=writer/outcome=success/e.json",
		"memories/agent=writer/outcome=success/f.json",
		"memories/agent=writer/outcome=failure/g.json",
		"memories/agent=writer/outcome=failure/h.json",
	}

	// With two allowed groupings, the corpus splits by agent and each
	// group keeps outcome as its internal branching dimension.
	opts := DefaultOptions()
	opts.MaxClusters = 2
	proposal, err := DerivePaths(paths, opts)
	require.NoError(t, err)
	require.NotEmpty(t, proposal.Schema)

	_, hasOutcome := proposal.Schema["outcome"]
	assert.True(t, hasOutcome, "routing signal from path segments: %v", proposal.Schema)
}

func TestClusterStats(t *testing.T) {
	proposal, err := Derive([]api.Record{
		{"a": api.Str("1"), "b": api.Str("x")},
		{"a": api.Str("2"), "b": api.Str("x")},
		{"a": api.Str("1"), "b": api.Str("y")},
		{"a": api.Str("2"), "b": api.Str("y")},
	}, DefaultOptions())
	require.NoError(t, err)

	require.NotEmpty(t, proposal.Clusters)
	total := 0
	for _, c := range proposal.Clusters {
		total += c.Size
	}
	assert.Equal(t, 4, total)
}
