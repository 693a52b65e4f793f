package discover

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/agentic-research/coherence/api"
)

// Options controls one discovery run.
type Options struct {
	MaxClusters int       // upper bound on discovered groups (default 5)
	SampleSize  int       // max records sampled before clustering (default 1000)
	Seed        int64     // reservoir sampling seed (0 = deterministic)
	Clusterer   Clusterer // nil = Ward with field-set heuristic fallback
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{MaxClusters: 5, SampleSize: 1000}
}

// Derive discovers a routing schema from an unlabeled corpus. It never
// fails on thin input: an empty corpus yields an empty schema with an
// "insufficient data" explanation, and a corpus with no discriminative
// field yields a flat schema noting zero structure found. A clustering
// failure downgrades to the field-set heuristic and flags the proposal as
// degraded rather than erroring.
func Derive(corpus []api.Record, opts Options) (*api.Proposal, error) {
	if opts.MaxClusters <= 0 {
		opts.MaxClusters = 5
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = 1000
	}

	if len(corpus) == 0 {
		return &api.Proposal{
			Schema:      api.RawSchema{},
			Explanation: "insufficient data: empty corpus, nothing to derive",
		}, nil
	}

	sampled := corpus
	if len(corpus) > opts.SampleSize {
		sampled = reservoirSample(corpus, opts.SampleSize, opts.Seed)
	}

	features := Extract(sampled)
	k := opts.MaxClusters
	if k > len(sampled) {
		k = len(sampled)
	}

	clusterer := opts.Clusterer
	if clusterer == nil {
		clusterer = WardClusterer{}
	}

	degraded := false
	warning := ""
	assignments, err := clusterer.Cluster(features.Vectors, k)
	if err != nil {
		fallback := FieldSetClusterer{Corpus: sampled}
		assignments, err = fallback.Cluster(features.Vectors, k)
		if err != nil {
			return nil, fmt.Errorf("heuristic clustering: %w", err)
		}
		degraded = true
		warning = "clustering primitive unavailable; records were grouped by field-set heuristic"
	}

	groups := groupByAssignment(sampled, assignments)
	schemas := make([]ClusterSchema, len(groups))
	for id, members := range groups {
		schemas[id] = Synthesize(id, members)
	}

	merged, notes := Merge(schemas)

	proposal := &api.Proposal{
		Schema:      merged,
		Clusters:    clusterStats(schemas),
		Degraded:    degraded,
		Warning:     warning,
		Explanation: explain(sampled, features, schemas, merged, notes),
	}
	return proposal, nil
}

// DerivePaths is Derive over bare path strings treated as flat records.
func DerivePaths(paths []string, opts Options) (*api.Proposal, error) {
	return Derive(FromPaths(paths), opts)
}

func groupByAssignment(corpus []api.Record, assignments []int) [][]api.Record {
	k := 0
	for _, a := range assignments {
		if a+1 > k {
			k = a + 1
		}
	}
	groups := make([][]api.Record, k)
	for i, a := range assignments {
		groups[a] = append(groups[a], corpus[i])
	}
	return groups
}

func clusterStats(schemas []ClusterSchema) []api.ClusterStat {
	stats := make([]api.ClusterStat, len(schemas))
	for i, cs := range schemas {
		samples := cs.Values
		if len(samples) > 5 {
			samples = samples[:5]
		}
		stats[i] = api.ClusterStat{
			ID:                  cs.ID,
			Size:                cs.Size,
			DiscriminatingField: cs.Field,
			SampleValues:        samples,
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats
}

// explain writes the human-readable rationale that accompanies every
// proposal: corpus shape, grouping count, chosen structure, and what was
// discarded during the merge.
func explain(corpus []api.Record, features *Features, schemas []ClusterSchema, merged api.RawSchema, notes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Derived schema from %d records\n", len(corpus))
	fmt.Fprintf(&b, "Discovered %d natural grouping(s)\n", len(schemas))
	fmt.Fprintf(&b, "Observed %d field(s)\n", len(features.Fields))

	if len(merged) == 0 {
		b.WriteString("\nNo discriminating field was found: every field is either ")
		b.WriteString("single-valued or unique per record. Proposing a flat schema ")
		b.WriteString("with zero routing branches.\n")
		return b.String()
	}

	b.WriteString("\nSchema structure:\n")
	for field, branches := range merged {
		m, ok := branches.(map[string]any)
		if !ok {
			continue
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sample := keys
		if len(sample) > 5 {
			sample = sample[:5]
		}
		fmt.Fprintf(&b, "  %s: %d branch(es): %s\n", field, len(keys), strings.Join(sample, ", "))
		if len(keys) > 5 {
			fmt.Fprintf(&b, "    ... and %d more\n", len(keys)-5)
		}
	}

	for _, note := range notes {
		b.WriteString("  note: " + note + "\n")
	}
	return b.String()
}

// reservoirSample draws a uniform sample of k records.
func reservoirSample(corpus []api.Record, k int, seed int64) []api.Record {
	if len(corpus) <= k {
		return corpus
	}
	rng := rand.New(rand.NewSource(seed))
	reservoir := make([]api.Record, k)
	copy(reservoir, corpus[:k])
	for i := k; i < len(corpus); i++ {
		j := rng.Intn(i + 1)
		if j < k {
			reservoir[j] = corpus[i]
		}
	}
	return reservoir
}
