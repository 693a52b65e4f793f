package api

// RawSchema is the JSON-compatible wire form of a routing schema.
//
// An internal node is a single-key map: {"field": {"predicate key": child}}.
// A child is either another internal node or a leaf template string with
// "{field}" placeholders. The raw form is compiled once at load time; the
// router never re-parses predicate keys per record.
type RawSchema = map[string]any

// Proposal is the artifact produced by one schema discovery run.
// It is advisory only: nothing in this module ever applies it automatically.
type Proposal struct {
	// Schema is the synthesized routing schema in raw wire form.
	Schema RawSchema `json:"proposed_schema"`
	// Explanation is a human-readable rationale for review.
	Explanation string `json:"explanation"`
	// Clusters holds per-cluster statistics.
	Clusters []ClusterStat `json:"clusters"`
	// Degraded is set when the statistical clusterer was unavailable and
	// the field-set heuristic produced the grouping instead.
	Degraded bool `json:"degraded,omitempty"`
	// Warning accompanies a degraded result. It is not an error.
	Warning string `json:"warning,omitempty"`
}

// ClusterStat describes one discovered grouping of structurally
// similar records.
type ClusterStat struct {
	ID                  int      `json:"id"`
	Size                int      `json:"size"`
	DiscriminatingField string   `json:"discriminating_field,omitempty"`
	SampleValues        []string `json:"sample_values,omitempty"`
}
