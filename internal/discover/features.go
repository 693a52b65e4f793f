// Package discover implements schema discovery: feature extraction over a
// record corpus, clustering into structurally similar groups, per-cluster
// schema synthesis, and merging into a single proposed schema. Discovery is
// a stateless, single-shot batch transform — it never writes to the
// filesystem and its output is advisory only.
package discover

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/coherence/api"
)

const (
	// enumMaxDistinct bounds how many distinct values a field may have and
	// still contribute one-hot value features.
	enumMaxDistinct = 20
	// identifierRatioThres excludes identifier-like fields (mostly unique
	// values) from value scaling.
	identifierRatioThres = 0.5
)

// depthField carries the segment count FromPaths measures. It feeds the
// feature vector as a scalar dimension and is invisible to synthesis, so
// tree depth groups path corpora without ever becoming a routing field.
const depthField = "_depth"

// FieldStats holds statistics about a single field across the corpus.
type FieldStats struct {
	Count       int            // how many records carry the field
	Cardinality int            // number of distinct values
	Values      map[string]int // distinct value → occurrence count
}

// Features is the extracted corpus structure: per-field statistics, a
// bitmap incidence table of field presence, and one fixed-length feature
// vector per record.
type Features struct {
	Fields   []string                   // sorted observed field names
	Stats    map[string]*FieldStats     // per-field statistics
	Presence map[string]*roaring.Bitmap // field → records carrying it
	Vectors  [][]float64                // one vector per record
}

// Extract computes feature vectors for a corpus of flat records. Each
// vector holds: a presence bit per observed field, one-hot value bits for
// low-cardinality (enum-like) fields, and a normalized field count. Path
// corpora carry an extra dimension for tree depth. The incidence bitmaps
// back the heuristic clusterer's field-set bucketing.
func Extract(corpus []api.Record) *Features {
	f := &Features{
		Stats:    make(map[string]*FieldStats),
		Presence: make(map[string]*roaring.Bitmap),
	}

	hasDepth := false
	for i, rec := range corpus {
		for field, v := range rec {
			if field == depthField {
				hasDepth = true
				continue
			}
			fs, ok := f.Stats[field]
			if !ok {
				fs = &FieldStats{Values: make(map[string]int)}
				f.Stats[field] = fs
				f.Presence[field] = roaring.New()
			}
			fs.Count++
			fs.Values[v.String()]++
			f.Presence[field].Add(uint32(i))
		}
	}
	for field, fs := range f.Stats {
		fs.Cardinality = len(fs.Values)
		f.Fields = append(f.Fields, field)
	}
	sort.Strings(f.Fields)

	// Dimension layout: presence bits, enum one-hots, field count, then
	// depth when the corpus carries it.
	type enumDim struct {
		field string
		value string
	}
	var enums []enumDim
	for _, field := range f.Fields {
		fs := f.Stats[field]
		if fs.Cardinality < 2 || fs.Cardinality > enumMaxDistinct {
			continue
		}
		if float64(fs.Cardinality)/float64(fs.Count) > identifierRatioThres {
			continue
		}
		for _, val := range sortedValueKeys(fs.Values) {
			enums = append(enums, enumDim{field: field, value: val})
		}
	}

	dim := len(f.Fields) + len(enums) + 2
	f.Vectors = make([][]float64, len(corpus))
	for i, rec := range corpus {
		vec := make([]float64, 0, dim)
		for _, field := range f.Fields {
			if _, ok := rec[field]; ok {
				vec = append(vec, 1)
			} else {
				vec = append(vec, 0)
			}
		}
		for _, e := range enums {
			if v, ok := rec[e.field]; ok && v.String() == e.value {
				vec = append(vec, 1)
			} else {
				vec = append(vec, 0)
			}
		}
		count := len(rec)
		if _, ok := rec[depthField]; ok {
			count--
		}
		vec = append(vec, float64(count)/10.0)
		if hasDepth {
			depth := 0.0
			if v, ok := rec[depthField]; ok {
				if fl, numeric := v.Float(); numeric {
					depth = fl
				}
			}
			vec = append(vec, depth/10.0)
		}
		f.Vectors[i] = vec
	}
	return f
}

// FromPaths converts bare path strings into flat records by parsing their
// key=value segments. Segments without '=' carry no routing signal and are
// skipped, but the segment count survives as the depth field so paths with
// the same (or no) routing keys still cluster by how deep they sit.
// Backslash separators are normalized first.
func FromPaths(paths []string) []api.Record {
	records := make([]api.Record, 0, len(paths))
	for _, p := range paths {
		p = strings.ReplaceAll(p, `\`, "/")
		rec := make(api.Record)
		depth := 0
		for _, seg := range strings.Split(p, "/") {
			if seg == "" {
				continue
			}
			depth++
			k, v, ok := strings.Cut(seg, "=")
			if !ok || k == "" {
				continue
			}
			rec[k] = api.Str(v)
		}
		rec[depthField] = api.Int(int64(depth))
		records = append(records, rec)
	}
	return records
}

func sortedValueKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
