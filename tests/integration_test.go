package tests

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/coherence/api"
	"github.com/agentic-research/coherence/internal/discover"
	"github.com/agentic-research/coherence/internal/route"
	"github.com/agentic-research/coherence/internal/schema"
	"github.com/agentic-research/coherence/internal/sentinel"
	"github.com/agentic-research/coherence/internal/store"
)

// testFixture bundles the shared state for integration tests: a schema
// file on disk, a routing engine compiled from it, and a store over a real
// directory.
type testFixture struct {
	rootDir string
	engine  *route.Engine
	store   *store.Store
}

const testSchemaYAML = `
agent:
  researcher|writer:
    outcome:
      success: "{task}_{uid}.json"
      failure: "failed_{task}_{uid}.json"
      "{outcome=unknown}": "unknown_{task}_{uid}.json"
  critic:
    score:
      ">=0.5": "pass_{task}_{uid}.json"
      "<0.5": "fail_{task}_{uid}.json"
`

// setup writes the schema to a temp dir, loads it from disk the way the
// CLI does, and wires a store over a real filesystem root.
func setup(t *testing.T) *testFixture {
	t.Helper()

	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchemaYAML), 0o644))

	s, err := schema.LoadFile(schemaPath)
	require.NoError(t, err)

	rootDir := filepath.Join(dir, "memories")
	require.NoError(t, os.MkdirAll(rootDir, 0o755))
	engine := route.New(s, "")

	return &testFixture{
		rootDir: rootDir,
		engine:  engine,
		store:   store.New(osfs.New(rootDir), engine),
	}
}

func (f *testFixture) remember(t *testing.T, content any, fields map[string]any) string {
	t.Helper()
	rec, err := api.NewRecord(fields)
	require.NoError(t, err)
	p, err := f.store.Remember(content, rec)
	require.NoError(t, err)
	return p
}

func mustRecord(t *testing.T, fields map[string]any) api.Record {
	t.Helper()
	rec, err := api.NewRecord(fields)
	require.NoError(t, err)
	return rec
}

func TestEndToEnd_RememberRecallForget(t *testing.T) {
	f := setup(t)

	f.remember(t, "survey notes", map[string]any{
		"agent": "researcher", "outcome": "success", "task": "survey",
	})
	f.remember(t, "draft failed", map[string]any{
		"agent": "writer", "outcome": "failure", "task": "draft",
	})
	f.remember(t, "review", map[string]any{
		"agent": "critic", "score": 0.8, "task": "review",
	})

	// Documents land as real files under the root.
	files := 0
	err := filepath.WalkDir(f.rootDir, func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, files)

	docs, err := f.store.Recall(mustRecord(t, map[string]any{"agent": "critic"}))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "review", docs[0].Content)

	docs, err = f.store.Recall(mustRecord(t, map[string]any{"outcome": "failure"}))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "draft failed", docs[0].Content)

	docs, err = f.store.Recall(mustRecord(t, nil))
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	// Forget one slice, the rest survives.
	n, err := f.store.Forget(mustRecord(t, map[string]any{"agent": "critic"}), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err = f.store.Recall(mustRecord(t, nil))
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestEndToEnd_DefaultRouting(t *testing.T) {
	f := setup(t)

	p := f.remember(t, "no outcome recorded", map[string]any{
		"agent": "researcher", "task": "dig",
	})
	assert.Contains(t, p, "outcome=unknown")

	docs, err := f.store.Recall(mustRecord(t, map[string]any{"outcome": "unknown"}))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestEndToEnd_NumericRouting(t *testing.T) {
	f := setup(t)

	high := f.remember(t, nil, map[string]any{
		"agent": "critic", "score": 0.9, "task": "a",
	})
	low := f.remember(t, nil, map[string]any{
		"agent": "critic", "score": 0.2, "task": "b",
	})
	assert.Contains(t, high, "score=gte_0.5")
	assert.Contains(t, low, "score=lt_0.5")
}

func TestEndToEnd_SentinelInboxToStore(t *testing.T) {
	f := setup(t)
	dir := t.TempDir()
	inbox := filepath.Join(dir, "_inbox")
	quarantine := filepath.Join(dir, "_quarantine")

	sen, err := sentinel.New(inbox, quarantine, f.store)
	require.NoError(t, err)

	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(inbox, name), []byte(body), 0o644))
	}
	write("good.json", `{"agent": "writer", "outcome": "success", "task": "t", "content": "hi"}`)
	write("bad.json", `{"agent": "nobody", "task": "t"}`)

	require.NoError(t, sen.Sweep())

	stats := sen.Stats()
	assert.Equal(t, 1, stats.Admitted)
	assert.Equal(t, 1, stats.Rejected)

	_, err = os.Stat(filepath.Join(quarantine, "bad.json"))
	assert.NoError(t, err)
}

// A stored tree carries enough signal for discovery to propose a schema
// that compiles again.
func TestEndToEnd_DeriveFromStoredTree(t *testing.T) {
	f := setup(t)

	for i := 0; i < 6; i++ {
		f.remember(t, nil, map[string]any{
			"agent": "researcher", "outcome": "success", "task": fmt.Sprintf("t%d", i),
		})
		f.remember(t, nil, map[string]any{
			"agent": "writer", "outcome": "failure", "task": fmt.Sprintf("u%d", i),
		})
	}

	var paths []string
	err := filepath.WalkDir(f.rootDir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(f.rootDir, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, paths, 12)

	// One grouping keeps "outcome" varying inside the cluster, so it
	// surfaces as the branching dimension.
	opts := discover.DefaultOptions()
	opts.MaxClusters = 1
	proposal, err := discover.DerivePaths(paths, opts)
	require.NoError(t, err)
	require.NotEmpty(t, proposal.Schema, proposal.Explanation)

	_, ok := proposal.Schema["outcome"]
	assert.True(t, ok, "expected outcome branching: %v", proposal.Schema)

	compiled, err := schema.Compile(proposal.Schema)
	require.NoError(t, err)
	assert.NotNil(t, compiled.Root)
}
