package mcpserv

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/coherence/api"
	"github.com/agentic-research/coherence/internal/discover"
	"github.com/agentic-research/coherence/internal/route"
	"github.com/agentic-research/coherence/internal/schema"
	"github.com/agentic-research/coherence/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := schema.Compile(api.RawSchema{
		"agent": map[string]any{
			"researcher|writer": map[string]any{
				"outcome": map[string]any{
					"success": "{task}_{uid}.json",
					"failure": "failed_{task}_{uid}.json",
				},
			},
		},
	})
	require.NoError(t, err)
	st := store.New(memfs.New(), route.New(s, "memories"))
	return NewServer(st, discover.DefaultOptions())
}

func TestHandleRoute(t *testing.T) {
	srv := newTestServer(t)

	_, out, err := srv.handleRoute(context.Background(), nil, routeInput{
		Record: map[string]any{
			"agent": "researcher", "outcome": "success",
			"task": "survey", "uid": "u1",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "memories/agent=researcherwriter/outcome=success/survey_u1.json", out.Path)
}

func TestHandleRoute_Unroutable(t *testing.T) {
	srv := newTestServer(t)

	_, _, err := srv.handleRoute(context.Background(), nil, routeInput{
		Record: map[string]any{"agent": "banana"},
	})
	assert.Error(t, err)
}

func TestHandleQuery(t *testing.T) {
	srv := newTestServer(t)

	_, out, err := srv.handleQuery(context.Background(), nil, queryInput{
		Intent: map[string]any{"outcome": "failure"},
	})
	require.NoError(t, err)
	assert.Equal(t, "memories/agent=*/outcome=failure/*", out.Pattern)
}

func TestHandleRememberAndRecall(t *testing.T) {
	srv := newTestServer(t)

	_, remembered, err := srv.handleRemember(context.Background(), nil, rememberInput{
		Record: map[string]any{
			"agent": "writer", "outcome": "success", "task": "draft",
		},
		Content: "the draft went well",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, remembered.Path)

	_, recalled, err := srv.handleRecall(context.Background(), nil, recallInput{
		Intent: map[string]any{"agent": "writer"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, recalled.Total)
	assert.Equal(t, "the draft went well", recalled.Documents[0].Content)
}

func TestHandleRecall_Limit(t *testing.T) {
	srv := newTestServer(t)
	for i := 0; i < 3; i++ {
		_, _, err := srv.handleRemember(context.Background(), nil, rememberInput{
			Record: map[string]any{
				"agent": "writer", "outcome": "success", "task": "t",
			},
			Content: i,
		})
		require.NoError(t, err)
	}

	_, out, err := srv.handleRecall(context.Background(), nil, recallInput{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Total)
	assert.Len(t, out.Documents, 2)
}

func TestHandleDerive(t *testing.T) {
	srv := newTestServer(t)

	_, proposal, err := srv.handleDerive(context.Background(), nil, deriveInput{
		Paths: []string{
			"memories/agent=researcher/outcome=success/a.json",
			"memories/agent=researcher/outcome=success/b.json",
			"memories/agent=researcher/outcome=failure/c.json",
			"memories/agent=researcher/outcome=failure/d.json",
			"memories/agent=writer/outcome=success/e.json",
			"memories/agent=writer/outcome=success/f.json",
			"memories/agent=writer/outcome=failure/g.json",
			"memories/agent=writer/outcome=failure/h.json",
		},
		MaxClusters: 2,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, proposal.Schema)
	assert.NotEmpty(t, proposal.Explanation)
}
