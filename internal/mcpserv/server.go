// Package mcpserv exposes the routing and discovery operations as MCP
// tools over stdio. Every handler is a thin wrapper: validation, one core
// call, and a serializable result.
package mcpserv

import (
	"context"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentic-research/coherence/api"
	"github.com/agentic-research/coherence/internal/discover"
	"github.com/agentic-research/coherence/internal/logging"
	"github.com/agentic-research/coherence/internal/store"
)

// Server wraps the MCP SDK server around a routing store.
type Server struct {
	MCPServer *sdkmcp.Server
	store     *store.Store
	discovery discover.Options
	logger    *slog.Logger
}

// NewServer creates an MCP server bound to the given store.
func NewServer(st *store.Store, opts discover.Options) *Server {
	s := &Server{
		store:     st,
		discovery: opts,
		logger:    logging.New("mcpserv"),
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "coherence", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP over the given transport until the context ends.
func (s *Server) Run(ctx context.Context, transport sdkmcp.Transport) error {
	return s.MCPServer.Run(ctx, transport)
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "route",
		Description: "Route a record through the schema and return its destination path. Computes only; nothing is written.",
	}, s.handleRoute)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "query",
		Description: "Generate a glob pattern from a partial query intent for bulk retrieval.",
	}, s.handleQuery)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "derive",
		Description: "Discover a schema proposal from a corpus of paths. The proposal is advisory and never applied automatically.",
	}, s.handleDerive)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "remember",
		Description: "Route a record and persist its content as a JSON document at the routed path.",
	}, s.handleRemember)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "recall",
		Description: "Load stored documents matching a query intent, newest first.",
	}, s.handleRecall)
}

// --- Tool input/output types ---

type routeInput struct {
	Record map[string]any `json:"record" jsonschema:"flat record of scalar fields to route"`
}

type routeOutput struct {
	Path string `json:"path"`
}

type queryInput struct {
	Intent map[string]any `json:"intent,omitempty" jsonschema:"partial record constraining the query; empty matches everything"`
}

type queryOutput struct {
	Pattern string `json:"pattern"`
}

type deriveInput struct {
	Paths       []string `json:"paths" jsonschema:"existing paths to analyze for latent structure"`
	MaxClusters int      `json:"max_clusters,omitempty" jsonschema:"upper bound on discovered groupings (default 5)"`
}

type rememberInput struct {
	Record  map[string]any `json:"record" jsonschema:"flat record of scalar routing fields"`
	Content any            `json:"content,omitempty" jsonschema:"document payload stored at the routed path"`
}

type rememberOutput struct {
	Path string `json:"path"`
}

type recallInput struct {
	Intent map[string]any `json:"intent,omitempty" jsonschema:"partial record constraining the recall"`
	Limit  int            `json:"limit,omitempty" jsonschema:"max documents to return (default 20)"`
}

type recallOutput struct {
	Documents []store.Document `json:"documents"`
	Total     int              `json:"total"`
}

// --- Tool handlers ---

func (s *Server) handleRoute(_ context.Context, _ *sdkmcp.CallToolRequest, input routeInput) (*sdkmcp.CallToolResult, routeOutput, error) {
	rec, err := api.NewRecord(input.Record)
	if err != nil {
		return nil, routeOutput{}, fmt.Errorf("route: %w", err)
	}
	p, err := s.store.Engine().Route(rec)
	if err != nil {
		return nil, routeOutput{}, fmt.Errorf("route: %w", err)
	}
	return nil, routeOutput{Path: p}, nil
}

func (s *Server) handleQuery(_ context.Context, _ *sdkmcp.CallToolRequest, input queryInput) (*sdkmcp.CallToolResult, queryOutput, error) {
	intent, err := api.NewRecord(input.Intent)
	if err != nil {
		return nil, queryOutput{}, fmt.Errorf("query: %w", err)
	}
	return nil, queryOutput{Pattern: s.store.Engine().Pattern(intent)}, nil
}

func (s *Server) handleDerive(_ context.Context, _ *sdkmcp.CallToolRequest, input deriveInput) (*sdkmcp.CallToolResult, api.Proposal, error) {
	opts := s.discovery
	if input.MaxClusters > 0 {
		opts.MaxClusters = input.MaxClusters
	}
	proposal, err := discover.DerivePaths(input.Paths, opts)
	if err != nil {
		return nil, api.Proposal{}, fmt.Errorf("derive: %w", err)
	}
	if proposal.Degraded {
		s.logger.Warn("discovery degraded", "warning", proposal.Warning)
	}
	return nil, *proposal, nil
}

func (s *Server) handleRemember(_ context.Context, _ *sdkmcp.CallToolRequest, input rememberInput) (*sdkmcp.CallToolResult, rememberOutput, error) {
	rec, err := api.NewRecord(input.Record)
	if err != nil {
		return nil, rememberOutput{}, fmt.Errorf("remember: %w", err)
	}
	p, err := s.store.Remember(input.Content, rec)
	if err != nil {
		return nil, rememberOutput{}, fmt.Errorf("remember: %w", err)
	}
	return nil, rememberOutput{Path: p}, nil
}

func (s *Server) handleRecall(_ context.Context, _ *sdkmcp.CallToolRequest, input recallInput) (*sdkmcp.CallToolResult, recallOutput, error) {
	intent, err := api.NewRecord(input.Intent)
	if err != nil {
		return nil, recallOutput{}, fmt.Errorf("recall: %w", err)
	}
	docs, err := s.store.Recall(intent)
	if err != nil {
		return nil, recallOutput{}, fmt.Errorf("recall: %w", err)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	total := len(docs)
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return nil, recallOutput{Documents: docs, Total: total}, nil
}
