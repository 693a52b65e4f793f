package cmd

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/agentic-research/coherence/internal/discover"
	"github.com/agentic-research/coherence/internal/mcpserv"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve routing and discovery tools over MCP stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		opts := discover.DefaultOptions()
		if cfg.Discovery != nil {
			opts.MaxClusters = cfg.Discovery.MaxClusters
			opts.SampleSize = cfg.Discovery.SampleSize
			opts.Seed = cfg.Discovery.Seed
		}
		srv := mcpserv.NewServer(st, opts)
		return srv.Run(cmd.Context(), &sdkmcp.StdioTransport{})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
