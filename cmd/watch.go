package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/coherence/internal/sentinel"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch an inbox directory and file incoming packets",
	Long: "Runs the sentinel: JSON packets dropped into the inbox are routed " +
		"into the store, and malformed or unroutable packets move to quarantine.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		sen, err := sentinel.New(cfg.Watch.Inbox, cfg.Watch.Quarantine, st)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := sen.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
