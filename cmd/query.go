package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/coherence/internal/store"
)

var queryWiden bool

var queryCmd = &cobra.Command{
	Use:   "query [intent-json]",
	Short: "Generate a glob pattern from a query intent",
	Long:  "Turns a partial record into a glob pattern covering every path a matching record could route to. An empty intent matches the whole tree.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := loadEngine()
		if err != nil {
			return err
		}
		intent, err := readRecordArg(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		pattern := engine.Pattern(intent)
		if queryWiden {
			pattern = store.Widen(pattern)
		}
		fmt.Fprintln(cmd.OutOrStdout(), pattern)
		return nil
	},
}

func init() {
	queryCmd.Flags().BoolVar(&queryWiden, "widen", false, "Widen the pattern to match documents at any depth below it")
	rootCmd.AddCommand(queryCmd)
}
