package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var routeCmd = &cobra.Command{
	Use:   "route [record-json]",
	Short: "Route a record to its destination path",
	Long:  "Routes a flat JSON record through the schema and prints the rendered path. Nothing is written; use with a pipe or an inline argument.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := loadEngine()
		if err != nil {
			return err
		}
		rec, err := readRecordArg(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		p, err := engine.Route(rec)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
}
