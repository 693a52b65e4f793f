package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	rememberContent string
	recallLimit     int
	forgetBefore    string
)

var rememberCmd = &cobra.Command{
	Use:   "remember [record-json]",
	Short: "Route a record and persist it as a document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		rec, err := readRecordArg(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		var content any = rememberContent
		if rememberContent != "" {
			var parsed any
			if err := json.Unmarshal([]byte(rememberContent), &parsed); err == nil {
				content = parsed
			}
		}
		p, err := st.Remember(content, rec)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall [intent-json]",
	Short: "Load stored documents matching an intent, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		intent, err := readRecordArg(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		docs, err := st.Recall(intent)
		if err != nil {
			return err
		}
		if recallLimit > 0 && len(docs) > recallLimit {
			docs = docs[:recallLimit]
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget [intent-json]",
	Short: "Delete stored documents matching an intent",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		intent, err := readRecordArg(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		before := time.Now().UTC()
		if forgetBefore != "" {
			before, err = time.Parse(time.RFC3339, forgetBefore)
			if err != nil {
				return fmt.Errorf("parse --before: %w", err)
			}
		}
		n, err := st.Forget(intent, before)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d document(s)\n", n)
		return nil
	},
}

func init() {
	rememberCmd.Flags().StringVar(&rememberContent, "content", "", "Document payload (JSON or plain text)")
	recallCmd.Flags().IntVarP(&recallLimit, "limit", "n", 0, "Return at most this many documents")
	forgetCmd.Flags().StringVar(&forgetBefore, "before", "", "Only delete documents older than this RFC 3339 time")
	rootCmd.AddCommand(rememberCmd, recallCmd, forgetCmd)
}
