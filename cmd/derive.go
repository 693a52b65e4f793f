package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/coherence/api"
	"github.com/agentic-research/coherence/internal/discover"
)

var (
	deriveDB        string
	derivePathsFile string
	deriveMax       int
	deriveSample    int
	deriveSeed      int64
	deriveOut       string
)

var deriveCmd = &cobra.Command{
	Use:   "derive [dir]",
	Short: "Propose a routing schema from an existing corpus",
	Long: "Analyzes a corpus of stored paths or records for latent structure and prints a schema proposal. " +
		"The corpus comes from a directory walk (default: the configured root), a paths file, or a SQLite database. " +
		"The proposal is advisory; review it before adopting it as the active schema.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := discover.DefaultOptions()
		if cfg.Discovery != nil {
			opts.MaxClusters = cfg.Discovery.MaxClusters
			opts.SampleSize = cfg.Discovery.SampleSize
			opts.Seed = cfg.Discovery.Seed
		}
		if deriveMax > 0 {
			opts.MaxClusters = deriveMax
		}
		if deriveSample > 0 {
			opts.SampleSize = deriveSample
		}
		if cmd.Flags().Changed("seed") {
			opts.Seed = deriveSeed
		}

		proposal, err := deriveProposal(args, opts)
		if err != nil {
			return err
		}

		if deriveOut != "" {
			if err := writeProposalSchema(deriveOut, proposal.Schema); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote proposed schema to %s\n", deriveOut)
			fmt.Fprintln(cmd.OutOrStdout(), proposal.Explanation)
			return nil
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(proposal)
	},
}

func deriveProposal(args []string, opts discover.Options) (*api.Proposal, error) {
	switch {
	case deriveDB != "":
		corpus, err := discover.LoadSQLite(deriveDB)
		if err != nil {
			return nil, err
		}
		return discover.Derive(corpus, opts)
	case derivePathsFile != "":
		paths, err := readPathsFile(derivePathsFile)
		if err != nil {
			return nil, err
		}
		return discover.DerivePaths(paths, opts)
	default:
		dir := cfg.Root
		if len(args) > 0 {
			dir = args[0]
		}
		paths, err := collectPaths(dir)
		if err != nil {
			return nil, err
		}
		return discover.DerivePaths(paths, opts)
	}
}

func readPathsFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open paths file: %w", err)
	}
	defer func() { _ = f.Close() }() // safe to ignore

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, sc.Err()
}

// collectPaths walks dir and returns every stored document path relative
// to it, the same form the router renders.
func collectPaths(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".json" {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return paths, nil
}

func writeProposalSchema(name string, raw api.RawSchema) error {
	var data []byte
	var err error
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(map[string]any(raw))
	default:
		data, err = json.MarshalIndent(raw, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return os.WriteFile(name, data, 0o644)
}

func init() {
	deriveCmd.Flags().StringVar(&deriveDB, "db", "", "SQLite database holding a records table to analyze")
	deriveCmd.Flags().StringVar(&derivePathsFile, "paths", "", "File with one stored path per line")
	deriveCmd.Flags().IntVar(&deriveMax, "max-clusters", 0, "Upper bound on discovered groupings")
	deriveCmd.Flags().IntVar(&deriveSample, "sample-size", 0, "Sample size for large corpora")
	deriveCmd.Flags().Int64Var(&deriveSeed, "seed", 0, "Sampling seed for reproducible runs")
	deriveCmd.Flags().StringVarP(&deriveOut, "output", "o", "", "Write the proposed schema to this file (.json or .yaml)")
	rootCmd.AddCommand(deriveCmd)
}
