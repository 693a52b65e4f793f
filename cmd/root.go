package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/coherence/api"
	"github.com/agentic-research/coherence/internal/config"
	"github.com/agentic-research/coherence/internal/logging"
	"github.com/agentic-research/coherence/internal/route"
	"github.com/agentic-research/coherence/internal/schema"
	"github.com/agentic-research/coherence/internal/store"
)

var (
	cfgPath    string
	schemaPath string
	rootDir    string
	logLevel   string
	logFormat  string

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to HCL config file")
	rootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "", "Path to routing schema (JSON or YAML)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "Directory rendered paths are relative to")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

var rootCmd = &cobra.Command{
	Use:           "coherence",
	Short:         "Schema-driven record routing and discovery",
	Long:          "Coherence routes flat records to deterministic filesystem paths through a declarative decision-tree schema, answers partial queries with glob patterns, and proposes schemas from existing corpora.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgPath != "" {
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Default()
		}
		if schemaPath != "" {
			cfg.Schema = schemaPath
		}
		if rootDir != "" {
			cfg.Root = rootDir
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}
		logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, os.Stderr)
		return nil
	},
}

// loadEngine compiles the configured schema into a routing engine.
func loadEngine() (*route.Engine, error) {
	if cfg.Schema == "" {
		return nil, fmt.Errorf("no schema configured; pass --schema or set schema in the config file")
	}
	sch, err := schema.LoadFile(cfg.Schema)
	if err != nil {
		return nil, err
	}
	// The store chroots at cfg.Root, so rendered paths stay relative.
	return route.New(sch, ""), nil
}

// openStore builds a store rooted at the configured directory.
func openStore() (*store.Store, error) {
	engine, err := loadEngine()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", cfg.Root, err)
	}
	return store.New(osfs.New(cfg.Root), engine), nil
}

// readRecordArg parses a record from an inline JSON argument or, when the
// argument is "-" or absent, from stdin.
func readRecordArg(args []string, in io.Reader) (api.Record, error) {
	var data []byte
	if len(args) > 0 && args[0] != "-" {
		data = []byte(args[0])
	} else {
		var err error
		data, err = io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return api.Record{}, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return api.NewRecord(raw)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
