// Package config loads the engine configuration from an HCL file. Every
// field is optional; zero values fall back to the defaults below.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the top-level engine configuration.
type Config struct {
	// Root is the directory all rendered paths are relative to.
	Root string `hcl:"root,optional"`
	// Schema is the path to the routing schema file (JSON or YAML).
	Schema string `hcl:"schema,optional"`
	// LogLevel is debug, info, warn, or error.
	LogLevel string `hcl:"log_level,optional"`
	// LogFormat is text or json.
	LogFormat string `hcl:"log_format,optional"`

	Discovery *DiscoveryConfig `hcl:"discovery,block"`
	Watch     *WatchConfig     `hcl:"watch,block"`
}

// DiscoveryConfig bounds schema discovery runs.
type DiscoveryConfig struct {
	MaxClusters int   `hcl:"max_clusters,optional"`
	SampleSize  int   `hcl:"sample_size,optional"`
	Seed        int64 `hcl:"seed,optional"`
}

// WatchConfig configures the sentinel inbox watcher.
type WatchConfig struct {
	Inbox      string `hcl:"inbox,optional"`
	Quarantine string `hcl:"quarantine,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Root:      "memories",
		LogLevel:  "info",
		LogFormat: "text",
		Discovery: &DiscoveryConfig{MaxClusters: 5, SampleSize: 1000},
		Watch:     &WatchConfig{Inbox: "_inbox", Quarantine: "_quarantine"},
	}
}

// Load reads an HCL config file and fills unset fields with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Root == "" {
		cfg.Root = def.Root
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = def.LogFormat
	}
	if cfg.Discovery == nil {
		cfg.Discovery = def.Discovery
	} else {
		if cfg.Discovery.MaxClusters <= 0 {
			cfg.Discovery.MaxClusters = def.Discovery.MaxClusters
		}
		if cfg.Discovery.SampleSize <= 0 {
			cfg.Discovery.SampleSize = def.Discovery.SampleSize
		}
	}
	if cfg.Watch == nil {
		cfg.Watch = def.Watch
	} else {
		if cfg.Watch.Inbox == "" {
			cfg.Watch.Inbox = def.Watch.Inbox
		}
		if cfg.Watch.Quarantine == "" {
			cfg.Watch.Quarantine = def.Watch.Quarantine
		}
	}
}
