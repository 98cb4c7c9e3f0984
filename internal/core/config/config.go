package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultFile = "calltree.toml"

type Config struct {
	SearchPaths []string `toml:"search_paths"`
	Output      Output   `toml:"output"`
	Exclude     Exclude  `toml:"exclude"`
	Watch       Watch    `toml:"watch"`
	History     History  `toml:"history"`
	Tracing     Tracing  `toml:"tracing"`
	Metrics     Metrics  `toml:"metrics"`
}

type Output struct {
	Destination string `toml:"destination"` // stdout, stderr or a file path
	Format      string `toml:"format"`      // tree, dot, tsv, mermaid, plantuml
	Color       bool   `toml:"color"`
}

type Exclude struct {
	Methods []string `toml:"methods"` // Qualified-name globs (e.g. "object.*") never added to the graph
	Dirs    []string `toml:"dirs"`
	Files   []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Metrics struct {
	File string `toml:"file"` // Prometheus textfile written when a command ends
	Addr string `toml:"addr"` // /metrics listen address while attrs --watch runs
}

type Tracing struct {
	Endpoint string `toml:"endpoint"` // OTLP gRPC endpoint; empty disables export
	Insecure bool   `toml:"insecure"`
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	ApplyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.SearchPaths) == 0 {
		cfg.SearchPaths = []string{"."}
	}
	if strings.TrimSpace(cfg.Output.Destination) == "" {
		cfg.Output.Destination = "stdout"
	}
	if strings.TrimSpace(cfg.Output.Format) == "" {
		cfg.Output.Format = "tree"
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "__pycache__", ".venv"}
	}
	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "data/calltree.db"
	}
}
