package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

var validFormats = map[string]bool{
	"tree":     true,
	"dot":      true,
	"tsv":      true,
	"mermaid":  true,
	"plantuml": true,
}

func validate(cfg *Config) error {
	if err := validateOutput(cfg); err != nil {
		return err
	}
	if err := validateExclude(cfg); err != nil {
		return err
	}
	if err := validateWatch(cfg); err != nil {
		return err
	}
	return nil
}

func validateOutput(cfg *Config) error {
	format := strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	if !validFormats[format] {
		return fmt.Errorf("output.format must be one of: tree, dot, tsv, mermaid, plantuml; got %q", cfg.Output.Format)
	}
	cfg.Output.Format = format
	return nil
}

func validateExclude(cfg *Config) error {
	for i, pattern := range cfg.Exclude.Methods {
		if _, err := glob.Compile(pattern, '.'); err != nil {
			return fmt.Errorf("exclude.methods[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	for i, pattern := range cfg.Exclude.Dirs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.dirs[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	for i, pattern := range cfg.Exclude.Files {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.files[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", cfg.Watch.Debounce)
	}
	return nil
}
