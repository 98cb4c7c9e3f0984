package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: CALLTREE_[SECTION]_[KEY] (e.g., CALLTREE_OUTPUT_FORMAT).
func ApplyEnvOverrides(cfg *Config) {
	setEnvList(&cfg.SearchPaths, "CALLTREE_SEARCH_PATHS")

	setEnvString(&cfg.Output.Destination, "CALLTREE_OUTPUT_DESTINATION")
	setEnvString(&cfg.Output.Format, "CALLTREE_OUTPUT_FORMAT")
	setEnvBool(&cfg.Output.Color, "CALLTREE_OUTPUT_COLOR")

	setEnvDuration(&cfg.Watch.Debounce, "CALLTREE_WATCH_DEBOUNCE")

	setEnvBool(&cfg.History.Enabled, "CALLTREE_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "CALLTREE_HISTORY_PATH")

	setEnvString(&cfg.Tracing.Endpoint, "CALLTREE_TRACING_ENDPOINT")

	setEnvString(&cfg.Metrics.File, "CALLTREE_METRICS_FILE")
	setEnvString(&cfg.Metrics.Addr, "CALLTREE_METRICS_ADDR")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Printf("Applying env override: %s=%s", key, val)
		*target = val
	}
}

// setEnvList splits on the OS path list separator, like PYTHONPATH.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		var out []string
		for _, part := range strings.Split(val, string(filepath.ListSeparator)) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		log.Printf("Applying env override: %s=%s", key, val)
		*target = out
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = d
		}
	}
}
