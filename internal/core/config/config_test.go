package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
search_paths = ["./src", "./lib"]

[output]
destination = "tree.txt"
format = "DOT"
color = true

[exclude]
methods = ["object.*", "*.__repr__"]
dirs = [".git"]
files = ["*_test.py"]

[watch]
debounce = "1s"

[history]
enabled = true
path = "state/attrs.db"

[tracing]
endpoint = "localhost:4317"

[metrics]
file = "state/calltree.prom"
addr = "127.0.0.1:9464"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"./src", "./lib"}, cfg.SearchPaths)
	assert.Equal(t, "tree.txt", cfg.Output.Destination)
	assert.Equal(t, "dot", cfg.Output.Format)
	assert.True(t, cfg.Output.Color)
	assert.Equal(t, []string{"object.*", "*.__repr__"}, cfg.Exclude.Methods)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "state/attrs.db", cfg.History.Path)
	assert.Equal(t, "localhost:4317", cfg.Tracing.Endpoint)
	assert.Equal(t, "state/calltree.prom", cfg.Metrics.File)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `search_paths = []`))
	require.NoError(t, err)

	assert.Equal(t, []string{"."}, cfg.SearchPaths)
	assert.Equal(t, "stdout", cfg.Output.Destination)
	assert.Equal(t, "tree", cfg.Output.Format)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "data/calltree.db", cfg.History.Path)
	assert.False(t, cfg.History.Enabled)
}

func TestDefaultConfigMatchesEmptyFile(t *testing.T) {
	loaded, err := Load(writeConfig(t, ``))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), loaded)
}

func TestLoadError(t *testing.T) {
	_, err := Load("nonexistent.toml")
	assert.Error(t, err, "expected error for nonexistent file")

	_, err = Load(writeConfig(t, "bad = toml = format"))
	assert.Error(t, err, "expected error for malformed TOML")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown format",
			content: "[output]\nformat = \"svg\"\n",
			want:    "output.format",
		},
		{
			name:    "bad method glob",
			content: "[exclude]\nmethods = [\"[oops\"]\n",
			want:    "exclude.methods[0]",
		},
		{
			name:    "negative debounce",
			content: "[watch]\ndebounce = \"-1s\"\n",
			want:    "watch.debounce",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CALLTREE_SEARCH_PATHS", "a"+string(filepath.ListSeparator)+"b")
	t.Setenv("CALLTREE_OUTPUT_FORMAT", "tsv")
	t.Setenv("CALLTREE_HISTORY_ENABLED", "true")
	t.Setenv("CALLTREE_METRICS_FILE", "out.prom")

	cfg, err := Load(writeConfig(t, ``))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, cfg.SearchPaths)
	assert.Equal(t, "tsv", cfg.Output.Format)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "out.prom", cfg.Metrics.File)
}
