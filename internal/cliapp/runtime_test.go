package cliapp

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shapesSource = `class Base:
    def run(self):
        self.setup()

    def setup(self):
        pass


class Child(Base):
    def setup(self):
        super().setup()
        self.helper()

    def helper(self):
        pass
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestTreeCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shapes.py", shapesSource)

	code, out, errOut := execute(t, "tree", "shapes.Child.run", "-p", dir)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Base.run\n  Child.setup\n    Base.setup\n    Child.helper\n", out)
}

func TestTreeCommandWritesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shapes.py", shapesSource)
	target := filepath.Join(dir, "out", "tree.dot")

	code, out, errOut := execute(t, "tree", "shapes.Child.run", "-p", dir, "--format", "dot", "-o", target)
	require.Equal(t, 0, code, errOut)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Child.setup" -> "Base.setup"`)
}

func TestTreeCommandMalformedPath(t *testing.T) {
	code, out, errOut := execute(t, "tree", "shapes.run")
	assert.Equal(t, 2, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "must have the form <module>.<Class>.<method>")
}

func TestTreeCommandNotFoundIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shapes.py", shapesSource)

	code, out, errOut := execute(t, "tree", "shapes.Child.missing", "-p", dir)
	assert.Equal(t, 0, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "can't find function 'missing' in class 'Child'")

	code, out, errOut = execute(t, "tree", "nowhere.Child.run", "-p", dir)
	assert.Equal(t, 0, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "not found")
}

func TestTreeCommandRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shapes.py", shapesSource)

	code, _, errOut := execute(t, "tree", "shapes.Child.run", "-p", dir, "--format", "svg")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown output format")
}

func TestAttrsCommand(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "comp.py", `class Comp:
    def __init__(self):
        self.value = 1

    @property
    def ready(self):
        return True
`)

	code, out, errOut := execute(t, "attrs", file)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Comp: ready, value\n", out)

	code, out, errOut = execute(t, "attrs", "--json", file)
	require.Equal(t, 0, code, errOut)
	assert.JSONEq(t, `{"Comp": ["ready", "value"]}`, out)

	code, _, errOut = execute(t, "attrs", filepath.Join(dir, "missing.py"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "NOT_FOUND")
}

func TestAttrsCommandSavesHistory(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "calltree.toml", "[history]\npath = \""+filepath.ToSlash(filepath.Join(dir, "state", "attrs.db"))+"\"\n")
	file := writeFile(t, dir, "comp.py", "class Comp:\n    def __init__(self):\n        self.value = 1\n")

	code, out, errOut := execute(t, "--config", cfgPath, "attrs", "--save", file)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Comp: value\n", out)

	writeFile(t, dir, "comp.py", "class Comp:\n    def __init__(self):\n        self.extra = 2\n")
	code, out, errOut = execute(t, "--config", cfgPath, "attrs", "--save", file)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Comp: extra\nchanges since last snapshot:\n  Comp\n    + extra\n    - value\n", out)

	code, out, _ = execute(t, "--config", cfgPath, "attrs", "--save", file)
	require.Equal(t, 0, code)
	assert.True(t, strings.HasSuffix(out, "no changes since last snapshot\n"))
}

func TestLambdaCapture(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "funcs.py", "add = lambda a, b: a + b\npair = (lambda a: a, lambda b: b)\n")

	code, out, errOut := execute(t, "lambda", "capture", file+":1")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "lambda a, b: a + b\n", out)

	code, _, errOut = execute(t, "lambda", "capture", file+":2")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "only one lambda function is allowed per line")

	code, _, _ = execute(t, "lambda", "capture", file)
	assert.Equal(t, 2, code)
}

func TestLambdaCall(t *testing.T) {
	code, out, errOut := execute(t, "lambda", "call", "lambda a, b: a + b", "2", "3")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "5\n", out)

	code, out, errOut = execute(t, "lambda", "call", "lambda s, n=2: s * n", "'ab'")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "'abab'\n", out)

	code, _, _ = execute(t, "lambda", "call", "lambda a: a", "os.system")
	assert.Equal(t, 2, code)

	code, _, errOut = execute(t, "lambda", "call", "__import__('os')")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not a single lambda")
}

func TestVersionAndUsage(t *testing.T) {
	code, out, _ := execute(t, "--version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "calltree v1.0.0\n", out)

	code, _, _ = execute(t, "tree")
	assert.Equal(t, 2, code)

	code, _, _ = execute(t, "tree", "--bogus", "a.B.c")
	assert.Equal(t, 2, code)
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in   string
		path string
		line int
		col  int
		ok   bool
	}{
		{"funcs.py:3", "funcs.py", 3, 0, true},
		{"funcs.py:3:9", "funcs.py", 3, 9, true},
		{"C:/src/funcs.py:4", "C:/src/funcs.py", 4, 0, true},
		{"funcs.py", "", 0, 0, false},
		{"funcs.py:x", "", 0, 0, false},
		{"funcs.py:0", "", 0, 0, false},
	}
	for _, tt := range tests {
		path, line, col, err := parseLocation(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.path, path)
		assert.Equal(t, tt.line, line)
		assert.Equal(t, tt.col, col)
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "tree", cfg.Output.Format)

	_, err = loadConfig(filepath.Join(t.TempDir(), "other.toml"))
	assert.Error(t, err)
}

func TestMetricsFileWrittenAfterCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shapes.py", shapesSource)
	metrics := filepath.Join(dir, "metrics", "tree.prom")

	code, _, errOut := execute(t, "--metrics-file", metrics, "tree", "shapes.Child.run", "-p", dir)
	require.Equal(t, 0, code, errOut)
	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "calltree_methods_expanded_total")

	funcs := writeFile(t, dir, "funcs.py", "pair = (lambda a: a, lambda b: b)\n")
	failed := filepath.Join(dir, "metrics", "capture.prom")
	code, _, _ = execute(t, "--metrics-file", failed, "lambda", "capture", funcs+":1")
	require.Equal(t, 1, code)
	data, err = os.ReadFile(failed)
	require.NoError(t, err)
	assert.Contains(t, string(data), `calltree_lambda_captures_total{outcome="ambiguous"}`)
}

func TestAttrsWatchServesMetrics(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "comp.py", "class Comp:\n    def __init__(self):\n        self.value = 1\n")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		var stdout, stderr bytes.Buffer
		done <- run(ctx, []string{"--metrics-addr", addr, "attrs", "--watch", file}, &stdout, &stderr)
	}()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
	assert.Contains(t, body, "calltree_attribute_classes_total")

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("watch mode did not stop after cancel")
	}
}

func TestAttrsCommandCorruptHistory(t *testing.T) {
	dir := t.TempDir()
	db := writeFile(t, dir, "attrs.db", strings.Repeat("not a sqlite database ", 256))
	cfgPath := writeFile(t, dir, "calltree.toml", "[history]\npath = \""+filepath.ToSlash(db)+"\"\n")
	file := writeFile(t, dir, "comp.py", "class Comp:\n    pass\n")

	code, out, errOut := execute(t, "--config", cfgPath, "attrs", "--save", file)
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "[history] path")
}
