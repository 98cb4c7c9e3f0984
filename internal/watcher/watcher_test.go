package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForChange(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case paths := <-ch:
		return paths
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for file change event")
		return nil
	}
}

func TestWatcherDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "venv"), 0o755))

	changed := make(chan []string, 4)
	w, err := NewWatcher(100*time.Millisecond, []string{"./venv/"}, []string{"*_test.py"}, func(paths []string) {
		changed <- paths
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{tmpDir}))

	// Ignored: wrong extension, excluded file pattern, excluded directory.
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "solver_test.py"), []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "venv", "lib.py"), []byte("x = 1\n"), 0o644))

	target := filepath.Join(tmpDir, "solver.py")
	require.NoError(t, os.WriteFile(target, []byte("class S:\n    pass\n"), 0o644))

	paths := waitForChange(t, changed)
	assert.Equal(t, []string{target}, paths)
}

func TestWatcherSingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "model.py")
	other := filepath.Join(tmpDir, "other.py")
	require.NoError(t, os.WriteFile(target, []byte("x = 1\n"), 0o644))

	changed := make(chan []string, 4)
	w, err := NewWatcher(50*time.Millisecond, nil, nil, func(paths []string) {
		changed <- paths
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{target}))

	require.NoError(t, os.WriteFile(other, []byte("y = 2\n"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("x = 2\n"), 0o644))

	paths := waitForChange(t, changed)
	assert.Equal(t, []string{target}, paths)
}

func TestWatcherDebouncesBursts(t *testing.T) {
	tmpDir := t.TempDir()
	changed := make(chan []string, 4)
	w, err := NewWatcher(150*time.Millisecond, nil, nil, func(paths []string) {
		changed <- paths
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{tmpDir}))

	a := filepath.Join(tmpDir, "a.py")
	b := filepath.Join(tmpDir, "b.py")
	require.NoError(t, os.WriteFile(a, []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("x = 1\n"), 0o644))

	paths := waitForChange(t, changed)
	assert.Equal(t, []string{a, b}, paths)
}

func TestNewWatcherValidation(t *testing.T) {
	_, err := NewWatcher(time.Second, nil, nil, nil)
	assert.ErrorIs(t, err, os.ErrInvalid)

	_, err = NewWatcher(time.Second, []string{"[oops"}, nil, func([]string) {})
	assert.Error(t, err)
}

func TestWatchMissingPath(t *testing.T) {
	w, err := NewWatcher(time.Second, nil, nil, func([]string) {})
	require.NoError(t, err)
	defer w.Close()
	assert.Error(t, w.Watch([]string{filepath.Join(t.TempDir(), "missing.py")}))
}
