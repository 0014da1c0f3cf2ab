package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDefinition(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

const validDefinition = `
chunking:
  algorithm: fixed
  fixed_size: 1048576
stages:
  - name: compression
    algorithm: zstd
    parameters:
      algorithm: zstd
`

func TestWatcherLoadsExistingDefinitionsOnStart(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "nightly.yaml", validDefinition)

	w, err := NewWatcher(dir, nil)
	require.NoError(t, err)
	defer w.Close()

	p, ok := w.Get("nightly")
	require.True(t, ok)
	assert.Equal(t, "nightly", p.Name)
	assert.Len(t, p.Stages, 1)
}

func TestWatcherPicksUpNewDefinition(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(dir, nil)
	require.NoError(t, err)
	defer w.Close()

	_, ok := w.Get("added")
	assert.False(t, ok)

	writeDefinition(t, dir, "added.yaml", validDefinition)

	require.Eventually(t, func() bool {
		_, ok := w.Get("added")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherForgetsRemovedDefinition(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "gone.yaml", validDefinition)

	w, err := NewWatcher(dir, nil)
	require.NoError(t, err)
	defer w.Close()

	_, ok := w.Get("gone")
	require.True(t, ok)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		_, ok := w.Get("gone")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherReportsParseErrorsWithoutDying(t *testing.T) {
	dir := t.TempDir()
	errs := make(chan error, 4)

	w, err := NewWatcher(dir, func(e error) { errs <- e })
	require.NoError(t, err)
	defer w.Close()

	writeDefinition(t, dir, "broken.yaml", "chunking:\n  algorithm: fixed\n  fixed_size: 0\n")

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("expected reload error to be reported")
	}

	_, ok := w.Get("broken")
	assert.False(t, ok)
}
