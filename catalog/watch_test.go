package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "social.yaml")
	require.NoError(t, os.WriteFile(path, []byte("types:\n  - name: A\n"), 0o644))

	load := func() (*Snapshot, error) { return BuildSnapshotFromFixture(path) }

	w, err := NewWatcher(load)
	require.NoError(t, err)
	defer w.Close()

	_, ok := w.Current().ByName("A")
	assert.True(t, ok)
	_, ok = w.Current().ByName("B")
	assert.False(t, ok)

	require.NoError(t, w.WatchPaths(dir))

	require.NoError(t, os.WriteFile(path, []byte("types:\n  - name: A\n  - name: B\n"), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := w.Current().ByName("B"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not pick up the schema change in time")
}

func TestWatcherSurvivesBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "social.yaml")
	require.NoError(t, os.WriteFile(path, []byte("types:\n  - name: A\n"), 0o644))

	load := func() (*Snapshot, error) { return BuildSnapshotFromFixture(path) }
	w, err := NewWatcher(load)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WatchPaths(dir))
	require.NoError(t, os.WriteFile(path, []byte("types: [not a mapping"), 0o644))

	select {
	case err := <-w.Errors():
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reload error")
	}

	_, ok := w.Current().ByName("A")
	assert.True(t, ok, "last good snapshot should remain current after a bad reload")
}
