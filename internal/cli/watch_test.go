package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sheets: [{name: A}]\n"), 0o644))

	watcher, err := newDocumentWatcher(path)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- watcher.Run(ctx, func() { changes <- struct{}{} })
	}()

	// writes to other files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))

	// several quick writes collapse into one reload
	for range 3 {
		require.NoError(t, os.WriteFile(path, []byte("sheets: [{name: B}]\n"), 0o644))
	}

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case <-changes:
		t.Fatal("burst of writes reported twice")
	case <-time.After(3 * watchDebounce):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestDocumentWatcherMissingDirectory(t *testing.T) {
	_, err := newDocumentWatcher(filepath.Join(t.TempDir(), "absent", "book.yaml"))
	assert.Error(t, err)
}
