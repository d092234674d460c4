package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnSnapshotChange(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(dir, testDims)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, b.IndexProducts(ctx, testDocs()))
	require.NoError(t, b.Save())

	reloaded := make(chan struct{}, 1)
	w, err := WatchSnapshot(b, 50*time.Millisecond, func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// Touch the vector file as a finished reindex would
	require.NoError(t, b.Save())

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload after snapshot change")
	}

	// The backend stays queryable after the reload
	hits, err := b.SparseSearch(ctx, []string{"pump"}, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestWatcher_RelevantFilters(t *testing.T) {
	w := &Watcher{}

	cases := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"vector write", fsnotify.Event{Name: "/snap/" + VectorIndexName, Op: fsnotify.Write}, true},
		{"catalog rename", fsnotify.Event{Name: "/snap/" + CatalogName, Op: fsnotify.Rename}, true},
		{"lock file churn", fsnotify.Event{Name: "/snap/" + lockFileName, Op: fsnotify.Write}, false},
		{"sqlite wal", fsnotify.Event{Name: "/snap/catalog.db-wal", Op: fsnotify.Write}, false},
		{"sqlite shm", fsnotify.Event{Name: "/snap/catalog.db-shm", Op: fsnotify.Write}, false},
		{"chmod only", fsnotify.Event{Name: "/snap/" + VectorIndexName, Op: fsnotify.Chmod}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, w.relevant(tc.event))
		})
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(dir, 0)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	w, err := WatchSnapshot(b, time.Second, nil)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestWatcher_IgnoresLockChurn(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(dir, 0)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	reloaded := make(chan struct{}, 1)
	w, err := WatchSnapshot(b, 50*time.Millisecond, func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), []byte{}, 0644))

	select {
	case <-reloaded:
		t.Fatal("lock file churn must not trigger a reload")
	case <-time.After(300 * time.Millisecond):
	}
}
