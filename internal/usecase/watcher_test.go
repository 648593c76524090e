package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/fileio"
)

type countingReloader struct{ n atomic.Int32 }

func (c *countingReloader) Reload() error {
	c.n.Add(1)
	return nil
}

func TestModelWatcherRelevant(t *testing.T) {
	w := NewModelWatcher("/models", repository.ArtifactFiles, &countingReloader{}, 0, nil)

	assert.True(t, w.relevant(fsnotify.Event{Name: "/models/thresholds.json", Op: fsnotify.Create}))
	assert.True(t, w.relevant(fsnotify.Event{Name: "/models/sapta_model.json", Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/models/notes.txt", Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/models/thresholds.json", Op: fsnotify.Chmod}))

	all := NewModelWatcher("/models", nil, &countingReloader{}, 0, nil)
	assert.True(t, all.relevant(fsnotify.Event{Name: "/models/anything", Op: fsnotify.Create}))
}

func TestModelWatcherDebouncesReloads(t *testing.T) {
	dir := t.TempDir()
	target := &countingReloader{}
	w := NewModelWatcher(dir, repository.ArtifactFiles, target, 100*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	for _, f := range repository.ArtifactFiles {
		require.NoError(t, fileio.WriteAtomic(filepath.Join(dir, f), []byte("{}"), 0o644))
	}
	assert.Eventually(t, func() bool { return target.n.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	before := target.n.Load()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, before, target.n.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestModelWatcherMissingDir(t *testing.T) {
	w := NewModelWatcher(filepath.Join(t.TempDir(), "absent"), nil, &countingReloader{}, 0, nil)
	assert.Error(t, w.Run(context.Background()))
}
