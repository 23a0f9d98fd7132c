package plugins

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchRescansOnChange(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "plugins")
	r, _, _ := newTestRegistry(t)

	var (
		mu    sync.Mutex
		scans []int
	)
	onScan := func(reg *Registry, err error) {
		assert.NoError(t, err)
		mu.Lock()
		scans = append(scans, reg.Count())
		mu.Unlock()
	}
	scanCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(scans)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Watch(ctx, base, 50*time.Millisecond, onScan)
	}()

	// Initial scan creates the directory
	require.Eventually(t, func() bool { return scanCount() >= 1 }, 5*time.Second, 10*time.Millisecond)
	_, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Count())

	writePackage(t, dir, "a.pkg", greeterPackage("A"))
	require.Eventually(t, func() bool { return r.Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.pkg")))
	require.Eventually(t, func() bool { return r.Count() == 0 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchFailsWhenPluginPathIsAFile(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "plugins"), []byte("x"), 0644))

	r, _, _ := newTestRegistry(t)
	var got error
	err := r.Watch(context.Background(), base, 0, func(_ *Registry, err error) { got = err })
	require.Error(t, err)
	assert.Equal(t, err, got)
}
