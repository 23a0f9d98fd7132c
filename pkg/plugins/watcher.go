package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDelay is how long the watcher waits after the last change
// before rescanning
const DefaultWatchDelay = 500 * time.Millisecond

// ScanFunc is called after every rescan triggered by Watch
type ScanFunc func(r *Registry, err error)

// Watch rescans baseDir every time the plugin directory changes, coalescing
// bursts of events into one scan per delay. The directory is created and
// scanned once before watching starts. Watch blocks until ctx is done.
func (r *Registry) Watch(ctx context.Context, baseDir string, delay time.Duration, onScan ScanFunc) error {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}

	err := r.Scan(ctx, baseDir)
	if onScan != nil {
		onScan(r, err)
	}
	if err != nil {
		return err
	}

	dir, err := r.PluginDir(baseDir)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	r.log.Infof("Started watching for plugin changes in %s", dir)

	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&relevant == 0 {
				continue
			}
			r.log.Debugf("Plugin directory changed: %s", event)
			timer.Reset(delay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Warnf("Watcher error: %v", err)

		case <-timer.C:
			err := r.Scan(ctx, baseDir)
			if err != nil {
				r.log.Errorf("Rescan of %s failed: %v", dir, err)
			}
			if onScan != nil {
				onScan(r, err)
			}
		}
	}
}
