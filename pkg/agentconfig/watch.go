package agentconfig

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDuration coalesces the bursts of events editors produce on save.
const debounceDuration = 100 * time.Millisecond

// Watch reports changes to the file at path on the returned channel, one
// signal per burst of writes. It watches the parent directory so files
// replaced by rename are still seen. The channel is closed when ctx is
// done or the watcher fails.
func Watch(ctx context.Context, path string, log *slog.Logger) (<-chan struct{}, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close() // Best effort close
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer watcher.Close()
		runWatcher(ctx, watcher, abs, changes, log)
	}()
	return changes, nil
}

func runWatcher(ctx context.Context, watcher *fsnotify.Watcher, path string, changes chan<- struct{}, log *slog.Logger) {
	debounceTimer := newDebounceTimer()
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path || event.Op == fsnotify.Chmod {
				continue
			}
			resetDebounceTimer(debounceTimer)

		case <-debounceTimer.C:
			// Drop the signal when the previous one is still unread.
			select {
			case changes <- struct{}{}:
			default:
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", "path", path, "err", err)
			return
		}
	}
}

// newDebounceTimer creates a stopped timer.
func newDebounceTimer() *time.Timer {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	return timer
}

func resetDebounceTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(debounceDuration)
}
