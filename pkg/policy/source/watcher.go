package source

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces editor write bursts into one reload.
const debounceDelay = 200 * time.Millisecond

// Watch re-syncs the rule file whenever it changes, until the context is
// canceled. The watch is placed on the parent directory because editors
// commonly replace the file via rename, which drops a watch on the file
// itself.
func (f *File) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	f.logger.Info("watching rule file", "path", f.path)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !f.shouldProcessEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(debounceDelay)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := f.Sync(ctx); err != nil {
				// A transient bad file must not stop the watch; the
				// previous rule state stays in effect.
				f.logger.Error("rule file reload failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Error("rule file watch error", "error", err)
		}
	}
}

// shouldProcessEvent filters for content changes to the watched file.
func (f *File) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(f.path)
}
