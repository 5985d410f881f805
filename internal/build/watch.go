package build

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow batches rapid-fire filesystem events (editor save
// choreography, bulk checkouts) into one session.
const debounceWindow = 200 * time.Millisecond

// Watch runs an initial session and then one incremental session per
// batch of source changes, until ctx is cancelled. onReport is invoked
// after every session, including the initial one.
//
// Only .weft sources and library .meta files trigger rebuilds; session
// tables and artifacts written by the build itself live outside the
// watched directories and cause no feedback loop.
func (r *Runner) Watch(ctx context.Context, jobs int, onReport func(*Report)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.cfg.SourceDir); err != nil {
		return fmt.Errorf("watch %s: %w", r.cfg.SourceDir, err)
	}
	if r.cfg.LibDir != "" {
		if err := watcher.Add(r.cfg.LibDir); err != nil {
			r.logger.Warn("library dir not watched", "dir", r.cfg.LibDir, "error", err)
		}
	}

	run := func() {
		report, err := r.Run(ctx, false, jobs)
		if err != nil && report == nil {
			r.logger.Error("session failed", "error", err)
			return
		}
		if onReport != nil {
			onReport(report)
		}
	}
	run()

	var debounce *time.Timer
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			r.logger.Debug("source changed", "path", event.Name, "op", event.Op.String())
			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
			} else {
				debounce.Reset(debounceWindow)
			}
			pending = debounce.C

		case <-pending:
			pending = nil
			run()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", "error", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	switch filepath.Ext(event.Name) {
	case ".weft", ".meta":
		return true
	}
	return false
}
