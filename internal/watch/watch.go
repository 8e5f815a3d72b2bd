// Package watch implements the `taut watch` subcommand's filesystem-change
// loop (spec §6 "watch: recompute plan on filesystem change events"). The
// observer's trigger loop is a thin wrapper around fsnotify, grounded on
// the teacher's internal/core/mangle_watcher.go; the recompute it drives —
// RecomputePlan — is the in-scope part and is a plain call into
// internal/orchestrator, independent of any filesystem event timing.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"taut/internal/discovery"
	"taut/internal/logging"
	"taut/internal/orchestrator"
	"taut/internal/reporter"
)

// RecomputePlan re-runs discovery/filter/selection/execution for opts and
// returns the resulting summary. This is the operation a change event
// triggers; it has no dependency on fsnotify or any other watch machinery.
func RecomputePlan(ctx context.Context, opts orchestrator.Options) (reporter.Summary, error) {
	return orchestrator.Run(ctx, opts)
}

// Watcher observes a project root for changes to candidate source files and
// invokes a callback once activity settles.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
}

// New creates a Watcher rooted at root, recursively registering every
// non-hidden, non-cache directory (mirroring discovery's own directory
// skip rules so the watch set matches what would be (re)discovered).
func New(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: root, fsw: fsw, debounce: 300 * time.Millisecond}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name != "." && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if name == "__pycache__" {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// isRelevant reports whether a changed path should trigger a recompute:
// only candidate source files, never bytecode-cache or hidden-dir noise.
func isRelevant(path string) bool {
	if strings.Contains(path, string(os.PathSeparator)+"__pycache__"+string(os.PathSeparator)) {
		return false
	}
	return filepath.Ext(path) == discovery.Ext
}

// Run blocks, debouncing change events and invoking onChange once activity
// settles, until ctx is cancelled. onChange is typically RecomputePlan
// bound to a fixed Options.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context)) error {
	defer w.fsw.Close()

	var pending bool
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !isRelevant(event.Name) {
				continue
			}
			logging.WatchDebug("watch event: %s %s", event.Op, event.Name)
			pending = true
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Watch("watch error: %v", err)

		case <-timer.C:
			if pending {
				pending = false
				onChange(ctx)
			}
		}
	}
}
