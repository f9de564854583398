// Package watch re-runs a search whenever files under the root change.
//
// fsnotify only watches single directories, so the watcher is attached
// to every directory under the root and newly created directories are
// added as they appear. Events are debounced: editors produce bursts of
// writes and renames, and one search per burst is enough.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rustscout/rustscout/internal/engine"
	"github.com/rustscout/rustscout/internal/scouterr"
)

// DefaultDebounce is the quiet period after the last event before a
// search runs.
const DefaultDebounce = 250 * time.Millisecond

// Options configures a watch session.
type Options struct {
	// Debounce overrides the quiet period (0 means DefaultDebounce).
	Debounce time.Duration
}

// Run searches once immediately, then re-runs the search after every
// debounced change under the root, invoking onResult with each
// aggregate. It returns when ctx is cancelled.
func Run(ctx context.Context, cfg engine.Config, opts Options, onResult func(*engine.Result)) error {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return scouterr.IO(cfg.Root, err)
	}
	defer watcher.Close()

	if err := addDirs(watcher, cfg.Root); err != nil {
		return err
	}

	search := func() {
		result, err := engine.Search(ctx, cfg)
		if err != nil {
			return
		}
		result.SortByPath()
		onResult(result)
	}
	search()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if skipEvent(event) {
				continue
			}
			// New directories need their own watch.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addDirs(watcher, event.Name)
				}
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}
		case <-fire:
			timer = nil
			search()
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// skipEvent drops events from artefacts the search itself produces.
func skipEvent(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".tmp") {
		return true
	}
	path := filepath.ToSlash(event.Name)
	return strings.Contains(path, "/.rustscout/") || strings.Contains(path, "/.git/")
}

// addDirs attaches the watcher to root and every directory beneath it,
// skipping the trees the walker never searches.
func addDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == ".git" || name == "target" || name == ".rustscout" {
			return filepath.SkipDir
		}
		_ = watcher.Add(path)
		return nil
	})
}
