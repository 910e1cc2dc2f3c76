// Package watch triggers rebuilds on filesystem changes,
// grounded in gts-suite's cmd/gts watch command: a recursive fsnotify
// watcher that batches bursts of events (an editor's save-then-rename
// sequence, a `git checkout`) into one callback. The batching itself
// is a self-contained debouncer rather than a timer inlined in the
// event loop, following this module's own goroutine-pool idiom in
// internal/builder's parseAll of keeping concurrency bookkeeping in
// its own mutex-guarded type instead of loop-local state.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var skipDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true, "node_modules": true, "vendor": true,
	"build": true, "dist": true,
}

// DefaultDebounce is used when Run is called with debounce <= 0.
const DefaultDebounce = 250 * time.Millisecond

// Run watches root recursively until ctx is cancelled, calling
// onChange with the set of changed paths once per debounce window.
// Only .c/.h files (and directory structure changes that might add
// new ones) participate; everything else is filtered at the event
// level.
func Run(ctx context.Context, root string, debounce time.Duration, onChange func(changed []string)) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	absRoot = filepath.Clean(absRoot)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addWatchRecursive(watcher, absRoot, absRoot); err != nil {
		return err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	deb := newDebouncer(debounce, onChange)
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			eventPath := filepath.Clean(event.Name)
			if shouldIgnoreEvent(eventPath, absRoot) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(eventPath); statErr == nil && info.IsDir() {
					_ = addWatchRecursive(watcher, eventPath, absRoot)
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			deb.touch(eventPath)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return watchErr
		}
	}
}

// debouncer accumulates touched paths and delivers them to onFire in
// one batch once touch has gone quiet for delay. Each touch schedules
// its own time.AfterFunc rather than resetting one shared *time.Timer:
// the epoch counter invalidates every AfterFunc scheduled before the
// most recent touch, so only the last one to fire ever emits a batch,
// and there is no Stop-and-drain dance to get wrong.
type debouncer struct {
	delay  time.Duration
	onFire func(paths []string)

	mu      sync.Mutex
	paths   map[string]bool
	epoch   uint64
	stopped bool
}

func newDebouncer(delay time.Duration, onFire func(paths []string)) *debouncer {
	return &debouncer{delay: delay, onFire: onFire, paths: map[string]bool{}}
}

func (d *debouncer) touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if path != "" {
		d.paths[path] = true
	}
	d.epoch++
	mine := d.epoch
	time.AfterFunc(d.delay, func() { d.fire(mine) })
}

func (d *debouncer) fire(epoch uint64) {
	d.mu.Lock()
	if d.stopped || epoch != d.epoch {
		d.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(d.paths))
	for p := range d.paths {
		changed = append(changed, p)
	}
	sort.Strings(changed)
	d.paths = map[string]bool{}
	d.mu.Unlock()
	d.onFire(changed)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}

func addWatchRecursive(watcher *fsnotify.Watcher, dir, root string) error {
	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if shouldSkipDir(root, path, entry.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func shouldSkipDir(root, path, name string) bool {
	if path == root {
		return false
	}
	if skipDirs[name] {
		return true
	}
	return strings.HasPrefix(name, ".")
}

func shouldIgnoreEvent(path, root string) bool {
	base := filepath.Base(path)
	if base == ".DS_Store" || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".swx") {
		return true
	}
	if strings.HasPrefix(base, ".#") {
		return true
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return shouldSkipDir(root, path, base)
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext != ".c" && ext != ".h" {
		return true
	}
	return false
}
