// Package watcher watches a source tree and reports batches of changed
// Clarion files after a quiet period.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/clarionscope/internal/log"
)

// Change is one debounced batch of file events.
type Change struct {
	// Modified holds files created or written, sorted.
	Modified []string
	// Removed holds files deleted or renamed away, sorted.
	Removed []string
}

// Watcher monitors a directory tree for source file changes.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	root       string
	extensions []string
	exclude    []string
	debounce   time.Duration
	onChange   chan Change
	done       chan struct{}
	stopOnce   sync.Once
}

// Config holds watcher configuration options.
type Config struct {
	Root        string
	Extensions  []string // lower-case, with leading dot
	Exclude     []string // glob patterns matched against base names
	DebounceDur time.Duration
}

// DefaultConfig returns defaults for watching root.
func DefaultConfig(root string) Config {
	return Config{
		Root:        root,
		Extensions:  []string{".clw", ".inc", ".equ", ".trn"},
		DebounceDur: 300 * time.Millisecond,
	}
}

// New creates a new source tree watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	exts := make([]string, len(cfg.Extensions))
	for i, e := range cfg.Extensions {
		exts[i] = strings.ToLower(e)
	}

	return &Watcher{
		fsWatcher:  fsw,
		root:       cfg.Root,
		extensions: exts,
		exclude:    cfg.Exclude,
		debounce:   cfg.DebounceDur,
		onChange:   make(chan Change, 1),
		done:       make(chan struct{}),
	}, nil
}

// Start adds every directory under the root and begins watching.
// The returned channel receives one Change per quiet period.
func (w *Watcher) Start() (<-chan Change, error) {
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.excluded(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
	if err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", w.root, err)
	}

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources. The change channel
// is closed once the event loop has exited. Calling Stop again is a no-op.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// loop collects events and flushes them once the debounce timer fires.
func (w *Watcher) loop() {
	defer close(w.onChange)

	var (
		timer    *time.Timer
		modified = map[string]struct{}{}
		removed  = map[string]struct{}{}
	)

	timerC := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.record(event, modified, removed) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC():
			timer = nil
			if len(modified) == 0 && len(removed) == 0 {
				continue
			}
			change := Change{Modified: sortedKeys(modified), Removed: sortedKeys(removed)}
			clear(modified)
			clear(removed)
			log.Debug(log.CatWatcher, "change batch", "modified", len(change.Modified), "removed", len(change.Removed))

			select {
			case w.onChange <- change:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "fsnotify error", err, "root", w.root)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// record folds one event into the pending sets and reports whether it was relevant.
func (w *Watcher) record(event fsnotify.Event, modified, removed map[string]struct{}) bool {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.excluded(event.Name) {
				if err := w.fsWatcher.Add(event.Name); err != nil {
					log.ErrorErr(log.CatWatcher, "watching new directory", err, "path", event.Name)
				}
			}
			return false
		}
	}

	if !w.Relevant(event.Name) {
		return false
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(modified, event.Name)
		removed[event.Name] = struct{}{}
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		delete(removed, event.Name)
		modified[event.Name] = struct{}{}
	default:
		return false
	}
	return true
}

// Relevant reports whether path has a watched extension and is not excluded.
func (w *Watcher) Relevant(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(w.extensions, ext) && !w.excluded(path)
}

func (w *Watcher) excluded(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
