package assets

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/gfxhal/engine/core"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to
// settle before reporting it.
const DefaultDebounce = 200 * time.Millisecond

// ShaderWatcher watches shader source trees and reports the files that
// changed. Editors tend to write a file several times on save, so changes
// are collected until no event arrived for the debounce period and then
// handed to onChange in one sorted batch.
type ShaderWatcher struct {
	exts     []string
	debounce time.Duration
	onChange func(files []string)

	mutex    sync.Mutex
	pending  map[string]struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewShaderWatcher(exts []string, debounce time.Duration, onChange func(files []string)) (*ShaderWatcher, error) {
	if onChange == nil {
		return nil, core.NewError(core.KindUsageViolation, "NewShaderWatcher", "no change handler")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, core.WrapError(core.KindIOFailure, "NewShaderWatcher", err, "starting file watcher")
	}
	return &ShaderWatcher{
		exts:     exts,
		debounce: debounce,
		onChange: onChange,
		pending:  make(map[string]struct{}),
		fsnotify: fsWatch,
	}, nil
}

// AddRecursive starts watching the named directory and all sub-directories.
func (w *ShaderWatcher) AddRecursive(root string) error {
	w.mutex.Lock()
	closed := w.isClosed
	w.mutex.Unlock()
	if closed {
		return core.NewError(core.KindUsageViolation, "AddRecursive", "watcher already closed")
	}
	return w.watchRecursive(root, false)
}

// RemoveRecursive stops watching the named directory and all sub-directories.
func (w *ShaderWatcher) RemoveRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		return w.fsnotify.Remove(path)
	})
}

// WatchList returns the directories currently watched.
func (w *ShaderWatcher) WatchList() []string {
	list := w.fsnotify.WatchList()
	sort.Strings(list)
	return list
}

// Run dispatches file events until ctx is cancelled or the watcher is
// closed. onChange is called from Run's goroutine.
func (w *ShaderWatcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(e) {
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
			fire = timer.C

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return nil
			}
			core.LogError("file watcher: %v", err)

		case <-fire:
			fire = nil
			if files := w.flush(); len(files) > 0 {
				w.onChange(files)
			}

		case <-ctx.Done():
			return w.Close()
		}
	}
}

func (w *ShaderWatcher) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.isClosed {
		return nil
	}
	w.isClosed = true
	return w.fsnotify.Close()
}

// handleEvent reports whether e queued a source file.
func (w *ShaderWatcher) handleEvent(e fsnotify.Event) bool {
	if e.Has(fsnotify.Create) {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			// files may land in the new directory before its watch is added
			if err := w.watchRecursive(e.Name, true); err != nil {
				core.LogWarn("watching %s: %v", e.Name, err)
			}
			return w.hasPending()
		}
	}
	// A removed path cannot be stat'ed; try to drop it from the watch list
	// in case it was a directory.
	if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
		_ = w.fsnotify.Remove(e.Name)
		return false
	}
	if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) {
		return w.queue(e.Name)
	}
	return false
}

// watchRecursive adds root and every directory below it. With queueFiles
// the sources already present are queued as changes.
func (w *ShaderWatcher) watchRecursive(root string, queueFiles bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// vanished while walking
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			if queueFiles {
				w.queue(path)
			}
			return nil
		}
		core.LogDebug("watching %s", path)
		return w.fsnotify.Add(path)
	})
}

func (w *ShaderWatcher) queue(path string) bool {
	if !w.isSource(path) {
		return false
	}
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.pending[filepath.Clean(path)] = struct{}{}
	return true
}

func (w *ShaderWatcher) hasPending() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return len(w.pending) > 0
}

func (w *ShaderWatcher) flush() []string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	files := make([]string, 0, len(w.pending))
	for f := range w.pending {
		files = append(files, f)
	}
	w.pending = make(map[string]struct{})
	sort.Strings(files)
	return files
}

func (w *ShaderWatcher) isSource(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.exts {
		if e == ext {
			return true
		}
	}
	return false
}
