package watcher

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// ErrNoRoots is returned when none of the configured roots could be watched.
var ErrNoRoots = errors.New("no watchable roots")

// Options configures a Watcher.
type Options struct {
	// Roots are watched recursively. A file root watches its parent directory.
	Roots []string

	// Filter selects which changed paths are reported. Nil accepts everything.
	Filter func(path string) bool

	Debounce time.Duration
}

// Watcher reports batches of changed files under a set of roots after a
// quiet period. While paused it keeps collecting changes and reports them
// on Resume.
type Watcher struct {
	fsw      *fsnotify.Watcher
	filter   func(path string) bool
	debounce time.Duration
	callback func(files []string)
	ctx      context.Context
	cancel   context.CancelFunc

	paused   bool
	pausedMu sync.RWMutex

	pending   map[string]struct{}
	pendingMu sync.Mutex

	timer   *time.Timer
	timerMu sync.Mutex

	stopOnce sync.Once
	doneCh   chan struct{}
}

// New creates a Watcher and registers every directory under opts.Roots.
// Missing roots are skipped; it fails only if nothing could be watched.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fsw:      fsw,
		filter:   opts.Filter,
		debounce: debounce,
		pending:  make(map[string]struct{}),
		doneCh:   make(chan struct{}),
	}

	watched := 0
	for _, root := range opts.Roots {
		info, err := os.Stat(root)
		if err != nil {
			log.Printf("Warning: not watching %s: %v\n", root, err)
			continue
		}
		if !info.IsDir() {
			root = filepath.Dir(root)
		}
		if err := w.addRecursive(root); err != nil {
			log.Printf("Warning: not watching %s: %v\n", root, err)
			continue
		}
		watched++
	}

	if watched == 0 {
		fsw.Close()
		return nil, ErrNoRoots
	}
	return w, nil
}

// Start begins delivering batches to callback. The callback runs on the
// watcher goroutine, so a slow callback delays event processing.
func (w *Watcher) Start(ctx context.Context, callback func(files []string)) error {
	if callback == nil {
		return errors.New("watcher callback is required")
	}

	w.callback = callback
	w.ctx, w.cancel = context.WithCancel(ctx)

	go w.loop()
	return nil
}

// Stop ends watching and releases the underlying fsnotify watcher.
// Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.doneCh
		} else {
			close(w.doneCh)
		}
		err = w.fsw.Close()
	})
	return err
}

// Pause holds back callbacks; changes keep accumulating.
func (w *Watcher) Pause() {
	w.pausedMu.Lock()
	defer w.pausedMu.Unlock()
	w.paused = true
}

// Resume re-enables callbacks and flushes anything collected while paused.
func (w *Watcher) Resume() {
	w.pausedMu.Lock()
	wasPaused := w.paused
	w.paused = false
	w.pausedMu.Unlock()

	if wasPaused {
		w.flush()
	}
}

func (w *Watcher) loop() {
	defer close(w.doneCh)

	fire := make(chan struct{}, 1)

	for {
		select {
		case <-w.ctx.Done():
			w.stopTimer()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						log.Printf("Warning: failed to watch new directory %s: %v\n", event.Name, err)
					}
					continue
				}
			}

			if !w.relevant(event) {
				continue
			}

			w.pendingMu.Lock()
			w.pending[event.Name] = struct{}{}
			w.pendingMu.Unlock()

			w.resetTimer(fire)

		case <-fire:
			w.pausedMu.RLock()
			paused := w.paused
			w.pausedMu.RUnlock()
			if !paused {
				w.flush()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("Warning: file watcher error: %v\n", err)
		}
	}
}

// flush hands the pending batch, sorted, to the callback.
func (w *Watcher) flush() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	files := make([]string, 0, len(w.pending))
	for path := range w.pending {
		files = append(files, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	sort.Strings(files)
	if w.callback != nil {
		w.callback(files)
	}
}

func (w *Watcher) resetTimer(fire chan struct{}) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// relevant keeps writes, creations, removals and renames that pass the filter.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return w.filter == nil || w.filter(event.Name)
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Printf("Warning: error accessing %s: %v\n", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			log.Printf("Warning: failed to watch directory %s: %v\n", path, err)
		}
		return nil
	})
}
