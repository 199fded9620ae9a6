package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

const defaultBufferSize = 64

// Option configures an FSNotifyWatcher.
type Option func(*FSNotifyWatcher)

// WithBufferSize sets the capacity of the event and error channels.
func WithBufferSize(n int) Option {
	return func(w *FSNotifyWatcher) {
		if n > 0 {
			w.bufSize = n
		}
	}
}

// WithSkipDirs replaces DefaultSkipDirs. Hidden directories are always
// skipped by tree watches.
func WithSkipDirs(names ...string) Option {
	return func(w *FSNotifyWatcher) {
		w.skipDirs = names
	}
}

// WithFilter drops events for which keep returns false.
func WithFilter(keep func(Event) bool) Option {
	return func(w *FSNotifyWatcher) {
		w.filter = keep
	}
}

// Stats counts what a watcher has seen.
type Stats struct {
	Dirs      int
	Delivered int64
	Dropped   int64
}

// FSNotifyWatcher is a Watcher backed by fsnotify.
type FSNotifyWatcher struct {
	fsw *fsnotify.Watcher

	bufSize  int
	skipDirs []string
	filter   func(Event) bool

	mu     sync.Mutex
	dirs   map[string]bool // value: added by a tree watch
	closed bool

	events chan Event
	errs   chan error
	done   chan struct{}
	wg     sync.WaitGroup

	delivered atomic.Int64
	dropped   atomic.Int64
}

var _ Watcher = (*FSNotifyWatcher)(nil)

// NewFSNotifyWatcher starts an fsnotify watcher with no watched paths.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	w := &FSNotifyWatcher{
		bufSize:  defaultBufferSize,
		skipDirs: DefaultSkipDirs,
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsw = fsw
	w.events = make(chan Event, w.bufSize)
	w.errs = make(chan error, w.bufSize)

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch watches the entries of dir.
func (w *FSNotifyWatcher) Watch(dir string) error {
	abs, err := statDir(dir)
	if err != nil {
		return err
	}
	return w.add(abs, false)
}

// WatchTree watches root and the directories below it.
func (w *FSNotifyWatcher) WatchTree(root string) error {
	abs, err := statDir(root)
	if err != nil {
		return err
	}
	if err := w.add(abs, true); err != nil {
		return err
	}
	return w.addBelow(abs)
}

// addBelow watches the subdirectories of dir. Unreadable directories and
// directories that are already watched are passed over.
func (w *FSNotifyWatcher) addBelow(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || p == dir {
			return nil
		}
		if w.skip(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.add(p, true); err != nil {
			if errors.Is(err, ErrWatcherClosed) {
				return err
			}
			if !errors.Is(err, ErrAlreadyWatching) {
				w.sendError(err)
			}
		}
		return nil
	})
}

func (w *FSNotifyWatcher) add(dir string, tree bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.dirs[dir]; ok {
		return ErrAlreadyWatching
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = tree
	return nil
}

func (w *FSNotifyWatcher) skip(name string) bool {
	return strings.HasPrefix(name, ".") || slices.Contains(w.skipDirs, name)
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errs
}

// Watching reports whether dir is watched.
func (w *FSNotifyWatcher) Watching(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.dirs[abs]
	return ok
}

// Stats returns the watcher counters.
func (w *FSNotifyWatcher) Stats() Stats {
	w.mu.Lock()
	n := len(w.dirs)
	w.mu.Unlock()
	return Stats{Dirs: n, Delivered: w.delivered.Load(), Dropped: w.dropped.Load()}
}

// Close stops the watcher and closes its channels. It is safe to call more
// than once.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	close(w.events)
	close(w.errs)
	return err
}

func (w *FSNotifyWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *FSNotifyWatcher) handle(fe fsnotify.Event) {
	op := convertOp(fe.Op)
	if op == 0 {
		return
	}

	if op.Has(OpCreate) && w.inTree(filepath.Dir(fe.Name)) && !w.skip(filepath.Base(fe.Name)) {
		if info, err := os.Stat(fe.Name); err == nil && info.IsDir() {
			if err := w.add(fe.Name, true); err == nil {
				_ = w.addBelow(fe.Name)
			}
		}
	}

	ev := Event{Path: fe.Name, Op: op}
	if w.filter != nil && !w.filter(ev) {
		return
	}
	select {
	case w.events <- ev:
		w.delivered.Add(1)
	default:
		w.dropped.Add(1)
	}
}

// inTree reports whether dir was added by a tree watch.
func (w *FSNotifyWatcher) inTree(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirs[dir]
}

func (w *FSNotifyWatcher) sendError(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

// convertOp maps fsnotify operations. Chmod alone is not a change.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}

func statDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrPathNotExist
		}
		return "", err
	}
	if !info.IsDir() {
		return "", &fs.PathError{Op: "watch", Path: abs, Err: errors.New("not a directory")}
	}
	return abs, nil
}
