// Package watcher reports file system changes below workspaces and
// configuration directories.
//
// The project manager watches the workspace tree to invalidate its root
// file scan; the configuration watches the directories of its files to
// reload them. Both consume events through Run.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Errors returned by watchers.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrPathNotExist    = errors.New("path does not exist")
)

// DefaultSkipDirs are directory names a tree watch does not descend into,
// besides hidden directories. They hold build output, not sources.
var DefaultSkipDirs = []string{"node_modules", "_minted", "build"}

// Op is a set of file system operations.
type Op uint8

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "create"},
	{OpWrite, "write"},
	{OpRemove, "remove"},
	{OpRename, "rename"},
}

func (op Op) String() string {
	var parts []string
	for _, n := range opNames {
		if op.Has(n.op) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Has reports whether op includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is one change to a file or directory.
type Event struct {
	Path string
	Op   Op
}

// HasExt reports whether the event path has one of exts, ignoring case.
func (e Event) HasExt(exts ...string) bool {
	ext := filepath.Ext(e.Path)
	for _, want := range exts {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// Watcher delivers change events for watched directories.
type Watcher interface {
	// Watch watches the entries of a single directory.
	Watch(dir string) error

	// WatchTree watches root and every directory below it that is not
	// skipped. Directories created later are watched as they appear.
	WatchTree(root string) error

	// Events is closed when the watcher is closed.
	Events() <-chan Event
	Errors() <-chan error

	Close() error
}

// Run calls onEvent and onError for everything w delivers until ctx is
// done or w is closed. onError may be nil.
func Run(ctx context.Context, w Watcher, onEvent func(Event), onError func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			onEvent(ev)
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
