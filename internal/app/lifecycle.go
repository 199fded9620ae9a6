package app

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/enquote/internal/project/watcher"
)

// Watch reloads configuration files and invalidates the cached root file
// scan while ctx is live. Each concern gets its own file system watcher.
// Without a workspace only the configuration files are watched.
func (app *Application) Watch(ctx context.Context) error {
	if app.closed.Load() {
		return ErrClosed
	}

	cfgWatcher, err := watcher.NewFSNotifyWatcher()
	if err != nil {
		return &InitError{Component: "config watcher", Err: err}
	}
	defer cfgWatcher.Close()

	var wsWatcher *watcher.FSNotifyWatcher
	if app.project.Workspace() != "" {
		wsWatcher, err = watcher.NewFSNotifyWatcher()
		if err != nil {
			return &InitError{Component: "workspace watcher", Err: err}
		}
		defer wsWatcher.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.config.Watch(gctx, cfgWatcher)
	})
	if wsWatcher != nil {
		g.Go(func() error {
			return app.project.Watch(gctx, wsWatcher)
		})
	}

	app.log.Debug("Watching configuration and workspace")
	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
