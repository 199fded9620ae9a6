package config

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/project/watcher"
)

// Watch reloads the configuration whenever one of its files changes.
// It watches the directories holding Files so that files created after
// startup are picked up. A directory that does not exist yet, such as the
// workspace .vscode, is watched through its parent and armed once it is
// created. Watch blocks until ctx is cancelled or w is closed.
func (c *Config) Watch(ctx context.Context, w watcher.Watcher) error {
	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range c.Files() {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	// pending holds missing directories, watched through their parent.
	pending := make(map[string]bool)
	for dir := range dirs {
		err := watchDir(w, dir)
		if errors.Is(err, watcher.ErrPathNotExist) {
			pending[dir] = true
			err = watchDir(w, filepath.Dir(dir))
			if errors.Is(err, watcher.ErrPathNotExist) {
				c.log.WithField("dir", dir).Debug("Configuration directory missing; not watched")
				continue
			}
		}
		if err != nil {
			return err
		}
	}

	watcher.Run(ctx, w, func(ev watcher.Event) {
		path := filepath.Clean(ev.Path)
		switch {
		case files[path]:
			c.handleFileChange(ctx, path)
		case pending[path] && ev.Op.Has(watcher.OpCreate):
			if err := watchDir(w, path); err != nil {
				c.log.WithError(err).WithField("dir", path).Warn("Watching configuration directory failed")
				return
			}
			delete(pending, path)
			c.log.WithField("dir", path).Debug("Watching new configuration directory")
			// Files may have been written before the watch was armed.
			c.handleFileChange(ctx, path)
		}
	}, func(err error) {
		c.log.WithError(err).Warn("Configuration watcher error")
	})
	return ctx.Err()
}

// watchDir watches dir, treating an existing watch as success.
func watchDir(w watcher.Watcher, dir string) error {
	err := w.Watch(dir)
	if errors.Is(err, watcher.ErrAlreadyWatching) {
		return nil
	}
	return err
}

// handleFileChange reloads after a configuration file changed and publishes
// config.reloaded with the outcome.
func (c *Config) handleFileChange(ctx context.Context, path string) {
	err := c.Reload(ctx)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Error("Configuration reload failed")
	} else {
		c.log.WithField("path", path).Info("Configuration reloaded")
	}

	if c.publisher == nil {
		return
	}
	ev := event.NewEvent(events.TopicConfigReloaded, events.ConfigReloaded{Path: path, Error: err}, "config")
	if perr := c.publisher.Publish(ctx, ev); perr != nil {
		c.log.WithError(perr).Warn("Publishing config.reloaded failed")
	}
}
