// Package app wires the enquote components together and manages the open
// documents of a session.
package app

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/enquote/internal/config"
	"github.com/dshills/enquote/internal/engine"
	"github.com/dshills/enquote/internal/enquote"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/logging"
	"github.com/dshills/enquote/internal/plugin/lua"
	"github.com/dshills/enquote/internal/project"
	"github.com/dshills/enquote/internal/project/vfs"
)

// Application is the central coordinator for all enquote components.
type Application struct {
	bus         *event.Bus
	config      *config.Config
	documents   *DocumentManager
	project     *project.Manager
	substitutor *enquote.Substitutor
	scripts     *lua.Runtime

	fs   vfs.VFS
	subs []*event.Subscription
	errs ErrorList
	log  *logrus.Entry

	closeOnce sync.Once
	closed    atomic.Bool

	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigFile replaces the user configuration file.
	ConfigFile string

	// UserConfigDir overrides the user configuration directory.
	UserConfigDir string

	// WorkspacePath is the project directory. Empty disables the
	// workspace configuration layers and the workspace scan.
	WorkspacePath string

	// Files are opened on startup; the last one becomes active.
	Files []string

	// Overrides are applied as runtime settings after loading.
	Overrides map[string]any

	// Verbose forces debug logging.
	Verbose bool

	// LogFormat overrides logging.format ("text" or "json").
	LogFormat string

	// LogOutput, when set, receives log output unless logging.file is set.
	LogOutput io.Writer

	// FS is the file system for documents, configuration and scripts.
	// Defaults to the OS file system.
	FS vfs.VFS

	// Environ overrides the environment read by the env layer.
	Environ func() []string

	// DisableScripts skips loading user scripts.
	DisableScripts bool

	// ScriptTimeout bounds each script run and callback.
	ScriptTimeout time.Duration

	// ActiveEditor and ActiveDocument replace the document manager as the
	// source of the active document when the documents live in an external
	// editor.
	ActiveEditor   enquote.ActiveEditorFunc
	ActiveDocument project.ActiveDocumentFunc
}

// New creates an Application and starts its components.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts:      opts,
		fs:        opts.FS,
		documents: NewDocumentManager(),
		log:       logging.NewLogger("app"),
	}
	if app.fs == nil {
		app.fs = vfs.NewOSFS()
	}

	if err := newBootstrapper(app).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Bus returns the event bus.
func (app *Application) Bus() *event.Bus {
	return app.bus
}

// Config returns the configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Documents returns the document manager.
func (app *Application) Documents() *DocumentManager {
	return app.documents
}

// Project returns the root file resolver.
func (app *Application) Project() *project.Manager {
	return app.project
}

// Substitutor returns the quote substitutor.
func (app *Application) Substitutor() *enquote.Substitutor {
	return app.substitutor
}

// Scripts returns the Lua runtime, or nil when scripts are disabled.
func (app *Application) Scripts() *lua.Runtime {
	return app.scripts
}

// FS returns the file system documents are read from.
func (app *Application) FS() vfs.VFS {
	return app.fs
}

// Errors returns the errors reported by event handlers and scripts.
func (app *Application) Errors() []error {
	return app.errs.Errors()
}

// Open opens the file at path and makes it the active document. A file
// that is already open is activated instead.
func (app *Application) Open(ctx context.Context, path string) (*Document, error) {
	if app.closed.Load() {
		return nil, ErrClosed
	}
	abs, err := app.fs.Abs(path)
	if err != nil {
		return nil, &FileError{Op: "open", Path: path, Err: err}
	}
	if doc, ok := app.documents.ByPath(abs); ok {
		return app.Activate(ctx, doc.ID())
	}

	data, err := app.fs.ReadFile(abs)
	if err != nil {
		return nil, &FileError{Op: "open", Path: abs, Err: err}
	}
	eng, err := engine.NewFromReader(bytes.NewReader(data),
		engine.WithPath(abs),
		engine.WithPublisher(app.bus),
	)
	if err != nil {
		return nil, &FileError{Op: "open", Path: abs, Err: err}
	}

	doc := newDocument(eng)
	app.documents.Add(doc)
	app.log.WithFields(logrus.Fields{
		"document": doc.ID(),
		"path":     abs,
	}).Debug("Opened document")
	app.publishActivated(ctx, doc)
	return doc, nil
}

// NewScratch creates an unsaved document holding text and makes it active.
func (app *Application) NewScratch(ctx context.Context, text string) (*Document, error) {
	if app.closed.Load() {
		return nil, ErrClosed
	}
	eng := engine.New(engine.WithContent(text), engine.WithPublisher(app.bus))
	doc := newDocument(eng)
	app.documents.Add(doc)
	app.publishActivated(ctx, doc)
	return doc, nil
}

// Activate makes the document with id the active one.
func (app *Application) Activate(ctx context.Context, id string) (*Document, error) {
	doc, err := app.documents.SetActive(id)
	if err != nil {
		return nil, err
	}
	app.publishActivated(ctx, doc)
	return doc, nil
}

// Active returns the active document, or nil.
func (app *Application) Active() *Document {
	return app.documents.Active()
}

// ActiveEditor returns the active document as the substitutor sees it.
func (app *Application) ActiveEditor() enquote.Editor {
	doc := app.documents.Active()
	if doc == nil {
		return nil
	}
	return doc.Engine
}

// activeProjectDocument returns the active document as the root file
// resolver sees it.
func (app *Application) activeProjectDocument() project.Document {
	doc := app.documents.Active()
	if doc == nil {
		return nil
	}
	return doc.Engine
}

// CloseDocument closes the document with id without saving it.
func (app *Application) CloseDocument(ctx context.Context, id string) error {
	doc, err := app.documents.Remove(id)
	if err != nil {
		return err
	}
	app.publish(ctx, event.NewEvent(events.TopicDocumentClosed, events.DocumentClosed{DocumentID: doc.ID()}, "app"))
	if next := app.documents.Active(); next != nil {
		app.publishActivated(ctx, next)
	}
	return nil
}

// Save writes the document with id back to its file.
func (app *Application) Save(id string) error {
	doc, ok := app.documents.Get(id)
	if !ok {
		return ErrDocumentNotFound
	}
	if doc.IsScratch() {
		return ErrNoFilePath
	}
	if err := app.fs.WriteFile(doc.Path(), []byte(doc.Engine.EncodedText()), 0o644); err != nil {
		return &FileError{Op: "save", Path: doc.Path(), Err: err}
	}
	doc.SetModified(false)
	return nil
}

func (app *Application) publishActivated(ctx context.Context, doc *Document) {
	app.publish(ctx, event.NewEvent(events.TopicDocumentActivated, events.DocumentActivated{
		DocumentID: doc.ID(),
		Path:       doc.Path(),
	}, "app"))
}

func (app *Application) publish(ctx context.Context, ev any) {
	if err := app.bus.Publish(ctx, ev); err != nil {
		app.log.WithError(err).Warn("Publishing event failed")
	}
}

// handleBusError logs a failing event handler and records the error.
func (app *Application) handleBusError(ev any, err error) {
	entry := app.log.WithError(err)
	if tp, ok := ev.(event.TopicProvider); ok {
		entry = entry.WithField("topic", tp.EventTopic().String())
	}
	entry.Error("Event handler failed")
	app.errs.Add(err)
}

// Close stops every component. It is safe to call more than once.
func (app *Application) Close() error {
	app.closeOnce.Do(func() {
		app.closed.Store(true)

		for _, doc := range app.documents.All() {
			_, _ = app.documents.Remove(doc.ID())
		}
		if app.scripts != nil {
			app.scripts.Close()
		}
		for _, sub := range app.subs {
			_ = app.bus.Unsubscribe(sub)
		}
		app.subs = nil
		if app.project != nil {
			app.project.Close()
		}
		if app.bus != nil {
			app.log.WithField("bus", app.bus.Stats().String()).Debug("Closing event bus")
			app.bus.Close()
		}
		app.log.Debug("Application closed")
	})
	return nil
}
