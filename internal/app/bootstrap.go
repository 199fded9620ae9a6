package app

import (
	"context"
	"sort"

	"github.com/dshills/enquote/internal/config"
	"github.com/dshills/enquote/internal/config/loader"
	"github.com/dshills/enquote/internal/enquote"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/logging"
	"github.com/dshills/enquote/internal/plugin/lua"
	"github.com/dshills/enquote/internal/project"
)

// bootstrapper handles component initialization with cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      app.opts,
		initOrder: make([]string, 0, 8),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initEventBus,
		b.initConfig,
		b.initLogging,
		b.initProject,
		b.initSubstitutor,
		b.initScripts,
		b.initDocuments,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	return nil
}

// initEventBus initializes the event bus.
func (b *bootstrapper) initEventBus() error {
	b.app.bus = event.NewBus(event.WithErrorHandler(b.app.handleBusError))
	b.initOrder = append(b.initOrder, "eventBus")
	return nil
}

// initConfig loads the configuration layers and applies overrides.
func (b *bootstrapper) initConfig() error {
	configOpts := []config.Option{
		config.WithFS(b.app.fs),
		config.WithPublisher(b.app.bus),
	}
	if b.opts.UserConfigDir != "" {
		configOpts = append(configOpts, config.WithUserConfigDir(b.opts.UserConfigDir))
	}
	if b.opts.ConfigFile != "" {
		configOpts = append(configOpts, config.WithConfigFile(b.opts.ConfigFile))
	}
	if b.opts.WorkspacePath != "" {
		ws, err := b.app.fs.Abs(b.opts.WorkspacePath)
		if err != nil {
			return &InitError{Component: "config", Err: err}
		}
		configOpts = append(configOpts, config.WithWorkspace(ws))
	}
	if b.opts.Environ != nil {
		configOpts = append(configOpts, config.WithEnvLoader(loader.NewEnvLoaderWithEnviron(loader.EnvPrefix, b.opts.Environ)))
	}

	cfg := config.New(configOpts...)
	if err := cfg.Load(context.Background()); err != nil {
		return &InitError{Component: "config", Err: err}
	}

	keys := make([]string, 0, len(b.opts.Overrides))
	for k := range b.opts.Overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := cfg.Set(context.Background(), k, b.opts.Overrides[k]); err != nil {
			return &InitError{Component: "config", Err: err}
		}
	}

	b.app.config = cfg
	b.initOrder = append(b.initOrder, "config")
	return nil
}

// initLogging applies the logging section, with command line flags taking
// precedence.
func (b *bootstrapper) initLogging() error {
	sections, err := b.app.config.Sections()
	if err != nil {
		return &InitError{Component: "logging", Err: err}
	}
	lc := sections.Logging
	if b.opts.Verbose {
		lc.Level = "debug"
	}
	if b.opts.LogFormat != "" {
		lc.Format = b.opts.LogFormat
	}
	if err := logging.Configure(lc); err != nil {
		return &InitError{Component: "logging", Err: err}
	}
	if b.opts.LogOutput != nil && lc.File == "" {
		logging.SetOutput(b.opts.LogOutput)
	}
	return nil
}

// initProject creates the root file resolver.
func (b *bootstrapper) initProject() error {
	active := b.app.activeProjectDocument
	if b.opts.ActiveDocument != nil {
		active = b.opts.ActiveDocument
	}
	b.app.project = project.NewManager(b.app.config.Workspace(),
		project.WithFS(b.app.fs),
		project.WithSettings(b.app.config),
		project.WithActiveDocument(active),
		project.WithPublisher(b.app.bus),
	)
	b.initOrder = append(b.initOrder, "project")
	return nil
}

// initSubstitutor creates the substitutor and subscribes it to
// document.changed.
func (b *bootstrapper) initSubstitutor() error {
	b.app.substitutor = enquote.New(
		enquote.WithSettings(b.app.config),
		enquote.WithRootFile(b.app.project),
		enquote.WithFileReader(b.app.fs),
		enquote.WithPublisher(b.app.bus),
	)
	active := b.app.ActiveEditor
	if b.opts.ActiveEditor != nil {
		active = b.opts.ActiveEditor
	}
	sub, err := b.app.substitutor.Subscribe(b.app.bus, active)
	if err != nil {
		return &InitError{Component: "substitutor", Err: err}
	}
	b.app.subs = append(b.app.subs, sub)
	return nil
}

// initScripts starts the Lua runtime and runs the user and workspace
// scripts. Failing scripts are logged and recorded but do not stop startup.
func (b *bootstrapper) initScripts() error {
	if b.opts.DisableScripts {
		return nil
	}

	rt, err := lua.NewRuntime(
		lua.WithController(b.app.substitutor),
		lua.WithModeSetter(b.app.config),
		lua.WithFS(b.app.fs),
		lua.WithTimeout(b.opts.ScriptTimeout),
	)
	if err != nil {
		return &InitError{Component: "scripts", Err: err}
	}
	if err := rt.Subscribe(b.app.bus); err != nil {
		rt.Close()
		return &InitError{Component: "scripts", Err: err}
	}
	b.app.scripts = rt
	b.initOrder = append(b.initOrder, "scripts")

	paths := lua.ScriptPaths(b.app.config.UserConfigDir(), b.app.config.Workspace())
	loaded, err := rt.LoadScripts(context.Background(), paths...)
	if err != nil {
		for _, e := range unjoin(err) {
			b.app.errs.Add(e)
		}
	}
	if len(loaded) > 0 {
		b.app.log.WithField("scripts", loaded).Debug("Scripts loaded")
	}
	return nil
}

// initDocuments opens the startup files.
func (b *bootstrapper) initDocuments() error {
	for _, file := range b.opts.Files {
		if _, err := b.app.Open(context.Background(), file); err != nil {
			return err
		}
	}
	return nil
}

// cleanup releases initialized components in reverse order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		switch b.initOrder[i] {
		case "scripts":
			b.app.scripts.Close()
			b.app.scripts = nil
		case "project":
			b.app.project.Close()
		case "eventBus":
			b.app.bus.Close()
		}
	}
	b.app.closed.Store(true)
}

func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
