package lua

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/enquote/internal/config/registry"
	"github.com/dshills/enquote/internal/enquote"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/logging"
	"github.com/dshills/enquote/internal/project/vfs"
)

// ModuleName is the name scripts use to reach the API.
const ModuleName = "enquote"

// Script file names.
const (
	UserScript      = "init.lua"
	WorkspaceScript = ".enquote.lua"
)

// Controller exposes the substitutor state to scripts.
type Controller interface {
	Mode() string
	Detected() bool
}

// ModeSetter writes runtime configuration overrides.
type ModeSetter interface {
	Set(ctx context.Context, path string, value any) error
}

// Runtime runs user scripts against the enquote module.
type Runtime struct {
	state    *State
	ctrl     Controller
	settings ModeSetter
	fs       vfs.VFS
	timeout  time.Duration
	log      *logrus.Entry

	mu         sync.Mutex
	onApplied  []*lua.LFunction
	onDetected []*lua.LFunction
	subs       []*event.Subscription
	bus        *event.Bus
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithController sets the substitutor queried by enquote.mode and
// enquote.detected.
func WithController(c Controller) RuntimeOption {
	return func(r *Runtime) { r.ctrl = c }
}

// WithModeSetter sets where enquote.set_mode writes.
func WithModeSetter(s ModeSetter) RuntimeOption {
	return func(r *Runtime) { r.settings = s }
}

// WithFS sets the file system scripts are read from.
func WithFS(fs vfs.VFS) RuntimeOption {
	return func(r *Runtime) { r.fs = fs }
}

// WithTimeout sets the execution timeout for scripts and callbacks.
func WithTimeout(d time.Duration) RuntimeOption {
	return func(r *Runtime) { r.timeout = d }
}

// NewRuntime creates a Runtime with a fresh sandboxed state.
func NewRuntime(opts ...RuntimeOption) (*Runtime, error) {
	r := &Runtime{
		fs:  vfs.NewOSFS(),
		log: logging.NewLogger("lua"),
	}
	for _, opt := range opts {
		opt(r)
	}

	state, err := NewState(
		WithExecutionTimeout(r.timeout),
		WithModule(ModuleName, r.loader),
	)
	if err != nil {
		return nil, err
	}
	r.state = state
	return r, nil
}

// State returns the underlying Lua state.
func (r *Runtime) State() *State {
	return r.state
}

// ScriptPaths returns the candidate script locations: the user script in
// the configuration directory, then the workspace script.
func ScriptPaths(userConfigDir, workspace string) []string {
	var paths []string
	if userConfigDir != "" {
		paths = append(paths, filepath.Join(userConfigDir, UserScript))
	}
	if workspace != "" {
		paths = append(paths, filepath.Join(workspace, WorkspaceScript))
	}
	return paths
}

// LoadFile runs the script at path.
func (r *Runtime) LoadFile(ctx context.Context, path string) error {
	code, err := r.fs.ReadFile(path)
	if err != nil {
		return err
	}
	if err := r.state.DoString(ctx, "@"+path, string(code)); err != nil {
		return &ScriptError{Path: path, Err: err}
	}
	r.log.WithField("script", path).Info("Loaded script")
	return nil
}

// LoadScripts runs every existing script in paths, in order. Missing files
// are skipped. It returns the scripts that ran and the joined errors of
// the ones that failed.
func (r *Runtime) LoadScripts(ctx context.Context, paths ...string) ([]string, error) {
	var loaded []string
	var errs []error
	for _, p := range paths {
		if !r.fs.Exists(p) {
			continue
		}
		if err := r.LoadFile(ctx, p); err != nil {
			r.log.WithError(err).WithField("script", p).Error("Script failed")
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded, errors.Join(errs...)
}

// Subscribe delivers enquote.applied and enquote.package.detected events
// from bus to the registered script callbacks.
func (r *Runtime) Subscribe(bus *event.Bus) error {
	applied, err := bus.Subscribe(events.TopicEnquoteApplied,
		event.Typed(func(ctx context.Context, ev event.Event[events.EnquoteApplied]) error {
			p := ev.Payload
			return r.invoke(ctx, r.callbacks(&r.onApplied), p.Replacement, p.Position.Line, p.Position.Column)
		}),
		event.WithPriority(event.PriorityLow),
	)
	if err != nil {
		return err
	}
	detected, err := bus.Subscribe(events.TopicEnquotePackageDetected,
		event.Typed(func(ctx context.Context, ev event.Event[events.EnquotePackageDetected]) error {
			return r.invoke(ctx, r.callbacks(&r.onDetected), ev.Payload.RootFile)
		}),
		event.WithPriority(event.PriorityLow),
	)
	if err != nil {
		_ = bus.Unsubscribe(applied)
		return err
	}

	r.mu.Lock()
	r.bus = bus
	r.subs = append(r.subs, applied, detected)
	r.mu.Unlock()
	return nil
}

func (r *Runtime) callbacks(list *[]*lua.LFunction) []*lua.LFunction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*lua.LFunction(nil), (*list)...)
}

func (r *Runtime) invoke(ctx context.Context, fns []*lua.LFunction, args ...any) error {
	var errs []error
	for _, fn := range fns {
		if _, err := r.state.Call(ctx, fn, args...); err != nil {
			errs = append(errs, fmt.Errorf("lua callback: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close unsubscribes from the bus and closes the Lua state.
func (r *Runtime) Close() {
	r.mu.Lock()
	bus, subs := r.bus, r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		_ = bus.Unsubscribe(sub)
	}
	r.state.Close()
}

// loader builds the enquote module table.
func (r *Runtime) loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"mode":        r.luaMode,
		"set_mode":    r.luaSetMode,
		"detected":    r.luaDetected,
		"on_applied":  r.luaOnApplied,
		"on_detected": r.luaOnDetected,
		"log":         r.luaLog,
	})
	L.SetField(mod, "OPENING", lua.LString(enquote.Opening))
	L.SetField(mod, "CLOSING", lua.LString(enquote.Closing))
	L.Push(mod)
	return 1
}

func (r *Runtime) luaMode(L *lua.LState) int {
	mode := registry.ModeAuto
	if r.ctrl != nil {
		mode = r.ctrl.Mode()
	}
	L.Push(lua.LString(mode))
	return 1
}

func (r *Runtime) luaSetMode(L *lua.LState) int {
	if r.settings == nil {
		L.RaiseError("set_mode: configuration is read-only")
		return 0
	}
	value := ToGoValue(L.CheckAny(1))
	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.settings.Set(ctx, registry.EnquoteActive, value); err != nil {
		L.RaiseError("set_mode: %s", err.Error())
		return 0
	}
	return 0
}

func (r *Runtime) luaDetected(L *lua.LState) int {
	L.Push(lua.LBool(r.ctrl != nil && r.ctrl.Detected()))
	return 1
}

func (r *Runtime) luaOnApplied(L *lua.LState) int {
	fn := L.CheckFunction(1)
	r.mu.Lock()
	r.onApplied = append(r.onApplied, fn)
	r.mu.Unlock()
	return 0
}

func (r *Runtime) luaOnDetected(L *lua.LState) int {
	fn := L.CheckFunction(1)
	r.mu.Lock()
	r.onDetected = append(r.onDetected, fn)
	r.mu.Unlock()
	return 0
}

func (r *Runtime) luaLog(L *lua.LState) int {
	r.log.WithField("source", "script").Info(L.CheckString(1))
	return 0
}

// ScriptError reports a failing user script.
type ScriptError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}
