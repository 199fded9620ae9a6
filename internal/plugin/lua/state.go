package lua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds every script run and callback.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps gopher-lua with sandboxing and serialized access.
//
// gopher-lua's LState is not goroutine-safe. Every method locks the State,
// so callbacks may be invoked from any goroutine. Go functions registered
// in the state run while the lock is held and must not call back into it.
type State struct {
	L *lua.LState

	mu               sync.Mutex
	executionTimeout time.Duration
	preloaded        []string
	closed           bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the timeout for script runs and callbacks.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		if d > 0 {
			s.executionTimeout = d
		}
	}
}

// WithModule preloads a module that scripts can require by name. The
// module is also assigned to the global of the same name.
func WithModule(name string, loader lua.LGFunction) StateOption {
	return func(s *State) {
		s.L.PreloadModule(name, loader)
		s.preloaded = append(s.preloaded, name)
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	s := &State{
		L:                L,
		executionTimeout: DefaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	installSandbox(L, s.preloaded...)

	for _, name := range s.preloaded {
		if err := s.requireGlobal(name); err != nil {
			L.Close()
			return nil, fmt.Errorf("loading module %s: %w", name, err)
		}
	}
	return s, nil
}

// requireGlobal loads a preloaded module into the global namespace.
func (s *State) requireGlobal(name string) error {
	err := s.L.CallByParam(lua.P{
		Fn:      s.L.GetGlobal("require"),
		NRet:    1,
		Protect: true,
	}, lua.LString(name))
	if err != nil {
		return err
	}
	mod := s.L.Get(-1)
	s.L.Pop(1)
	s.L.SetGlobal(name, mod)
	return nil
}

// DoString executes code. name is used in error messages.
func (s *State) DoString(ctx context.Context, name, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	fn, err := s.L.Load(strings.NewReader(code), name)
	if err != nil {
		return err
	}
	return s.run(ctx, func() error {
		s.L.Push(fn)
		return s.L.PCall(0, lua.MultRet, nil)
	})
}

// Call calls fn with args converted by ToLuaValue and returns its results.
func (s *State) Call(ctx context.Context, fn *lua.LFunction, args ...any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	top := s.L.GetTop()
	err := s.run(ctx, func() error {
		s.L.Push(fn)
		for _, a := range args {
			s.L.Push(ToLuaValue(s.L, a))
		}
		return s.L.PCall(len(args), lua.MultRet, nil)
	})
	if err != nil {
		s.L.SetTop(top)
		return nil, err
	}

	n := s.L.GetTop() - top
	results := make([]any, n)
	for i := 0; i < n; i++ {
		results[i] = ToGoValue(s.L.Get(top + i + 1))
	}
	s.L.SetTop(top)
	return results, nil
}

// run executes fn under the execution timeout with panic recovery.
// Caller holds the lock.
func (s *State) run(ctx context.Context, fn func() error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.executionTimeout)
	defer cancel()

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	err = fn()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
	}
	return err
}

// GetGlobal returns a global variable converted to Go.
func (s *State) GetGlobal(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	return ToGoValue(s.L.GetGlobal(name))
}

// Close closes the Lua state.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.L.Close()
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
