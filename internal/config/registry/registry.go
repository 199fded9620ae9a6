package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrSettingAlreadyRegistered is returned when attempting to register a duplicate setting.
var ErrSettingAlreadyRegistered = errors.New("setting already registered")

// Setting paths known to enquote.
const (
	EnquoteActive    = "enquote.active"
	LatexRootFile    = "latex.rootFile"
	LatexSearchDepth = "latex.searchDepth"
	LoggingLevel     = "logging.level"
	LoggingFormat    = "logging.format"
	LoggingFile      = "logging.file"
)

// Values of enquote.active.
const (
	ModeAuto  = "auto"
	ModeTrue  = "true"
	ModeFalse = "false"
)

// DefaultSearchDepth is the default of latex.searchDepth.
const DefaultSearchDepth = 3

// Registry maintains all known settings definitions.
type Registry struct {
	mu       sync.RWMutex
	settings map[string]*Setting
}

// New creates a new settings registry.
func New() *Registry {
	return &Registry{
		settings: make(map[string]*Setting),
	}
}

// NewWithDefaults creates a registry with built-in default settings.
func NewWithDefaults() *Registry {
	r := New()
	r.RegisterDefaults()
	return r
}

// Register adds a setting definition to the registry.
// Returns an error if a setting with the same path already exists.
func (r *Registry) Register(setting Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.settings[setting.Path]; exists {
		return fmt.Errorf("%w: %s", ErrSettingAlreadyRegistered, setting.Path)
	}

	s := setting
	r.settings[setting.Path] = &s
	return nil
}

// MustRegister registers a setting and panics on error.
func (r *Registry) MustRegister(setting Setting) {
	if err := r.Register(setting); err != nil {
		panic(err)
	}
}

// Get returns the setting definition for the given path.
// Returns nil if the setting is not registered.
func (r *Registry) Get(path string) *Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings[path]
}

// Has checks if a setting is registered.
func (r *Registry) Has(path string) bool {
	return r.Get(path) != nil
}

// All returns all registered settings sorted by path.
func (r *Registry) All() []*Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Setting, 0, len(r.settings))
	for _, s := range r.settings {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result
}

// Defaults returns a map of all default values keyed by path.
func (r *Registry) Defaults() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]any, len(r.settings))
	for path, s := range r.settings {
		if s.Default != nil {
			result[path] = s.Default
		}
	}
	return result
}

// Coerce converts value to the registered type of path.
// Unknown paths are returned unchanged.
func (r *Registry) Coerce(path string, value any) any {
	if s := r.Get(path); s != nil {
		return s.Coerce(value)
	}
	return value
}

// Validate checks if a value is valid for a setting.
// Unknown settings are accepted.
func (r *Registry) Validate(path string, value any) error {
	if s := r.Get(path); s != nil {
		return s.Validate(value)
	}
	return nil
}

// RegisterDefaults registers all built-in enquote settings.
func (r *Registry) RegisterDefaults() {
	r.MustRegister(Setting{
		Path:        EnquoteActive,
		Type:        TypeEnum,
		Default:     ModeAuto,
		Enum:        []string{ModeAuto, ModeTrue, ModeFalse},
		Description: `Replace a typed " with \enquote{ or }: always ("true"), never ("false"), or when the root file loads csquotes ("auto").`,
	})
	r.MustRegister(Setting{
		Path:        LatexRootFile,
		Type:        TypeString,
		Default:     "",
		Description: "Root file of the LaTeX project, relative to the workspace. Empty means detect.",
	})
	r.MustRegister(Setting{
		Path:        LatexSearchDepth,
		Type:        TypeInt,
		Default:     DefaultSearchDepth,
		Minimum:     IntValue(0),
		Maximum:     IntValue(16),
		Description: "Directory depth searched for a root file when none is configured.",
	})
	r.MustRegister(Setting{
		Path:        LoggingLevel,
		Type:        TypeEnum,
		Default:     "info",
		Enum:        []string{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"},
		Description: "Minimum log level.",
	})
	r.MustRegister(Setting{
		Path:        LoggingFormat,
		Type:        TypeEnum,
		Default:     "text",
		Enum:        []string{"text", "json"},
		Description: "Log output format.",
	})
	r.MustRegister(Setting{
		Path:        LoggingFile,
		Type:        TypeString,
		Default:     "",
		Description: "Write logs to this file instead of stderr.",
	})
}
