// Package layer provides configuration layer management.
//
// Each configuration source is loaded into its own layer. Layers are merged
// in priority order so that a higher layer overrides the keys it sets and
// leaves the rest to the layers below.
package layer

import (
	"time"

	"github.com/dshills/enquote/internal/config/loader"
)

// Layer represents a single configuration layer.
type Layer struct {
	// Name identifies the layer (e.g., "user", "workspace", "defaults").
	Name string

	// Priority determines merge order (higher overrides lower).
	Priority int

	// Source indicates where this layer was loaded from.
	Source Source

	// Path is the file path (if loaded from file).
	Path string

	// Data holds the configuration values as a nested map.
	Data map[string]any

	// LoadedAt is when the layer was last (re)loaded.
	LoadedAt time.Time
}

// NewLayer creates a new layer with the standard priority of source.
func NewLayer(name string, source Source, data map[string]any) *Layer {
	if data == nil {
		data = make(map[string]any)
	}
	return &Layer{
		Name:     name,
		Source:   source,
		Priority: source.Priority(),
		Data:     data,
		LoadedAt: time.Now(),
	}
}

// Clone creates a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	c := *l
	c.Data = loader.Clone(l.Data)
	return &c
}

// Source indicates where a configuration layer came from.
type Source uint8

const (
	// SourceDefault represents built-in default configuration.
	SourceDefault Source = iota
	// SourceUser represents the user config ($XDG_CONFIG_HOME/enquote/).
	SourceUser
	// SourceWorkspace represents .enquote.toml or .enquote.yaml in the workspace.
	SourceWorkspace
	// SourceVSCode represents latex-workshop keys in .vscode/settings.json.
	SourceVSCode
	// SourceEnv represents ENQUOTE_* environment variables.
	SourceEnv
	// SourceOverride represents runtime overrides (flags, scripts, editor variables).
	SourceOverride
)

// String returns a human-readable name for the source.
func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceUser:
		return "user"
	case SourceWorkspace:
		return "workspace"
	case SourceVSCode:
		return "vscode"
	case SourceEnv:
		return "env"
	case SourceOverride:
		return "override"
	default:
		return "unknown"
	}
}

// Priority returns the standard merge priority for the source.
func (s Source) Priority() int {
	return int(s) * 100
}
