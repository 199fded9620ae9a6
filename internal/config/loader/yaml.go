package loader

import (
	"errors"

	"gopkg.in/yaml.v3"

	"github.com/dshills/enquote/internal/project/vfs"
)

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct {
	fs   vfs.VFS
	path string
}

// NewYAMLLoader creates a YAML loader for path.
func NewYAMLLoader(fs vfs.VFS, path string) *YAMLLoader {
	return &YAMLLoader{
		fs:   fs,
		path: path,
	}
}

// Path returns the file the loader reads.
func (l *YAMLLoader) Path() string {
	return l.path
}

// Load reads configuration from the configured path.
func (l *YAMLLoader) Load() (map[string]any, error) {
	data, err := readOptional(l.fs, l.path)
	if err != nil || data == nil {
		return nil, err
	}

	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		perr := &ParseError{Path: l.path, Message: err.Error(), Err: err}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
			perr.Message = typeErr.Errors[0]
		}
		return nil, perr
	}
	return normalizeYAML(config), nil
}

// normalizeYAML converts any map[any]any produced for non-string keys
// into map[string]any so that merging treats every section alike.
func normalizeYAML(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeYAMLValue(v)
	}
	return m
}

func normalizeYAMLValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeYAML(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if s, ok := k.(string); ok {
				out[s] = normalizeYAMLValue(inner)
			}
		}
		return out
	case []any:
		for i := range val {
			val[i] = normalizeYAMLValue(val[i])
		}
		return val
	default:
		return v
	}
}
