// Package loader reads configuration layers for enquote.
//
// Each loader turns one source (a TOML or YAML file, a VS Code workspace
// settings.json, or the process environment) into a nested map keyed by
// setting path segments. Sources that do not exist load as nil without
// error so that optional layers can be stacked unconditionally.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/dshills/enquote/internal/project/vfs"
)

// Loader is the interface for configuration loaders.
type Loader interface {
	// Load reads configuration from the source and returns a map.
	// Returns nil, nil if the source doesn't exist (not an error).
	Load() (map[string]any, error)
}

// FileLoader is implemented by loaders backed by a single file.
type FileLoader interface {
	Loader
	// Path returns the file the loader reads.
	Path() string
}

// ForFile returns a loader for path chosen by its extension.
func ForFile(fsys vfs.VFS, path string) (FileLoader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return NewTOMLLoader(fsys, path), nil
	case ".yaml", ".yml":
		return NewYAMLLoader(fsys, path), nil
	case ".json":
		return NewVSCodeLoader(fsys, path), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
}

// readOptional reads path, mapping a missing file to nil, nil.
func readOptional(fsys vfs.VFS, path string) ([]byte, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return data, nil
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
