package loader

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/enquote/internal/project/vfs"
)

// VSCodePrefix is the key prefix LaTeX Workshop uses in settings.json.
const VSCodePrefix = "latex-workshop."

// VSCodeSettingsPath returns the settings.json path for a workspace.
func VSCodeSettingsPath(workspace string) string {
	return filepath.Join(workspace, ".vscode", "settings.json")
}

// VSCodeLoader reads LaTeX Workshop keys from a VS Code settings.json.
//
// Keys are flat and dotted ("latex-workshop.enquote.active"); the prefix is
// stripped and the remainder becomes the setting path. Keys without the
// prefix belong to other extensions and are ignored.
type VSCodeLoader struct {
	fs   vfs.VFS
	path string
}

// NewVSCodeLoader creates a loader for the settings.json at path.
func NewVSCodeLoader(fs vfs.VFS, path string) *VSCodeLoader {
	return &VSCodeLoader{
		fs:   fs,
		path: path,
	}
}

// Path returns the file the loader reads.
func (l *VSCodeLoader) Path() string {
	return l.path
}

// Load reads configuration from the configured path.
func (l *VSCodeLoader) Load() (map[string]any, error) {
	data, err := readOptional(l.fs, l.path)
	if err != nil || data == nil {
		return nil, err
	}

	// settings.json is JSONC: comments and trailing commas are allowed.
	data = pretty.Spec(data)
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Path: l.path, Message: "invalid JSON"}
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &ParseError{Path: l.path, Message: "settings must be a JSON object"}
	}

	config := make(map[string]any)
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if !strings.HasPrefix(name, VSCodePrefix) {
			return true
		}
		SetByPath(config, strings.TrimPrefix(name, VSCodePrefix), value.Value())
		return true
	})
	return config, nil
}

// Set writes key (a setting path without the prefix) into the settings.json,
// preserving every other key and the file's comments. The file and its
// directory are created when missing.
func (l *VSCodeLoader) Set(key string, value any) error {
	data, err := readOptional(l.fs, l.path)
	if err != nil {
		return err
	}

	var updated []byte
	if len(bytes.TrimSpace(data)) == 0 {
		updated, err = sjson.SetBytes([]byte("{}"), escapeKey(VSCodePrefix+key), value)
		updated = pretty.Pretty(updated)
	} else {
		updated, err = setMember(data, VSCodePrefix+key, value)
	}
	if err != nil {
		return fmt.Errorf("updating %s: %w", l.path, err)
	}

	if err := l.fs.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(l.path), err)
	}
	return l.fs.WriteFile(l.path, updated, 0o644)
}

// Get returns the raw value for key (a setting path without the prefix).
func (l *VSCodeLoader) Get(key string) (any, bool, error) {
	data, err := readOptional(l.fs, l.path)
	if err != nil || data == nil {
		return nil, false, err
	}
	res := gjson.GetBytes(pretty.Spec(data), escapeKey(VSCodePrefix+key))
	if !res.Exists() {
		return nil, false, nil
	}
	return res.Value(), true, nil
}

// escapeKey escapes the dots of a flat key so gjson and sjson treat it as
// a single member name.
func escapeKey(key string) string {
	return strings.ReplaceAll(key, ".", `\.`)
}

// setMember sets the top-level member name of a JSONC object to value.
// The edit is spliced into the original bytes: pretty.Spec blanks comments
// and trailing commas without moving anything, so offsets found in the
// cleaned copy are valid in data.
func setMember(data []byte, name string, value any) ([]byte, error) {
	clean := pretty.Spec(data)
	if !gjson.ValidBytes(clean) {
		return nil, errors.New("invalid JSON")
	}
	if !gjson.ParseBytes(clean).IsObject() {
		return nil, errors.New("settings must be a JSON object")
	}

	// Encode the value through sjson so it is written the same way as a
	// fresh file.
	encoded, err := sjson.SetBytes([]byte("{}"), "v", value)
	if err != nil {
		return nil, err
	}
	raw := gjson.GetBytes(encoded, "v").Raw

	if res := gjson.GetBytes(clean, escapeKey(name)); res.Exists() && res.Index > 0 {
		return splice(data, res.Index, res.Index+len(res.Raw), raw), nil
	}

	end := bytes.LastIndexByte(clean, '}')
	last := end - 1
	for last >= 0 && clean[last] <= ' ' {
		last--
	}

	member := strconv.Quote(name) + ": " + raw
	if clean[last] == '{' {
		return splice(data, last+1, last+1, "\n  "+member+"\n"), nil
	}
	return splice(data, last+1, last+1, ",\n"+lineIndent(data, last)+member), nil
}

// splice replaces data[from:to] with s.
func splice(data []byte, from, to int, s string) []byte {
	out := make([]byte, 0, len(data)-(to-from)+len(s))
	out = append(out, data[:from]...)
	out = append(out, s...)
	return append(out, data[to:]...)
}

// lineIndent returns the leading whitespace of the line holding offset i.
func lineIndent(data []byte, i int) string {
	start := bytes.LastIndexByte(data[:i], '\n') + 1
	end := start
	for end < len(data) && (data[end] == ' ' || data[end] == '\t') {
		end++
	}
	return string(data[start:end])
}
