// Package registry provides the settings registry for enquote configuration.
//
// The registry maintains definitions of all known settings with their types,
// defaults and validation rules. Layers may contain keys the registry does
// not know; those are carried through untouched.
package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// Setting defines a configuration setting with its metadata.
type Setting struct {
	// Path is the dot-separated path (e.g., "enquote.active").
	Path string

	// Type is the setting's data type.
	Type SettingType

	// Default is the default value.
	Default any

	// Description is human-readable documentation.
	Description string

	// Enum lists allowed values for enum types.
	Enum []string

	// Minimum for integer types (nil means no minimum).
	Minimum *int

	// Maximum for integer types (nil means no maximum).
	Maximum *int
}

// Validate checks if a value is valid for this setting.
// The value is expected to have been passed through Coerce.
func (s *Setting) Validate(value any) error {
	switch s.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case TypeEnum:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if !s.allows(str) {
			return fmt.Errorf("value must be one of: %s", strings.Join(s.Enum, ", "))
		}
	case TypeInt:
		n, ok := value.(int)
		if !ok {
			return fmt.Errorf("expected integer, got %T", value)
		}
		if s.Minimum != nil && n < *s.Minimum {
			return fmt.Errorf("value %d is less than minimum %d", n, *s.Minimum)
		}
		if s.Maximum != nil && n > *s.Maximum {
			return fmt.Errorf("value %d is greater than maximum %d", n, *s.Maximum)
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	}
	return nil
}

// Coerce converts a value read from a config source to the setting's
// Go type. Typed formats produce booleans where enquote.active expects
// a string, environment variables are always strings, and JSON numbers
// arrive as float64. Values that cannot be converted are returned as is
// so that Validate reports them.
func (s *Setting) Coerce(value any) any {
	switch s.Type {
	case TypeString, TypeEnum:
		switch v := value.(type) {
		case bool:
			return strconv.FormatBool(v)
		case string:
			if s.Type == TypeEnum {
				return strings.ToLower(strings.TrimSpace(v))
			}
		}
	case TypeInt:
		switch v := value.(type) {
		case int64:
			return int(v)
		case int32:
			return int(v)
		case uint64:
			return int(v)
		case float64:
			if v == float64(int(v)) {
				return int(v)
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	case TypeBool:
		if v, ok := value.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b
			}
		}
	}
	return value
}

func (s *Setting) allows(v string) bool {
	for _, e := range s.Enum {
		if e == v {
			return true
		}
	}
	return false
}

// SettingType represents the data type of a setting.
type SettingType uint8

const (
	// TypeString represents a string value.
	TypeString SettingType = iota
	// TypeInt represents an integer value.
	TypeInt
	// TypeBool represents a boolean value.
	TypeBool
	// TypeEnum represents a string value from a fixed set.
	TypeEnum
)

// String returns the string representation of the type.
func (t SettingType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "integer"
	case TypeBool:
		return "boolean"
	case TypeEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// IntValue creates a pointer to an int for use as Minimum or Maximum.
func IntValue(v int) *int {
	return &v
}
