package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/dshills/enquote/internal/logging"
)

// Sections is the typed view of the merged configuration.
type Sections struct {
	Enquote EnquoteConfig  `yaml:"enquote"`
	Latex   LatexConfig    `yaml:"latex"`
	Logging logging.Config `yaml:"logging"`
}

// EnquoteConfig holds the enquote section.
type EnquoteConfig struct {
	// Active is "auto", "true" or "false".
	Active string `yaml:"active"`
}

// LatexConfig holds the latex section.
type LatexConfig struct {
	// RootFile overrides root file detection. Relative to the workspace.
	RootFile string `yaml:"rootFile"`

	// SearchDepth bounds the workspace scan for a root file.
	SearchDepth int `yaml:"searchDepth"`
}

// Sections decodes the merged configuration into a Sections value.
func (c *Config) Sections() (Sections, error) {
	var s Sections
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return s, fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(c.Merged()); err != nil {
		return s, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return s, nil
}
