package events

import "github.com/dshills/enquote/internal/event/topic"

// Config event topics.
const (
	// TopicConfigChanged is published when a setting changes.
	TopicConfigChanged topic.Topic = "config.changed"

	// TopicConfigReloaded is published after configuration files were reloaded.
	TopicConfigReloaded topic.Topic = "config.reloaded"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

// Configuration sources in order of precedence.
const (
	ConfigSourceDefault   ConfigSource = "default"
	ConfigSourceUser      ConfigSource = "user"
	ConfigSourceWorkspace ConfigSource = "workspace"
	ConfigSourceVSCode    ConfigSource = "vscode"
	ConfigSourceEnv       ConfigSource = "env"
	ConfigSourceOverride  ConfigSource = "override"
)

// ConfigChanged is published when a setting changes.
type ConfigChanged struct {
	// Path is the dot-notation path to the setting (e.g., "enquote.active").
	Path string

	// OldValue is the previous value.
	OldValue any

	// NewValue is the new value.
	NewValue any

	// Source indicates where the new value came from.
	Source ConfigSource
}

// ConfigReloaded is published after a configuration file was re-read.
type ConfigReloaded struct {
	// Path is the file that triggered the reload.
	Path string

	// Error holds the reload failure, if any.
	Error error
}
