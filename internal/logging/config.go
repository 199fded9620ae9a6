package logging

// Config defines the logging section of the enquote configuration.
type Config struct {
	// Level is the minimum log level to output (e.g., "debug", "info", "warn", "error").
	// Can be overridden by the ENQUOTE_LOG_LEVEL environment variable.
	Level string `yaml:"level"`

	// Format is "text" (default) or "json".
	Format string `yaml:"format"`

	// File, when set, sends log output to this path instead of stderr.
	File string `yaml:"file"`
}
