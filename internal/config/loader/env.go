package loader

import (
	"os"
	"strings"
)

// EnvPrefix is the prefix of environment variables read by the env layer.
const EnvPrefix = "ENQUOTE_"

// EnvLoader loads configuration from environment variables.
//
// Values are kept as strings; the configuration layer coerces them to the
// registered setting type.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "ENQUOTE_")
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "ENQUOTE_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		environ: os.Environ,
	}
}

// NewEnvLoaderWithEnviron creates a loader that reads variables from
// environ instead of the process environment.
func NewEnvLoaderWithEnviron(prefix string, environ func() []string) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.environ = environ
	return l
}

// defaultEnvMapping returns the short names for the common settings.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "ACTIVE":       "enquote.active",
		prefix + "ROOT_FILE":    "latex.rootFile",
		prefix + "SEARCH_DEPTH": "latex.searchDepth",
		prefix + "LOG_LEVEL":    "logging.level",
		prefix + "LOG_FORMAT":   "logging.format",
		prefix + "LOG_FILE":     "logging.file",
	}
}

// Load reads environment variables and returns a configuration map.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			// ENQUOTE_LATEX_ROOT_FILE -> latex.rootFile
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		SetByPath(config, path, value)
	}

	if len(config) == 0 {
		return nil, nil
	}
	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	l.mapping[envVar] = configPath
}

// envToPath converts ENQUOTE_LATEX_SEARCH_DEPTH to latex.searchDepth.
func (l *EnvLoader) envToPath(env string) string {
	parts := strings.Split(strings.TrimPrefix(env, l.prefix), "_")
	if len(parts) < 2 || parts[0] == "" {
		return ""
	}

	section := strings.ToLower(parts[0])
	setting := strings.ToLower(parts[1])
	for _, part := range parts[2:] {
		if part != "" {
			setting += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
		}
	}
	return section + "." + setting
}
