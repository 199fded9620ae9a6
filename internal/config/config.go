package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/enquote/internal/config/layer"
	"github.com/dshills/enquote/internal/config/loader"
	"github.com/dshills/enquote/internal/config/registry"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/logging"
	"github.com/dshills/enquote/internal/project/vfs"
)

// Standard layer names.
const (
	LayerDefaults  = "defaults"
	LayerUser      = "user"
	LayerWorkspace = "workspace"
	LayerVSCode    = "vscode"
	LayerEnv       = "env"
	LayerOverride  = "override"
)

// Workspace configuration file names, in lookup order.
var workspaceFiles = []string{".enquote.toml", ".enquote.yaml", ".enquote.yml"}

// Publisher publishes configuration events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Config provides unified access to the enquote configuration.
// It manages loading, validation, runtime overrides and change notification.
type Config struct {
	mu sync.RWMutex

	fs        vfs.VFS
	registry  *registry.Registry
	layers    *layer.Manager
	publisher Publisher
	env       *loader.EnvLoader
	log       *logrus.Entry

	userConfigDir string
	configFile    string
	workspace     string

	// problems holds load and validation failures from the last Load.
	problems []error
}

// Option configures a Config instance.
type Option func(*Config)

// WithFS sets the file system used to read configuration files.
func WithFS(fs vfs.VFS) Option {
	return func(c *Config) {
		c.fs = fs
	}
}

// WithUserConfigDir sets the user configuration directory.
func WithUserConfigDir(dir string) Option {
	return func(c *Config) {
		c.userConfigDir = dir
	}
}

// WithConfigFile replaces the user configuration file with path.
// The format is chosen by extension.
func WithConfigFile(path string) Option {
	return func(c *Config) {
		c.configFile = path
	}
}

// WithWorkspace sets the workspace directory.
func WithWorkspace(dir string) Option {
	return func(c *Config) {
		c.workspace = dir
	}
}

// WithPublisher sets the publisher for config events.
func WithPublisher(p Publisher) Option {
	return func(c *Config) {
		c.publisher = p
	}
}

// WithEnvLoader replaces the environment loader.
func WithEnvLoader(l *loader.EnvLoader) Option {
	return func(c *Config) {
		c.env = l
	}
}

// New creates a new Config instance with the given options.
// Only the defaults and an empty override layer are present until Load.
func New(opts ...Option) *Config {
	c := &Config{
		fs:       vfs.NewOSFS(),
		registry: registry.NewWithDefaults(),
		layers:   layer.NewManager(),
		env:      loader.NewEnvLoader(loader.EnvPrefix),
		log:      logging.NewLogger("config"),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.userConfigDir == "" {
		c.userConfigDir = defaultUserConfigDir()
	}

	c.layers.AddLayer(layer.NewLayer(LayerDefaults, layer.SourceDefault, c.defaults()))
	c.layers.AddLayer(layer.NewLayer(LayerOverride, layer.SourceOverride, nil))
	return c
}

// Load loads configuration from all sources. A source that cannot be read
// or parsed is recorded in Problems and leaves its previous layer, if any,
// in effect.
func (c *Config) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.problems = nil
	for _, src := range c.sources() {
		if err := c.loadLayer(src); err != nil {
			c.problems = append(c.problems, err)
			c.log.WithError(err).WithField("layer", src.name).Warn("Ignoring configuration source")
		}
	}
	return ctx.Err()
}

// Reload re-reads every file and environment layer and publishes
// config.changed for each effective value that changed.
func (c *Config) Reload(ctx context.Context) error {
	before := loader.Flatten(c.Merged())
	if err := c.Load(ctx); err != nil {
		return err
	}
	return c.publishDiff(ctx, before)
}

// source describes one loadable layer.
type source struct {
	name   string
	source layer.Source
	loader loader.Loader
	path   string
}

// sources lists the loadable layers. Caller holds the lock.
func (c *Config) sources() []source {
	var out []source

	if userFile := c.userFile(); userFile != "" {
		if l, err := loader.ForFile(c.fs, userFile); err == nil {
			out = append(out, source{LayerUser, layer.SourceUser, l, userFile})
		} else {
			c.log.WithError(err).Warn("Ignoring user configuration file")
		}
	}

	if c.workspace != "" {
		path := c.workspaceFile()
		l, _ := loader.ForFile(c.fs, path)
		out = append(out, source{LayerWorkspace, layer.SourceWorkspace, l, path})

		path = loader.VSCodeSettingsPath(c.workspace)
		out = append(out, source{LayerVSCode, layer.SourceVSCode, loader.NewVSCodeLoader(c.fs, path), path})
	}

	out = append(out, source{LayerEnv, layer.SourceEnv, c.env, ""})
	return out
}

// workspaceFile returns the first existing workspace configuration file.
// When none exists it returns the first candidate, whose loader yields no
// data so a layer left from a previous load is removed.
func (c *Config) workspaceFile() string {
	for _, name := range workspaceFiles {
		path := filepath.Join(c.workspace, name)
		if c.fs.Exists(path) {
			return path
		}
	}
	return filepath.Join(c.workspace, workspaceFiles[0])
}

// loadLayer loads one source into its layer. A source that does not exist
// removes any layer left from a previous load. Caller holds the lock.
func (c *Config) loadLayer(src source) error {
	data, err := src.loader.Load()
	if err != nil {
		return fmt.Errorf("loading %s configuration: %w", src.name, err)
	}
	if data == nil {
		c.layers.RemoveLayer(src.name)
		return nil
	}

	l := layer.NewLayer(src.name, src.source, c.normalize(src.name, data))
	l.Path = src.path
	c.layers.AddLayer(l)

	c.log.WithFields(logrus.Fields{
		"layer": src.name,
		"path":  src.path,
	}).Debug("Loaded configuration layer")
	return nil
}

// normalize coerces every known setting to its registered type and drops
// values that fail validation. Caller holds the lock.
func (c *Config) normalize(sourceName string, data map[string]any) map[string]any {
	out := make(map[string]any)
	for path, value := range loader.Flatten(data) {
		value = c.registry.Coerce(path, value)
		if err := c.registry.Validate(path, value); err != nil {
			verr := &ValidationError{Path: path, Value: value, Source: sourceName, Err: err}
			c.problems = append(c.problems, verr)
			c.log.WithError(verr).Warn("Ignoring invalid setting")
			continue
		}
		loader.SetByPath(out, path, value)
	}
	return out
}

// Problems returns the load and validation failures found by the last Load.
func (c *Config) Problems() []error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]error(nil), c.problems...)
}

// Get returns the value at the given path from the merged configuration.
func (c *Config) Get(path string) (any, bool) {
	v, _, ok := c.layers.Get(path)
	return v, ok
}

// GetString returns a string value at the given path.
func (c *Config) GetString(path string) (string, error) {
	v, ok := c.Get(path)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSettingNotFound, path)
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Path: path, Expected: "string", Actual: fmt.Sprintf("%T", v)}
	}
	return s, nil
}

// GetInt returns an integer value at the given path.
func (c *Config) GetInt(path string) (int, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSettingNotFound, path)
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	default:
		return 0, &TypeError{Path: path, Expected: "int", Actual: fmt.Sprintf("%T", v)}
	}
}

// Source returns the source of the effective value at path.
func (c *Config) Source(path string) (events.ConfigSource, bool) {
	_, l, ok := c.layers.Get(path)
	if !ok {
		return "", false
	}
	return events.ConfigSource(l.Source.String()), true
}

// Set stores a runtime override for path after coercing and validating it.
// Overrides survive Reload and take precedence over every other layer.
func (c *Config) Set(ctx context.Context, path string, value any) error {
	if !validPath(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	value = c.registry.Coerce(path, value)
	if err := c.registry.Validate(path, value); err != nil {
		return &ValidationError{Path: path, Value: value, Source: LayerOverride, Err: err}
	}

	before := loader.Flatten(c.Merged())
	if err := c.layers.Set(LayerOverride, path, value); err != nil {
		return err
	}
	return c.publishDiff(ctx, before)
}

// Unset removes the runtime override for path.
func (c *Config) Unset(ctx context.Context, path string) error {
	before := loader.Flatten(c.Merged())
	if !c.layers.Delete(LayerOverride, path) {
		return nil
	}
	return c.publishDiff(ctx, before)
}

// Merged returns the fully merged configuration.
func (c *Config) Merged() map[string]any {
	return c.layers.Merge()
}

// Registry returns the settings registry.
func (c *Config) Registry() *registry.Registry {
	return c.registry
}

// Workspace returns the workspace directory, or "" when none is set.
func (c *Config) Workspace() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workspace
}

// Files returns the configuration files the current layers may be read
// from, whether or not they exist yet.
func (c *Config) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var files []string
	if f := c.userFile(); f != "" {
		files = append(files, f)
	}
	if c.workspace != "" {
		for _, name := range workspaceFiles {
			files = append(files, filepath.Join(c.workspace, name))
		}
		files = append(files, loader.VSCodeSettingsPath(c.workspace))
	}
	return files
}

// WriteWorkspaceSetting persists path = value to the workspace
// .vscode/settings.json and reloads. The value is validated first.
func (c *Config) WriteWorkspaceSetting(ctx context.Context, path string, value any) error {
	workspace := c.Workspace()
	if workspace == "" {
		return ErrNoWorkspace
	}

	value = c.registry.Coerce(path, value)
	if err := c.registry.Validate(path, value); err != nil {
		return &ValidationError{Path: path, Value: value, Source: LayerVSCode, Err: err}
	}

	l := loader.NewVSCodeLoader(c.fs, loader.VSCodeSettingsPath(workspace))
	if err := l.Set(path, value); err != nil {
		return err
	}
	return c.Reload(ctx)
}

// publishDiff publishes config.changed for each path whose effective value
// differs from before.
func (c *Config) publishDiff(ctx context.Context, before map[string]any) error {
	after := loader.Flatten(c.Merged())

	paths := make(map[string]struct{}, len(after))
	for p := range before {
		paths[p] = struct{}{}
	}
	for p := range after {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var errs []error
	for _, path := range sorted {
		oldValue, newValue := before[path], after[path]
		if reflect.DeepEqual(oldValue, newValue) {
			continue
		}

		src, _ := c.Source(path)
		c.log.WithFields(logrus.Fields{
			"path":   path,
			"old":    oldValue,
			"new":    newValue,
			"source": src,
		}).Info("Setting changed")

		if c.publisher == nil {
			continue
		}
		ev := event.NewEvent(events.TopicConfigChanged, events.ConfigChanged{
			Path:     path,
			OldValue: oldValue,
			NewValue: newValue,
			Source:   src,
		}, "config")
		if err := c.publisher.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// defaults builds the defaults layer from the registry.
func (c *Config) defaults() map[string]any {
	data := make(map[string]any)
	for path, v := range c.registry.Defaults() {
		loader.SetByPath(data, path, v)
	}
	return data
}

// userFile returns the user configuration file. Caller holds the lock.
func (c *Config) userFile() string {
	if c.configFile != "" {
		return c.configFile
	}
	if c.userConfigDir == "" {
		return ""
	}
	return filepath.Join(c.userConfigDir, "config.toml")
}

func validPath(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return false
		}
	}
	return true
}

// defaultUserConfigDir returns $XDG_CONFIG_HOME/enquote or ~/.config/enquote.
func defaultUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "enquote")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "enquote")
}

// UserConfigDir returns the directory holding the user configuration and
// user scripts.
func (c *Config) UserConfigDir() string {
	return c.userConfigDir
}
