package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/enquote/internal/config/loader"
	"github.com/dshills/enquote/internal/config/registry"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/project/vfs"
)

func noEnv() Option {
	return WithEnvLoader(loader.NewEnvLoaderWithEnviron(loader.EnvPrefix, func() []string { return nil }))
}

func newTestConfig(t *testing.T, files map[string]string, opts ...Option) (*Config, *vfs.MemFS) {
	t.Helper()
	fs := vfs.NewMemFS()
	for path, content := range files {
		require.NoError(t, fs.AddFile(path, content))
	}
	all := append([]Option{WithFS(fs), WithUserConfigDir("/home/u/.config/enquote"), WithWorkspace("/w"), noEnv()}, opts...)
	cfg := New(all...)
	require.NoError(t, cfg.Load(context.Background()))
	return cfg, fs
}

func recordChanges(t *testing.T, bus *event.Bus) *[]events.ConfigChanged {
	t.Helper()
	var got []events.ConfigChanged
	_, err := bus.Subscribe(events.TopicConfigChanged, event.Typed(func(ctx context.Context, ev event.Event[events.ConfigChanged]) error {
		got = append(got, ev.Payload)
		return nil
	}))
	require.NoError(t, err)
	return &got
}

func TestConfig_Defaults(t *testing.T) {
	cfg, _ := newTestConfig(t, nil)

	mode, err := cfg.GetString(registry.EnquoteActive)
	require.NoError(t, err)
	assert.Equal(t, "auto", mode)

	depth, err := cfg.GetInt(registry.LatexSearchDepth)
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultSearchDepth, depth)

	src, ok := cfg.Source(registry.EnquoteActive)
	require.True(t, ok)
	assert.Equal(t, events.ConfigSourceDefault, src)
}

func TestConfig_LayerPrecedence(t *testing.T) {
	cfg, _ := newTestConfig(t, map[string]string{
		"/home/u/.config/enquote/config.toml": "[enquote]\nactive = \"false\"\n[latex]\nsearchDepth = 1\n",
		"/w/.enquote.yaml":                    "enquote:\n  active: true\n",
		"/w/.vscode/settings.json":            `{"latex-workshop.latex.searchDepth": 5}`,
	})

	mode, err := cfg.GetString(registry.EnquoteActive)
	require.NoError(t, err)
	assert.Equal(t, "true", mode, "a YAML boolean is read back as the string \"true\"")

	src, _ := cfg.Source(registry.EnquoteActive)
	assert.Equal(t, events.ConfigSourceWorkspace, src)

	depth, err := cfg.GetInt(registry.LatexSearchDepth)
	require.NoError(t, err)
	assert.Equal(t, 5, depth, "settings.json overrides the user file")
	src, _ = cfg.Source(registry.LatexSearchDepth)
	assert.Equal(t, events.ConfigSourceVSCode, src)
}

func TestConfig_TOMLBooleanNormalized(t *testing.T) {
	cfg, _ := newTestConfig(t, map[string]string{
		"/w/.enquote.toml": "[enquote]\nactive = false\n",
	})

	mode, err := cfg.GetString(registry.EnquoteActive)
	require.NoError(t, err)
	assert.Equal(t, "false", mode)
}

func TestConfig_EnvOverridesFiles(t *testing.T) {
	env := loader.NewEnvLoaderWithEnviron(loader.EnvPrefix, func() []string {
		return []string{"ENQUOTE_ACTIVE=true", "ENQUOTE_SEARCH_DEPTH=2"}
	})
	cfg, _ := newTestConfig(t, map[string]string{
		"/w/.enquote.toml": "[enquote]\nactive = \"false\"\n",
	}, WithEnvLoader(env))

	mode, _ := cfg.GetString(registry.EnquoteActive)
	assert.Equal(t, "true", mode)
	depth, err := cfg.GetInt(registry.LatexSearchDepth)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)
}

func TestConfig_InvalidValuesAreDropped(t *testing.T) {
	cfg, _ := newTestConfig(t, map[string]string{
		"/w/.enquote.toml": "[enquote]\nactive = \"sometimes\"\n",
	})

	mode, _ := cfg.GetString(registry.EnquoteActive)
	assert.Equal(t, "auto", mode)

	problems := cfg.Problems()
	require.Len(t, problems, 1)
	assert.ErrorIs(t, problems[0], ErrValidationFailed)

	var verr *ValidationError
	require.ErrorAs(t, problems[0], &verr)
	assert.Equal(t, registry.EnquoteActive, verr.Path)
	assert.Equal(t, LayerWorkspace, verr.Source)
}

func TestConfig_ParseErrorIsRecorded(t *testing.T) {
	cfg, _ := newTestConfig(t, map[string]string{
		"/w/.enquote.toml":         "[enquote",
		"/w/.vscode/settings.json": `{"latex-workshop.latex.searchDepth": 3}`,
	})

	problems := cfg.Problems()
	require.Len(t, problems, 1)
	var perr *loader.ParseError
	require.ErrorAs(t, problems[0], &perr)
	assert.Equal(t, "/w/.enquote.toml", perr.Path)

	// The other layers still load.
	depth, err := cfg.GetInt(registry.LatexSearchDepth)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)
}

func TestConfig_ParseErrorKeepsPreviousLayer(t *testing.T) {
	cfg, fs := newTestConfig(t, map[string]string{
		"/w/.enquote.toml": "[enquote]\nactive = \"false\"\n",
	})

	require.NoError(t, fs.WriteFile("/w/.enquote.toml", []byte("[enquote\n"), 0o644))
	require.NoError(t, cfg.Reload(context.Background()))

	mode, _ := cfg.GetString(registry.EnquoteActive)
	assert.Equal(t, "false", mode)
	assert.Len(t, cfg.Problems(), 1)
}

func TestConfig_VSCodeTrailingComma(t *testing.T) {
	cfg, _ := newTestConfig(t, map[string]string{
		"/w/.vscode/settings.json": `{
  "editor.fontSize": 14,
  "latex-workshop.enquote.active": "true",
}`,
	})

	mode, _ := cfg.GetString(registry.EnquoteActive)
	assert.Equal(t, "true", mode)
	assert.Empty(t, cfg.Problems())
}

func TestConfig_SetPublishesChange(t *testing.T) {
	bus := event.NewBus()
	got := recordChanges(t, bus)
	cfg, _ := newTestConfig(t, nil, WithPublisher(bus))

	require.NoError(t, cfg.Set(context.Background(), registry.EnquoteActive, true))

	mode, _ := cfg.GetString(registry.EnquoteActive)
	assert.Equal(t, "true", mode)

	require.Len(t, *got, 1)
	assert.Equal(t, events.ConfigChanged{
		Path:     registry.EnquoteActive,
		OldValue: "auto",
		NewValue: "true",
		Source:   events.ConfigSourceOverride,
	}, (*got)[0])

	// Setting the same value again changes nothing.
	require.NoError(t, cfg.Set(context.Background(), registry.EnquoteActive, "true"))
	assert.Len(t, *got, 1)
}

func TestConfig_SetRejectsInvalid(t *testing.T) {
	cfg, _ := newTestConfig(t, nil)

	err := cfg.Set(context.Background(), registry.EnquoteActive, "maybe")
	assert.ErrorIs(t, err, ErrValidationFailed)

	err = cfg.Set(context.Background(), "enquote..active", "true")
	assert.ErrorIs(t, err, ErrInvalidPath)

	mode, _ := cfg.GetString(registry.EnquoteActive)
	assert.Equal(t, "auto", mode)
}

func TestConfig_UnsetRestoresLowerLayer(t *testing.T) {
	cfg, _ := newTestConfig(t, map[string]string{
		"/w/.enquote.toml": "[enquote]\nactive = \"false\"\n",
	})

	require.NoError(t, cfg.Set(context.Background(), registry.EnquoteActive, "true"))
	require.NoError(t, cfg.Unset(context.Background(), registry.EnquoteActive))

	mode, _ := cfg.GetString(registry.EnquoteActive)
	assert.Equal(t, "false", mode)
}

func TestConfig_OverridesSurviveReload(t *testing.T) {
	cfg, fs := newTestConfig(t, map[string]string{
		"/w/.enquote.toml": "[enquote]\nactive = \"false\"\n",
	})
	require.NoError(t, cfg.Set(context.Background(), registry.LatexRootFile, "book.tex"))

	require.NoError(t, fs.WriteFile("/w/.enquote.toml", []byte("[enquote]\nactive = \"true\"\n"), 0o644))
	require.NoError(t, cfg.Reload(context.Background()))

	mode, _ := cfg.GetString(registry.EnquoteActive)
	assert.Equal(t, "true", mode)
	root, _ := cfg.GetString(registry.LatexRootFile)
	assert.Equal(t, "book.tex", root)
}

func TestConfig_ReloadPublishesDiffAndDropsRemovedLayer(t *testing.T) {
	bus := event.NewBus()
	got := recordChanges(t, bus)
	cfg, fs := newTestConfig(t, map[string]string{
		"/w/.enquote.toml": "[enquote]\nactive = \"false\"\n",
	}, WithPublisher(bus))

	require.NoError(t, fs.Remove("/w/.enquote.toml"))
	require.NoError(t, cfg.Reload(context.Background()))

	mode, _ := cfg.GetString(registry.EnquoteActive)
	assert.Equal(t, "auto", mode)

	require.Len(t, *got, 1)
	assert.Equal(t, "false", (*got)[0].OldValue)
	assert.Equal(t, "auto", (*got)[0].NewValue)
	assert.Equal(t, events.ConfigSourceDefault, (*got)[0].Source)
}

func TestConfig_WriteWorkspaceSetting(t *testing.T) {
	cfg, fs := newTestConfig(t, map[string]string{
		"/w/.vscode/settings.json": `{"editor.fontSize": 12}`,
	})

	require.NoError(t, cfg.WriteWorkspaceSetting(context.Background(), registry.EnquoteActive, "false"))

	mode, _ := cfg.GetString(registry.EnquoteActive)
	assert.Equal(t, "false", mode)

	data, err := fs.ReadFile("/w/.vscode/settings.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"editor.fontSize": 12`)
	assert.Contains(t, string(data), `"latex-workshop.enquote.active": "false"`)

	err = cfg.WriteWorkspaceSetting(context.Background(), registry.EnquoteActive, "never")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestConfig_WriteWorkspaceSettingWithoutWorkspace(t *testing.T) {
	cfg := New(WithFS(vfs.NewMemFS()), noEnv())
	err := cfg.WriteWorkspaceSetting(context.Background(), registry.EnquoteActive, "true")
	assert.ErrorIs(t, err, ErrNoWorkspace)
}

func TestConfig_ExplicitConfigFile(t *testing.T) {
	cfg, _ := newTestConfig(t, map[string]string{
		"/etc/enquote.yaml": "logging:\n  level: debug\n",
	}, WithConfigFile("/etc/enquote.yaml"))

	level, _ := cfg.GetString(registry.LoggingLevel)
	assert.Equal(t, "debug", level)
	assert.Contains(t, cfg.Files(), "/etc/enquote.yaml")
}

func TestConfig_Sections(t *testing.T) {
	cfg, _ := newTestConfig(t, map[string]string{
		"/w/.enquote.toml": "[latex]\nrootFile = \"thesis.tex\"\nsearchDepth = 2\n[logging]\nformat = \"json\"\n",
	})

	s, err := cfg.Sections()
	require.NoError(t, err)
	assert.Equal(t, "auto", s.Enquote.Active)
	assert.Equal(t, "thesis.tex", s.Latex.RootFile)
	assert.Equal(t, 2, s.Latex.SearchDepth)
	assert.Equal(t, "json", s.Logging.Format)
	assert.Equal(t, "info", s.Logging.Level)
}

func TestConfig_GetErrors(t *testing.T) {
	cfg, _ := newTestConfig(t, nil)

	_, err := cfg.GetString("missing.key")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	_, err = cfg.GetInt(registry.EnquoteActive)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}
