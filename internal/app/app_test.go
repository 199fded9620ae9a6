package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/enquote/internal/config/registry"
	"github.com/dshills/enquote/internal/engine"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/project/vfs"
)

const (
	userDir = "/home/u/.config/enquote"
	mainTeX = "\\documentclass{article}\n\\usepackage{csquotes}\n\\begin{document}\n\\input{chapter}\n\\end{document}\n"
)

func newTestApp(t *testing.T, files map[string]string, mutate ...func(*Options)) (*Application, *vfs.MemFS) {
	t.Helper()
	fs := vfs.NewMemFS()
	for p, content := range files {
		require.NoError(t, fs.AddFile(p, content))
	}
	opts := Options{
		UserConfigDir: userDir,
		WorkspacePath: "/w",
		FS:            fs,
		Environ:       func() []string { return nil },
		LogOutput:     io.Discard,
	}
	for _, m := range mutate {
		m(&opts)
	}
	app, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, fs
}

func typeKeys(t *testing.T, doc *Document, text string) {
	t.Helper()
	for _, r := range text {
		require.NoError(t, doc.Engine.Type(context.Background(), string(r)))
	}
}

func TestApplication_AutoModeWithCsquotes(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/w/main.tex":    mainTeX,
		"/w/chapter.tex": "He said \n",
	})

	doc, err := app.Open(context.Background(), "/w/chapter.tex")
	require.NoError(t, err)
	require.NoError(t, doc.Engine.SetCaret(engine.Point{Line: 0, Column: 8}))

	typeKeys(t, doc, `"hi"`)

	assert.Equal(t, "He said \\enquote{hi}\n", doc.Content())
	assert.Equal(t, engine.Point{Line: 0, Column: 20}, doc.Engine.Selection().Head)
	assert.True(t, doc.IsModified())
	assert.True(t, app.Substitutor().Detected())
	assert.Empty(t, app.Errors())
}

func TestApplication_AutoModeWithoutCsquotes(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/w/main.tex": "\\begin{document}\nx\n\\end{document}\n",
	})

	doc, err := app.Open(context.Background(), "/w/main.tex")
	require.NoError(t, err)
	require.NoError(t, doc.Engine.SetCaret(engine.Point{Line: 1, Column: 1}))

	typeKeys(t, doc, ` "`)

	assert.Equal(t, "\\begin{document}\nx \"\n\\end{document}\n", doc.Content())
	assert.False(t, app.Substitutor().Detected())
}

func TestApplication_ModeOverride(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/w/main.tex": mainTeX,
	}, func(o *Options) {
		o.Overrides = map[string]any{registry.EnquoteActive: registry.ModeFalse}
	})

	doc, err := app.Open(context.Background(), "/w/main.tex")
	require.NoError(t, err)
	typeKeys(t, doc, `"`)

	assert.Equal(t, `"`, doc.Engine.LineText(0)[:1])
}

func TestApplication_InvalidOverride(t *testing.T) {
	fs := vfs.NewMemFS()
	_, err := New(Options{
		UserConfigDir: userDir,
		FS:            fs,
		Environ:       func() []string { return nil },
		LogOutput:     io.Discard,
		Overrides:     map[string]any{registry.EnquoteActive: "sometimes"},
	})

	var ierr *InitError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "config", ierr.Component)
}

func TestApplication_WorkspaceSettings(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/w/.vscode/settings.json": `{"latex-workshop.enquote.active": "true"}`,
		"/w/notes.tex":             "",
	})

	doc, err := app.Open(context.Background(), "/w/notes.tex")
	require.NoError(t, err)
	typeKeys(t, doc, `"`)

	assert.Equal(t, `\enquote{`, doc.Content())
}

func TestApplication_MalformedSettingsTolerated(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/w/.vscode/settings.json": `{"editor.fontSize": 14,}`,
		"/w/.enquote.toml":         "[enquote",
		"/w/notes.tex":             "",
	}, func(o *Options) { o.Overrides = map[string]any{registry.EnquoteActive: registry.ModeTrue} })

	// Only the broken TOML file is reported; the trailing comma is valid JSONC.
	assert.Len(t, app.Config().Problems(), 1)

	doc, err := app.Open(context.Background(), "/w/notes.tex")
	require.NoError(t, err)
	typeKeys(t, doc, `"`)

	assert.Equal(t, `\enquote{`, doc.Content())
}

func TestApplication_InactiveDocumentIgnored(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/w/a.tex": "",
		"/w/b.tex": "",
	}, func(o *Options) {
		o.Overrides = map[string]any{registry.EnquoteActive: registry.ModeTrue}
	})
	ctx := context.Background()

	a, err := app.Open(ctx, "/w/a.tex")
	require.NoError(t, err)
	b, err := app.Open(ctx, "/w/b.tex")
	require.NoError(t, err)
	require.Same(t, b, app.Active())

	typeKeys(t, a, `"`)
	assert.Equal(t, `"`, a.Content())

	_, err = app.Activate(ctx, a.ID())
	require.NoError(t, err)
	require.NoError(t, a.Engine.SetCaret(engine.Point{}))
	typeKeys(t, a, `"`)
	assert.Equal(t, `\enquote{"`, a.Content())
}

func TestApplication_OpenTwice(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{"/w/a.tex": "x"})
	ctx := context.Background()

	first, err := app.Open(ctx, "/w/a.tex")
	require.NoError(t, err)
	second, err := app.Open(ctx, "/w/./a.tex")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, app.Documents().Count())
}

func TestApplication_OpenMissing(t *testing.T) {
	app, _ := newTestApp(t, nil)

	_, err := app.Open(context.Background(), "/w/missing.tex")
	var ferr *FileError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, "open", ferr.Op)
	assert.Equal(t, "/w/missing.tex", ferr.Path)
}

func TestApplication_StartupFiles(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/w/a.tex": "a",
		"/w/b.tex": "b",
	}, func(o *Options) {
		o.Files = []string{"/w/a.tex", "/w/b.tex"}
	})

	require.Equal(t, 2, app.Documents().Count())
	assert.Equal(t, "/w/b.tex", app.Active().Path())
}

func TestApplication_ActivationEvents(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/w/a.tex": "a",
		"/w/b.tex": "b",
	})
	ctx := context.Background()

	var activated []string
	var closed []string
	_, err := app.Bus().Subscribe(events.TopicDocumentActivated, event.Typed(func(_ context.Context, ev event.Event[events.DocumentActivated]) error {
		activated = append(activated, ev.Payload.Path)
		return nil
	}))
	require.NoError(t, err)
	_, err = app.Bus().Subscribe(events.TopicDocumentClosed, event.Typed(func(_ context.Context, ev event.Event[events.DocumentClosed]) error {
		closed = append(closed, ev.Payload.DocumentID)
		return nil
	}))
	require.NoError(t, err)

	a, err := app.Open(ctx, "/w/a.tex")
	require.NoError(t, err)
	b, err := app.Open(ctx, "/w/b.tex")
	require.NoError(t, err)
	require.NoError(t, app.CloseDocument(ctx, b.ID()))

	assert.Equal(t, []string{"/w/a.tex", "/w/b.tex", "/w/a.tex"}, activated)
	assert.Equal(t, []string{b.ID()}, closed)
	assert.Same(t, a, app.Active())

	assert.ErrorIs(t, app.CloseDocument(ctx, b.ID()), ErrDocumentNotFound)
	_, err = app.Activate(ctx, "nope")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestApplication_CloseLastDocument(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{"/w/a.tex": "a"})
	ctx := context.Background()

	a, err := app.Open(ctx, "/w/a.tex")
	require.NoError(t, err)
	require.NoError(t, app.CloseDocument(ctx, a.ID()))

	assert.Nil(t, app.Active())
	assert.Nil(t, app.ActiveEditor())
}

func TestApplication_Save(t *testing.T) {
	app, fs := newTestApp(t, map[string]string{
		"/w/a.tex": "line\r\n",
	}, func(o *Options) {
		o.Overrides = map[string]any{registry.EnquoteActive: registry.ModeTrue}
	})
	ctx := context.Background()

	doc, err := app.Open(ctx, "/w/a.tex")
	require.NoError(t, err)
	typeKeys(t, doc, `"`)
	require.True(t, doc.IsModified())

	require.NoError(t, app.Save(doc.ID()))
	assert.False(t, doc.IsModified())

	data, err := fs.ReadFile("/w/a.tex")
	require.NoError(t, err)
	assert.Equal(t, "\\enquote{line\r\n", string(data))
}

func TestApplication_SaveScratch(t *testing.T) {
	app, _ := newTestApp(t, nil)

	doc, err := app.NewScratch(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Untitled", doc.Name)
	assert.ErrorIs(t, app.Save(doc.ID()), ErrNoFilePath)
	assert.ErrorIs(t, app.Save("nope"), ErrDocumentNotFound)
}

func TestApplication_Scripts(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		userDir + "/init.lua": `
			applied = {}
			enquote.on_applied(function(text, line, col)
				table.insert(applied, text)
			end)
		`,
		"/w/.enquote.lua": `enquote.set_mode("true")`,
		"/w/a.tex":        "x",
	})

	mode, err := app.Config().GetString(registry.EnquoteActive)
	require.NoError(t, err)
	assert.Equal(t, registry.ModeTrue, mode)

	doc, err := app.Open(context.Background(), "/w/a.tex")
	require.NoError(t, err)
	require.NoError(t, doc.Engine.SetCaret(engine.Point{Line: 0, Column: 1}))
	typeKeys(t, doc, `"`)

	assert.Equal(t, "x}", doc.Content())
	assert.Equal(t, []any{"}"}, app.Scripts().State().GetGlobal("applied"))
}

func TestApplication_FailingScriptRecorded(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/w/.enquote.lua": `error("broken")`,
	})

	errs := app.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "broken")
}

func TestApplication_DisableScripts(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"/w/.enquote.lua": `error("broken")`,
	}, func(o *Options) {
		o.DisableScripts = true
	})

	assert.Nil(t, app.Scripts())
	assert.Empty(t, app.Errors())
}

func TestApplication_HandlerErrorsRecorded(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{"/w/a.tex": ""})

	_, err := app.Bus().SubscribeFunc(events.TopicDocumentChanged, func(context.Context, any) error {
		return errors.New("listener failed")
	})
	require.NoError(t, err)

	doc, err := app.Open(context.Background(), "/w/a.tex")
	require.NoError(t, err)
	typeKeys(t, doc, "x")

	errs := app.Errors()
	require.Len(t, errs, 1)
	var herr *event.HandlerError
	assert.True(t, errors.As(errs[0], &herr))
}

func TestApplication_Close(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{"/w/a.tex": ""})

	require.NoError(t, app.Close())
	require.NoError(t, app.Close())

	_, err := app.Open(context.Background(), "/w/a.tex")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, app.Watch(context.Background()), ErrClosed)
}
