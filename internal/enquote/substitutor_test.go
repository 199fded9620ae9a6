package enquote

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/enquote/internal/config/registry"
	"github.com/dshills/enquote/internal/engine"
	"github.com/dshills/enquote/internal/engine/buffer"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/project/vfs"
)

const (
	rootPath     = "/work/main.tex"
	withCSQuotes = "\\documentclass{article}\n\\usepackage{csquotes}\n\\begin{document}\n"
	plainRoot    = "\\documentclass{article}\n\\begin{document}\n"
)

type mode string

func (m mode) GetString(path string) (string, error) {
	if path != registry.EnquoteActive {
		return "", errors.New("unexpected path " + path)
	}
	return string(m), nil
}

type rootFile struct {
	path string
}

func (r rootFile) RootFile() (string, bool) {
	return r.path, r.path != ""
}

type countingReader struct {
	FileReader
	mu    sync.Mutex
	reads int
}

func (c *countingReader) ReadFile(path string) ([]byte, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.FileReader.ReadFile(path)
}

func (c *countingReader) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// surface is an Editor backed by a plain buffer that records edits.
type surface struct {
	id       string
	buf      *buffer.Buffer
	caret    buffer.Point
	replaces int
}

func newSurface(text string) *surface {
	return &surface{id: "doc", buf: buffer.NewBufferFromString(text)}
}

func (s *surface) ID() string { return s.id }

func (s *surface) TextRange(r buffer.Range) (string, error) { return s.buf.TextRange(r) }

func (s *surface) Replace(_ context.Context, r buffer.Range, text string) error {
	s.replaces++
	_, err := s.buf.Replace(r, text)
	return err
}

func (s *surface) SetCaret(p buffer.Point) error {
	s.caret = p
	return nil
}

func pt(line, col int) buffer.Point {
	return buffer.Point{Line: line, Column: col}
}

// typed returns the change event for a quote typed at p, which must
// already be present in the surface text.
func typed(p buffer.Point) events.DocumentChanged {
	return events.DocumentChanged{
		DocumentID: "doc",
		Changes:    []events.ContentChange{{Range: buffer.CaretRange(p), Text: `"`}},
	}
}

func memRoot(t *testing.T, content string) *vfs.MemFS {
	t.Helper()
	m := vfs.NewMemFS()
	require.NoError(t, m.AddFile(rootPath, content))
	return m
}

// ============================================================================
// Substitution
// ============================================================================

func TestHandle_Delimiters(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		at    buffer.Point
		want  string
		caret buffer.Point
	}{
		{"line start", `"hello`, pt(0, 0), `\enquote{hello`, pt(0, 9)},
		{"after space", `say "hi`, pt(0, 4), `say \enquote{hi`, pt(0, 13)},
		{"after tab", "\t\"", pt(0, 1), "\t\\enquote{", pt(0, 10)},
		{"after no-break space", "a\u00a0\"", pt(0, 2), "a\u00a0\\enquote{", pt(0, 11)},
		{"after letter", `\enquote{hi"`, pt(0, 11), `\enquote{hi}`, pt(0, 12)},
		{"after punctuation", `word."`, pt(0, 5), `word.}`, pt(0, 6)},
		{"after umlaut", `schön"`, pt(0, 5), `schön}`, pt(0, 6)},
		{"second line start", "first\n\"", pt(1, 0), "first\n\\enquote{", pt(1, 9)},
		{"second line after letter", "first\nx\"", pt(1, 1), "first\nx}", pt(1, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(WithSettings(mode(registry.ModeTrue)))
			surf := newSurface(tt.text)

			require.NoError(t, s.Handle(context.Background(), typed(tt.at), surf))

			assert.Equal(t, tt.want, surf.buf.Text())
			assert.Equal(t, tt.caret, surf.caret)
			assert.Equal(t, 1, surf.replaces)
		})
	}
}

func TestHandle_CaretAfterDelimiter(t *testing.T) {
	s := New(WithSettings(mode(registry.ModeTrue)))
	surf := newSurface(`a "`)

	require.NoError(t, s.Handle(context.Background(), typed(pt(0, 2)), surf))

	assert.Equal(t, pt(0, 2+len(Opening)), surf.caret)
}

func TestHandle_Ignored(t *testing.T) {
	multi := typed(pt(0, 0))
	multi.Changes = append(multi.Changes, events.ContentChange{Range: buffer.CaretRange(pt(0, 2)), Text: `"`})

	other := typed(pt(0, 0))
	other.DocumentID = "other"

	paste := typed(pt(0, 0))
	paste.Changes[0].Text = `"x"`

	deletion := typed(pt(0, 0))
	deletion.Changes[0] = events.ContentChange{Range: buffer.NewRange(pt(0, 0), pt(0, 1))}

	letter := typed(pt(0, 0))
	letter.Changes[0].Text = "a"

	tests := []struct {
		name string
		ev   events.DocumentChanged
	}{
		{"several changes", multi},
		{"inactive document", other},
		{"paste", paste},
		{"deletion", deletion},
		{"other character", letter},
		{"no changes", events.DocumentChanged{DocumentID: "doc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(WithSettings(mode(registry.ModeTrue)))
			surf := newSurface(`"x"`)

			require.NoError(t, s.Handle(context.Background(), tt.ev, surf))

			assert.Equal(t, `"x"`, surf.buf.Text())
			assert.Zero(t, surf.replaces)
		})
	}
}

func TestHandle_NoActiveEditor(t *testing.T) {
	s := New(WithSettings(mode(registry.ModeTrue)))

	assert.NoError(t, s.Handle(context.Background(), typed(pt(0, 0)), nil))
}

func TestHandle_SurfaceErrors(t *testing.T) {
	s := New(WithSettings(mode(registry.ModeTrue)))
	surf := newSurface(`ab`)

	// The change claims a quote at a column past the end of the line.
	err := s.Handle(context.Background(), typed(pt(0, 5)), surf)
	assert.ErrorIs(t, err, buffer.ErrPointOutOfRange)
}

// ============================================================================
// Policy
// ============================================================================

func TestShallEnquote_Modes(t *testing.T) {
	files := &countingReader{FileReader: memRoot(t, withCSQuotes)}

	off := New(WithSettings(mode(registry.ModeFalse)), WithRootFile(rootFile{rootPath}), WithFileReader(files))
	ok, err := off.ShallEnquote()
	require.NoError(t, err)
	assert.False(t, ok)

	on := New(WithSettings(mode(registry.ModeTrue)), WithRootFile(rootFile{rootPath}), WithFileReader(files))
	ok, err = on.ShallEnquote()
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Zero(t, files.count(), "explicit modes never read the root file")

	auto := New(WithSettings(mode(registry.ModeAuto)), WithRootFile(rootFile{rootPath}), WithFileReader(files))
	ok, err = auto.ShallEnquote()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, files.count())
}

func TestMode_FallsBackToAuto(t *testing.T) {
	assert.Equal(t, registry.ModeAuto, New().Mode())
	assert.Equal(t, registry.ModeAuto, New(WithSettings(mode("sometimes"))).Mode())
	assert.Equal(t, registry.ModeFalse, New(WithSettings(mode("false"))).Mode())
}

func TestHandle_ModeFalseLeavesQuote(t *testing.T) {
	s := New(WithSettings(mode(registry.ModeFalse)))
	surf := newSurface(`"`)

	require.NoError(t, s.Handle(context.Background(), typed(pt(0, 0)), surf))

	assert.Equal(t, `"`, surf.buf.Text())
}

func TestHandle_AutoModeWithoutRootFileLeavesQuote(t *testing.T) {
	files := &countingReader{FileReader: memRoot(t, withCSQuotes)}
	s := New(WithSettings(mode(registry.ModeAuto)), WithRootFile(rootFile{}), WithFileReader(files))

	for _, text := range []string{`"`, `say "`, `word"`} {
		surf := newSurface(text)
		at := pt(0, len(text)-1)

		require.NoError(t, s.Handle(context.Background(), typed(at), surf))

		assert.Equal(t, text, surf.buf.Text())
		assert.Zero(t, surf.replaces)
	}
	assert.False(t, s.Detected())
	assert.Zero(t, files.count())
}

// ============================================================================
// Detection
// ============================================================================

func TestEnquotePackageImported_NoRootFile(t *testing.T) {
	files := &countingReader{FileReader: vfs.NewMemFS()}
	s := New(WithRootFile(rootFile{}), WithFileReader(files))

	ok, err := s.EnquotePackageImported()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, s.Detected())
	assert.Zero(t, files.count())
}

func TestEnquotePackageImported_FalseIsNotCached(t *testing.T) {
	fsys := memRoot(t, plainRoot)
	files := &countingReader{FileReader: fsys}
	s := New(WithRootFile(rootFile{rootPath}), WithFileReader(files))

	ok, err := s.EnquotePackageImported()
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.EnquotePackageImported()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, files.count())

	require.NoError(t, fsys.AddFile(rootPath, withCSQuotes))
	ok, err = s.EnquotePackageImported()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnquotePackageImported_TrueIsSticky(t *testing.T) {
	fsys := memRoot(t, withCSQuotes)
	files := &countingReader{FileReader: fsys}
	s := New(WithRootFile(rootFile{rootPath}), WithFileReader(files))

	ok, err := s.EnquotePackageImported()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, s.Detected())

	require.NoError(t, fsys.AddFile(rootPath, plainRoot))
	for i := 0; i < 3; i++ {
		ok, err = s.EnquotePackageImported()
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, files.count(), "a confirmed import is never re-read")
}

func TestEnquotePackageImported_MarkerIsUnanchored(t *testing.T) {
	fsys := memRoot(t, `% \usepackage{csquotes}`)
	s := New(WithRootFile(rootFile{rootPath}), WithFileReader(fsys))

	ok, err := s.EnquotePackageImported()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnquotePackageImported_OptionsDoNotMatch(t *testing.T) {
	fsys := memRoot(t, `\usepackage[autostyle]{csquotes}`)
	s := New(WithRootFile(rootFile{rootPath}), WithFileReader(fsys))

	ok, err := s.EnquotePackageImported()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnquotePackageImported_ReadError(t *testing.T) {
	fsys := memRoot(t, withCSQuotes)
	fsys.FailReads(rootPath, fs.ErrPermission)
	s := New(WithRootFile(rootFile{rootPath}), WithFileReader(fsys))

	ok, err := s.EnquotePackageImported()
	assert.False(t, ok)

	var detErr *DetectionError
	require.ErrorAs(t, err, &detErr)
	assert.Equal(t, rootPath, detErr.Path)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.False(t, s.Detected())
}

func TestHandle_ReadErrorPropagatesAndRetries(t *testing.T) {
	fsys := memRoot(t, withCSQuotes)
	fsys.FailReads(rootPath, fs.ErrPermission)
	s := New(WithRootFile(rootFile{rootPath}), WithFileReader(fsys))
	surf := newSurface(`"`)

	err := s.Handle(context.Background(), typed(pt(0, 0)), surf)
	var detErr *DetectionError
	require.ErrorAs(t, err, &detErr)
	assert.Equal(t, `"`, surf.buf.Text())

	fsys.FailReads(rootPath, nil)
	require.NoError(t, s.Handle(context.Background(), typed(pt(0, 0)), surf))
	assert.Equal(t, Opening, surf.buf.Text())
}

// ============================================================================
// Events
// ============================================================================

func TestPublishesEvents(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	var applied []events.EnquoteApplied
	var detected []events.EnquotePackageDetected
	_, err := bus.Subscribe(events.TopicEnquoteApplied, event.Typed(func(_ context.Context, ev event.Event[events.EnquoteApplied]) error {
		applied = append(applied, ev.Payload)
		return nil
	}))
	require.NoError(t, err)
	_, err = bus.Subscribe(events.TopicEnquotePackageDetected, event.Typed(func(_ context.Context, ev event.Event[events.EnquotePackageDetected]) error {
		detected = append(detected, ev.Payload)
		return nil
	}))
	require.NoError(t, err)

	s := New(WithRootFile(rootFile{rootPath}), WithFileReader(memRoot(t, withCSQuotes)), WithPublisher(bus))
	surf := newSurface(`"a"`)

	require.NoError(t, s.Handle(context.Background(), typed(pt(0, 0)), surf))
	require.NoError(t, s.Handle(context.Background(), typed(pt(0, 10)), surf))

	assert.Equal(t, `\enquote{a}`, surf.buf.Text())
	require.Len(t, detected, 1)
	assert.Equal(t, rootPath, detected[0].RootFile)
	require.Len(t, applied, 2)
	assert.True(t, applied[0].Opening)
	assert.Equal(t, pt(0, 9), applied[0].Caret)
	assert.False(t, applied[1].Opening)
	assert.Equal(t, Closing, applied[1].Replacement)
	assert.Equal(t, pt(0, 10), applied[1].Position)
}

// ============================================================================
// End to end with the engine
// ============================================================================

func typeKeys(t *testing.T, e *engine.Engine, keys string) {
	t.Helper()
	for _, r := range keys {
		require.NoError(t, e.Type(context.Background(), string(r)))
	}
}

func TestRoundTripWithEngine(t *testing.T) {
	e := engine.New(engine.WithContent("He said "))
	require.NoError(t, e.SetCaret(pt(0, 8)))

	s := New(WithRootFile(rootFile{rootPath}), WithFileReader(memRoot(t, withCSQuotes)))
	e.OnChange(func(ctx context.Context, ev events.DocumentChanged) error {
		return s.Handle(ctx, ev, e)
	})

	typeKeys(t, e, `"hello" and "bye".`)

	assert.Equal(t, `He said \enquote{hello} and \enquote{bye}.`, e.Text())
	assert.Equal(t, pt(0, len(e.Text())), e.Selection().Caret())
}

func TestRoundTripThroughBus(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	e := engine.New(engine.WithPublisher(bus))
	s := New(WithSettings(mode(registry.ModeTrue)), WithPublisher(bus))
	_, err := s.Subscribe(bus, func() Editor { return e })
	require.NoError(t, err)

	typeKeys(t, e, `"x"`)
	require.NoError(t, e.Type(context.Background(), "\n"))
	typeKeys(t, e, `"`)

	assert.Equal(t, "\\enquote{x}\n\\enquote{", e.Text())
}

func TestMultiCursorTypingIsIgnored(t *testing.T) {
	e := engine.New(engine.WithContent("a b"))
	require.NoError(t, e.SetCaret(pt(0, 1)))
	require.NoError(t, e.AddCaret(pt(0, 3)))

	s := New(WithSettings(mode(registry.ModeTrue)))
	e.OnChange(func(ctx context.Context, ev events.DocumentChanged) error {
		return s.Handle(ctx, ev, e)
	})

	typeKeys(t, e, `"`)

	assert.Equal(t, `a" b"`, e.Text())
}

func TestPasteIsIgnored(t *testing.T) {
	e := engine.New()
	s := New(WithSettings(mode(registry.ModeTrue)))
	e.OnChange(func(ctx context.Context, ev events.DocumentChanged) error {
		return s.Handle(ctx, ev, e)
	})

	require.NoError(t, e.Paste(context.Background(), `"quoted"`))

	assert.Equal(t, `"quoted"`, e.Text())
}

func TestSubscribeReportsErrorsToBus(t *testing.T) {
	var mu sync.Mutex
	var reported []error
	bus := event.NewBus(event.WithErrorHandler(func(_ any, err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))
	defer bus.Close()

	fsys := memRoot(t, withCSQuotes)
	fsys.FailReads(rootPath, fs.ErrPermission)
	e := engine.New(engine.WithPublisher(bus))
	s := New(WithRootFile(rootFile{rootPath}), WithFileReader(fsys))
	_, err := s.Subscribe(bus, func() Editor { return e })
	require.NoError(t, err)

	typeKeys(t, e, `"`)

	assert.Equal(t, `"`, e.Text())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	var detErr *DetectionError
	assert.ErrorAs(t, reported[0], &detErr)
}
