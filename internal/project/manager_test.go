package project

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/enquote/internal/config/registry"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/project/vfs"
	"github.com/dshills/enquote/internal/project/watcher"
)

const rootTeX = "\\documentclass{article}\n\\usepackage{csquotes}\n\\begin{document}\n\\end{document}\n"

type mapSettings map[string]any

func (s mapSettings) GetString(path string) (string, error) {
	v, ok := s[path].(string)
	if !ok {
		return "", errors.New("not set")
	}
	return v, nil
}

func (s mapSettings) GetInt(path string) (int, error) {
	v, ok := s[path].(int)
	if !ok {
		return 0, errors.New("not set")
	}
	return v, nil
}

type doc struct {
	path, text string
}

func (d doc) Path() string { return d.path }
func (d doc) Text() string { return d.text }

type recorder struct {
	mu     sync.Mutex
	events []events.ProjectRootChanged
}

func (r *recorder) Publish(_ context.Context, ev any) error {
	e, ok := ev.(event.Event[events.ProjectRootChanged])
	if !ok {
		return nil
	}
	r.mu.Lock()
	r.events = append(r.events, e.Payload)
	r.mu.Unlock()
	return nil
}

func newTestManager(t *testing.T, fs *vfs.MemFS, opts ...Option) *Manager {
	t.Helper()
	m := NewManager("/work", append([]Option{WithFS(fs)}, opts...)...)
	t.Cleanup(m.Close)
	return m
}

func TestManager_ConfiguredRoot(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/thesis.tex", rootTeX))
	require.NoError(t, fs.AddFile("/work/a.tex", rootTeX))

	m := newTestManager(t, fs, WithSettings(mapSettings{registry.LatexRootFile: "thesis.tex"}))

	path, src := m.Resolve(context.Background())
	assert.Equal(t, "/work/thesis.tex", path)
	assert.Equal(t, events.RootSourceConfig, src)
}

func TestManager_ConfiguredRootMissingFallsThrough(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/a.tex", rootTeX))

	m := newTestManager(t, fs, WithSettings(mapSettings{registry.LatexRootFile: "gone.tex"}))

	path, src := m.Resolve(context.Background())
	assert.Equal(t, "/work/a.tex", path)
	assert.Equal(t, events.RootSourceWorkspace, src)
}

func TestManager_MagicComment(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/book.tex", rootTeX))
	require.NoError(t, fs.AddFile("/work/a.tex", rootTeX))
	active := doc{path: "/work/ch/one.tex", text: "% !TEX root = ../book.tex\n\\chapter{One}"}

	m := newTestManager(t, fs, WithActiveDocument(func() Document { return active }))

	path, src := m.Resolve(context.Background())
	assert.Equal(t, "/work/book.tex", path)
	assert.Equal(t, events.RootSourceMagicComment, src)
}

func TestManager_ActiveDocument(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/a.tex", rootTeX))
	active := doc{path: "/work/slides.tex", text: rootTeX}

	m := newTestManager(t, fs, WithActiveDocument(func() Document { return active }))

	path, src := m.Resolve(context.Background())
	assert.Equal(t, "/work/slides.tex", path)
	assert.Equal(t, events.RootSourceActive, src)
}

func TestManager_NilActiveDocument(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/main.tex", rootTeX))

	m := newTestManager(t, fs, WithActiveDocument(func() Document { return nil }))

	path, ok := m.RootFile()
	assert.True(t, ok)
	assert.Equal(t, "/work/main.tex", path)
}

func TestManager_ScanIsBreadthFirstAndLexical(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/aaa/deep.tex", rootTeX))
	require.NoError(t, fs.AddFile("/work/z.tex", rootTeX))
	require.NoError(t, fs.AddFile("/work/b.tex", rootTeX))
	require.NoError(t, fs.AddFile("/work/a.tex", "\\section{Not a root}"))

	m := newTestManager(t, fs)

	path, ok := m.RootFile()
	assert.True(t, ok)
	assert.Equal(t, "/work/b.tex", path)
}

func TestManager_ScanSkipsHiddenAndIgnored(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/.git/x.tex", rootTeX))
	require.NoError(t, fs.AddFile("/work/_minted/x.tex", rootTeX))
	require.NoError(t, fs.AddFile("/work/src/main.tex", rootTeX))

	m := newTestManager(t, fs)

	path, _ := m.RootFile()
	assert.Equal(t, "/work/src/main.tex", path)
}

func TestManager_ScanDepth(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/a/b/main.tex", rootTeX))

	shallow := NewManager("/work", WithFS(fs), WithSettings(mapSettings{registry.LatexSearchDepth: 1}))
	defer shallow.Close()
	_, ok := shallow.RootFile()
	assert.False(t, ok)

	deep := NewManager("/work", WithFS(fs), WithSettings(mapSettings{registry.LatexSearchDepth: 2}))
	defer deep.Close()
	path, ok := deep.RootFile()
	assert.True(t, ok)
	assert.Equal(t, "/work/a/b/main.tex", path)
}

func TestManager_NoRoot(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/notes.txt", "nothing"))

	m := newTestManager(t, fs)

	path, src := m.Resolve(context.Background())
	assert.Empty(t, path)
	assert.Equal(t, events.RootSourceNone, src)
}

func TestManager_NoWorkspace(t *testing.T) {
	m := NewManager("", WithFS(vfs.NewMemFS()))
	defer m.Close()

	_, ok := m.RootFile()
	assert.False(t, ok)
	assert.ErrorIs(t, m.Watch(context.Background(), nil), ErrNoWorkspace)
}

func TestManager_ScanCachedUntilInvalidated(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/sub/main.tex", rootTeX))

	m := newTestManager(t, fs)

	path, _ := m.RootFile()
	assert.Equal(t, "/work/sub/main.tex", path)

	require.NoError(t, fs.AddFile("/work/a.tex", rootTeX))
	path, _ = m.RootFile()
	assert.Equal(t, "/work/sub/main.tex", path, "cached scan is reused")

	m.HandleWatchEvent(watcher.Event{Path: "/work/notes.md", Op: watcher.OpCreate})
	path, _ = m.RootFile()
	assert.Equal(t, "/work/sub/main.tex", path, "non-tex events keep the cache")

	m.HandleWatchEvent(watcher.Event{Path: "/work/a.tex", Op: watcher.OpCreate})
	path, _ = m.RootFile()
	assert.Equal(t, "/work/a.tex", path)
}

// changingFS runs onReadDir the first time dir is listed.
type changingFS struct {
	*vfs.MemFS
	dir       string
	once      sync.Once
	onReadDir func()
}

func (c *changingFS) ReadDir(path string) ([]vfs.FileInfo, error) {
	if path == c.dir {
		c.once.Do(c.onReadDir)
	}
	return c.MemFS.ReadDir(path)
}

func TestManager_InvalidateDuringScan(t *testing.T) {
	mem := vfs.NewMemFS()
	require.NoError(t, mem.AddFile("/work/sub/main.tex", rootTeX))

	fs := &changingFS{MemFS: mem, dir: "/work/sub"}
	m := NewManager("/work", WithFS(fs))
	t.Cleanup(m.Close)

	// A root file appears at the top level after it was listed, and the
	// watcher invalidates while the scan is still below it.
	fs.onReadDir = func() {
		require.NoError(t, mem.AddFile("/work/a.tex", rootTeX))
		m.Invalidate()
	}

	path, _ := m.RootFile()
	assert.Equal(t, "/work/sub/main.tex", path)

	path, _ = m.RootFile()
	assert.Equal(t, "/work/a.tex", path, "a scan overlapping Invalidate is not cached")

	require.NoError(t, mem.Remove("/work/a.tex"))
	path, _ = m.RootFile()
	assert.Equal(t, "/work/a.tex", path, "later scans are cached again")
}

func TestManager_NegativeScanCached(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.MkdirAll("/work", 0o755))

	m := newTestManager(t, fs)
	_, ok := m.RootFile()
	assert.False(t, ok)

	require.NoError(t, fs.AddFile("/work/main.tex", rootTeX))
	_, ok = m.RootFile()
	assert.False(t, ok)

	m.Invalidate()
	_, ok = m.RootFile()
	assert.True(t, ok)
}

func TestManager_ScanExpires(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.MkdirAll("/work", 0o755))

	m := newTestManager(t, fs, WithScanTTL(20*time.Millisecond))
	_, ok := m.RootFile()
	require.False(t, ok)

	require.NoError(t, fs.AddFile("/work/main.tex", rootTeX))
	assert.Eventually(t, func() bool {
		_, ok := m.RootFile()
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestManager_PublishesRootChanges(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/main.tex", rootTeX))
	rec := &recorder{}

	m := newTestManager(t, fs, WithPublisher(rec))

	m.RootFile()
	m.RootFile()
	require.Len(t, rec.events, 1)
	assert.Equal(t, events.ProjectRootChanged{
		OldRoot: "",
		NewRoot: "/work/main.tex",
		Source:  events.RootSourceWorkspace,
	}, rec.events[0])

	require.NoError(t, fs.Remove("/work/main.tex"))
	m.Invalidate()
	m.RootFile()
	require.Len(t, rec.events, 2)
	assert.Equal(t, "/work/main.tex", rec.events[1].OldRoot)
	assert.Empty(t, rec.events[1].NewRoot)
}

func TestManager_PublishesThroughBus(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/work/main.tex", rootTeX))
	bus := event.NewBus()
	defer bus.Close()

	var got []string
	_, err := bus.Subscribe(events.TopicProjectRootChanged, event.Typed(func(_ context.Context, ev event.Event[events.ProjectRootChanged]) error {
		got = append(got, ev.Payload.NewRoot)
		return nil
	}))
	require.NoError(t, err)

	m := newTestManager(t, fs, WithPublisher(bus))
	m.RootFile()

	assert.Equal(t, []string{"/work/main.tex"}, got)
}

func TestManager_HandleWatchEventOutsideWorkspace(t *testing.T) {
	fs := vfs.NewMemFS()
	require.NoError(t, fs.MkdirAll("/work", 0o755))
	m := newTestManager(t, fs)
	m.RootFile()

	require.NoError(t, fs.AddFile("/work/main.tex", rootTeX))
	m.HandleWatchEvent(watcher.Event{Path: "/elsewhere/x.tex", Op: watcher.OpWrite})

	_, ok := m.RootFile()
	assert.False(t, ok)
}
