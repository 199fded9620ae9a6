package project

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"

	"github.com/dshills/enquote/internal/config/registry"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/logging"
	"github.com/dshills/enquote/internal/project/vfs"
	"github.com/dshills/enquote/internal/project/watcher"
)

// DefaultScanTTL is how long a workspace scan result stays valid.
const DefaultScanTTL = 30 * time.Second

// Settings provides read access to configuration values.
type Settings interface {
	GetString(path string) (string, error)
	GetInt(path string) (int, error)
}

// Document is the subset of an open document the Manager inspects.
type Document interface {
	Path() string
	Text() string
}

// ActiveDocumentFunc returns the active document, or nil when none is open.
type ActiveDocumentFunc func() Document

// Publisher publishes events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// scanResult is a cached workspace scan. An empty path records that the
// scan found nothing.
type scanResult struct {
	path string
}

// Manager resolves the root file of the LaTeX project in a workspace.
type Manager struct {
	mu        sync.Mutex
	fs        vfs.VFS
	workspace string
	settings  Settings
	active    ActiveDocumentFunc
	publisher Publisher
	ignore    map[string]bool
	scanTTL   time.Duration
	scans     *ttlcache.Cache[string, scanResult]
	last      string
	log       *logrus.Entry

	// genMu guards gen, which Invalidate bumps so a scan that overlapped
	// it does not store its result.
	genMu sync.Mutex
	gen   uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithFS sets the file system. Defaults to the OS file system.
func WithFS(fs vfs.VFS) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithSettings sets the configuration source for latex.* settings.
func WithSettings(s Settings) Option {
	return func(m *Manager) { m.settings = s }
}

// WithActiveDocument sets the function returning the active document.
func WithActiveDocument(fn ActiveDocumentFunc) Option {
	return func(m *Manager) { m.active = fn }
}

// WithPublisher sets where project.root.changed is published.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithScanTTL overrides how long workspace scan results are cached.
func WithScanTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.scanTTL = ttl }
}

// WithIgnoreDirs replaces the directory names skipped by the workspace scan.
func WithIgnoreDirs(names ...string) Option {
	return func(m *Manager) {
		m.ignore = make(map[string]bool, len(names))
		for _, n := range names {
			m.ignore[n] = true
		}
	}
}

// NewManager creates a Manager for the given workspace directory.
// An empty workspace disables the configured-path and scan strategies.
func NewManager(workspace string, opts ...Option) *Manager {
	m := &Manager{
		fs:        vfs.NewOSFS(),
		workspace: workspace,
		scanTTL:   DefaultScanTTL,
		log:       logging.NewLogger("project"),
	}
	WithIgnoreDirs(watcher.DefaultSkipDirs...)(m)
	for _, opt := range opts {
		opt(m)
	}
	if m.workspace != "" {
		if abs, err := m.fs.Abs(m.workspace); err == nil {
			m.workspace = abs
		}
	}

	m.scans = ttlcache.New[string, scanResult](
		ttlcache.WithTTL[string, scanResult](m.scanTTL),
		ttlcache.WithDisableTouchOnHit[string, scanResult](),
	)
	go m.scans.Start()
	return m
}

// Workspace returns the absolute workspace directory.
func (m *Manager) Workspace() string {
	return m.workspace
}

// Close stops the scan cache expiration loop.
func (m *Manager) Close() {
	m.scans.Stop()
}

// RootFile returns the root file of the project, if one can be found.
func (m *Manager) RootFile() (string, bool) {
	path, _ := m.Resolve(context.Background())
	return path, path != ""
}

// Resolve finds the root file and reports which strategy found it.
// A change compared to the previous resolution publishes
// project.root.changed.
func (m *Manager) Resolve(ctx context.Context) (string, events.RootSource) {
	m.mu.Lock()
	path, src := m.resolve()
	old := m.last
	m.last = path
	m.mu.Unlock()

	if path != old {
		m.log.WithFields(logrus.Fields{
			"root":   path,
			"source": src,
		}).Debug("Root file changed")
		m.publish(ctx, events.ProjectRootChanged{OldRoot: old, NewRoot: path, Source: src})
	}
	return path, src
}

func (m *Manager) resolve() (string, events.RootSource) {
	if p, ok := m.configuredRoot(); ok {
		return p, events.RootSourceConfig
	}

	var doc Document
	if m.active != nil {
		doc = m.active()
	}
	if doc != nil && doc.Path() != "" {
		text := doc.Text()
		if p, ok := MagicRoot(text, filepath.Dir(doc.Path())); ok {
			if m.fs.Exists(p) {
				return p, events.RootSourceMagicComment
			}
			m.log.WithField("path", p).Warn("Magic root comment names a missing file")
		}
		if isTeXFile(doc.Path()) && IsRootDocument(text) {
			return doc.Path(), events.RootSourceActive
		}
	}

	if p, ok := m.scanWorkspace(); ok {
		return p, events.RootSourceWorkspace
	}
	return "", events.RootSourceNone
}

// configuredRoot returns latex.rootFile resolved against the workspace.
func (m *Manager) configuredRoot() (string, bool) {
	if m.settings == nil {
		return "", false
	}
	p, err := m.settings.GetString(registry.LatexRootFile)
	if err != nil || strings.TrimSpace(p) == "" {
		return "", false
	}
	p = strings.TrimSpace(p)
	if !filepath.IsAbs(p) {
		if m.workspace == "" {
			return "", false
		}
		p = filepath.Join(m.workspace, p)
	}
	p = filepath.Clean(p)
	if !m.fs.Exists(p) {
		m.log.WithField("path", p).Warn("Configured root file does not exist")
		return "", false
	}
	return p, true
}

func (m *Manager) searchDepth() int {
	if m.settings == nil {
		return registry.DefaultSearchDepth
	}
	depth, err := m.settings.GetInt(registry.LatexSearchDepth)
	if err != nil || depth < 0 {
		return registry.DefaultSearchDepth
	}
	return depth
}

// scanWorkspace returns the first root document found breadth-first.
func (m *Manager) scanWorkspace() (string, bool) {
	if m.workspace == "" {
		return "", false
	}
	depth := m.searchDepth()
	key := scanKey(m.workspace, depth)
	if item := m.scans.Get(key); item != nil {
		res := item.Value()
		return res.path, res.path != ""
	}

	gen := m.generation()
	path, err := m.scan(m.workspace, depth)
	if err != nil {
		m.log.WithError(err).Warn("Workspace scan failed")
		return "", false
	}
	m.log.WithFields(logrus.Fields{
		"workspace": m.workspace,
		"root":      path,
		"cached":    m.storeScan(key, gen, scanResult{path: path}),
	}).Debug("Workspace scanned")
	return path, path != ""
}

func (m *Manager) generation() uint64 {
	m.genMu.Lock()
	defer m.genMu.Unlock()
	return m.gen
}

// storeScan caches res unless Invalidate ran since gen was read.
func (m *Manager) storeScan(key string, gen uint64, res scanResult) bool {
	m.genMu.Lock()
	defer m.genMu.Unlock()
	if m.gen != gen {
		return false
	}
	m.scans.Set(key, res, ttlcache.DefaultTTL)
	return true
}

// scan walks root level by level, in lexical order within each directory.
// Directories deeper than depth levels below root are not entered.
func (m *Manager) scan(root string, depth int) (string, error) {
	level := []string{root}
	for d := 0; d <= depth && len(level) > 0; d++ {
		var next []string
		for _, dir := range level {
			entries, err := m.fs.ReadDir(dir)
			if err != nil {
				if dir == root {
					return "", &PathError{Op: "scan", Path: dir, Err: err}
				}
				continue
			}
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					if !strings.HasPrefix(name, ".") && !m.ignore[name] {
						next = append(next, filepath.Join(dir, name))
					}
					continue
				}
				if !isTeXFile(name) {
					continue
				}
				p := filepath.Join(dir, name)
				data, err := m.fs.ReadFile(p)
				if err != nil {
					continue
				}
				if IsRootDocument(string(data)) {
					return p, nil
				}
			}
		}
		level = next
	}
	return "", nil
}

// Invalidate drops cached scan results. It may run while a scan is in
// progress; that scan's result is then not cached.
func (m *Manager) Invalidate() {
	m.genMu.Lock()
	defer m.genMu.Unlock()
	m.gen++
	m.scans.DeleteAll()
}

// HandleWatchEvent drops cached scan results when a .tex file in the
// workspace changes.
func (m *Manager) HandleWatchEvent(ev watcher.Event) {
	if m.workspace == "" || !ev.HasExt(".tex") {
		return
	}
	rel, err := filepath.Rel(m.workspace, ev.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	m.log.WithFields(logrus.Fields{
		"path": ev.Path,
		"op":   ev.Op.String(),
	}).Debug("Invalidating workspace scan")
	m.Invalidate()
}

// Watch watches the workspace recursively and invalidates the scan cache on
// .tex changes. It blocks until ctx is cancelled or w is closed.
func (m *Manager) Watch(ctx context.Context, w watcher.Watcher) error {
	if m.workspace == "" {
		return ErrNoWorkspace
	}
	if err := w.WatchTree(m.workspace); err != nil && !errors.Is(err, watcher.ErrAlreadyWatching) {
		return &PathError{Op: "watch", Path: m.workspace, Err: err}
	}

	watcher.Run(ctx, w, m.HandleWatchEvent, func(err error) {
		m.log.WithError(err).Warn("Workspace watcher error")
	})
	return ctx.Err()
}

func (m *Manager) publish(ctx context.Context, payload events.ProjectRootChanged) {
	if m.publisher == nil {
		return
	}
	ev := event.NewEvent(events.TopicProjectRootChanged, payload, "project")
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.log.WithError(err).Warn("Publishing project.root.changed failed")
	}
}

func scanKey(workspace string, depth int) string {
	return workspace + "#" + strconv.Itoa(depth)
}
