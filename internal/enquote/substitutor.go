package enquote

import (
	"context"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/dshills/enquote/internal/config/registry"
	"github.com/dshills/enquote/internal/engine/buffer"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/event/topic"
	"github.com/dshills/enquote/internal/logging"
)

// Delimiters and the import marker.
const (
	Opening       = `\enquote{`
	Closing       = `}`
	PackageMarker = `\usepackage{csquotes}`
	quote         = `"`
)

// TextSurface is the editable view of the active document.
type TextSurface interface {
	// TextRange returns the text covered by r.
	TextRange(r buffer.Range) (string, error)

	// Replace replaces the text covered by r in one edit.
	Replace(ctx context.Context, r buffer.Range, text string) error

	// SetCaret collapses the selection to a caret at p.
	SetCaret(p buffer.Point) error
}

// Editor is the active editor: a document identity plus its text surface.
type Editor interface {
	TextSurface
	ID() string
}

// Settings provides read access to configuration values.
type Settings interface {
	GetString(path string) (string, error)
}

// RootFileProvider locates the project's root file.
type RootFileProvider interface {
	RootFile() (string, bool)
}

// FileReader reads whole files.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Publisher publishes events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Substitutor replaces typed quotes in the active document.
type Substitutor struct {
	// handleMu serialises Handle.
	handleMu sync.Mutex

	// mu guards packageSignalFound.
	mu sync.Mutex

	settings  Settings
	project   RootFileProvider
	files     FileReader
	publisher Publisher
	log       *logrus.Entry

	// packageSignalFound is set the first time the csquotes import is
	// seen and never cleared.
	packageSignalFound bool
}

// Option configures a Substitutor.
type Option func(*Substitutor)

// WithSettings sets where enquote.active is read from.
func WithSettings(s Settings) Option {
	return func(s2 *Substitutor) { s2.settings = s }
}

// WithRootFile sets the root file provider used in auto mode.
func WithRootFile(p RootFileProvider) Option {
	return func(s *Substitutor) { s.project = p }
}

// WithFileReader sets how the root file is read.
func WithFileReader(r FileReader) Option {
	return func(s *Substitutor) { s.files = r }
}

// WithPublisher publishes enquote.* events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Substitutor) { s.publisher = p }
}

// New creates a Substitutor.
func New(opts ...Option) *Substitutor {
	s := &Substitutor{
		log: logging.NewLogger("enquote"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle inspects a document change and, when it is a single typed quote
// in the active editor and the policy allows it, replaces the quote with a
// delimiter and moves the caret after it.
func (s *Substitutor) Handle(ctx context.Context, ev events.DocumentChanged, active Editor) error {
	if active == nil {
		s.log.Debug("Skipping change: no active editor")
		return nil
	}
	if ev.DocumentID != active.ID() {
		s.log.WithField("document", ev.DocumentID).Debug("Skipping change: document is not active")
		return nil
	}
	if len(ev.Changes) != 1 {
		s.log.WithField("changes", len(ev.Changes)).Debug("Skipping change: not a single change")
		return nil
	}
	change := ev.Changes[0]
	if change.Text != quote {
		return nil
	}

	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	ok, err := s.ShallEnquote()
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("Skipping quote: enquote inactive")
		return nil
	}
	return s.substitute(ctx, ev.DocumentID, change.Range, active)
}

// substitute replaces the quote inserted at r.Start.
func (s *Substitutor) substitute(ctx context.Context, docID string, r buffer.Range, surface TextSurface) error {
	start := r.Start
	target := buffer.NewRange(start, start.Translate(1))

	replacement, err := s.delimiterAt(start, surface)
	if err != nil {
		return err
	}

	if err := surface.Replace(ctx, target, replacement); err != nil {
		return err
	}
	caret := start.Translate(utf8.RuneCountInString(replacement))
	if err := surface.SetCaret(caret); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"document":    docID,
		"position":    start.String(),
		"replacement": replacement,
	}).Debug("Replaced quote")

	publish(ctx, s, events.TopicEnquoteApplied, events.EnquoteApplied{
		DocumentID:  docID,
		Replacement: replacement,
		Opening:     replacement == Opening,
		Position:    start,
		Caret:       caret,
	})
	return nil
}

// delimiterAt chooses Opening at the start of a line or after whitespace,
// and Closing otherwise.
func (s *Substitutor) delimiterAt(start buffer.Point, surface TextSurface) (string, error) {
	if start.Column == 0 {
		return Opening, nil
	}
	before, err := surface.TextRange(buffer.NewRange(start.Translate(-1), start))
	if err != nil {
		return "", err
	}
	r, _ := utf8.DecodeRuneInString(before)
	if r != utf8.RuneError && unicode.IsSpace(r) {
		return Opening, nil
	}
	return Closing, nil
}

// ShallEnquote reports whether typed quotes should currently be replaced.
func (s *Substitutor) ShallEnquote() (bool, error) {
	switch s.Mode() {
	case registry.ModeFalse:
		return false, nil
	case registry.ModeTrue:
		return true, nil
	default:
		return s.EnquotePackageImported()
	}
}

// Mode returns the effective enquote.active value. Unknown or unreadable
// values behave as auto.
func (s *Substitutor) Mode() string {
	if s.settings == nil {
		return registry.ModeAuto
	}
	v, err := s.settings.GetString(registry.EnquoteActive)
	if err != nil {
		return registry.ModeAuto
	}
	switch v {
	case registry.ModeTrue, registry.ModeFalse:
		return v
	}
	return registry.ModeAuto
}

// EnquotePackageImported reports whether the root file imports csquotes.
// A positive answer is remembered; a negative one is re-checked next time.
func (s *Substitutor) EnquotePackageImported() (bool, error) {
	found, root, err := s.detect()
	if root != "" {
		publish(context.Background(), s, events.TopicEnquotePackageDetected, events.EnquotePackageDetected{RootFile: root})
	}
	return found, err
}

// detect checks the root file. root is set only when this call confirmed
// the import for the first time.
func (s *Substitutor) detect() (found bool, root string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.packageSignalFound {
		return true, "", nil
	}
	if s.project == nil || s.files == nil {
		return false, "", nil
	}
	path, ok := s.project.RootFile()
	if !ok || path == "" {
		s.log.Debug("No root file; csquotes not detected")
		return false, "", nil
	}

	data, err := s.files.ReadFile(path)
	if err != nil {
		return false, "", &DetectionError{Path: path, Err: err}
	}
	if !strings.Contains(string(data), PackageMarker) {
		return false, "", nil
	}

	s.packageSignalFound = true
	s.log.WithField("root", path).Info("csquotes import detected")
	return true, path, nil
}

// Detected reports whether the csquotes import has been confirmed.
func (s *Substitutor) Detected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packageSignalFound
}

func publish[T any](ctx context.Context, s *Substitutor, t topic.Topic, payload T) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event.NewEvent(t, payload, "enquote")); err != nil {
		s.log.WithError(err).WithField("topic", t).Warn("Publishing event failed")
	}
}
