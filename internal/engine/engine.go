package engine

import (
	"context"
	"io"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dshills/enquote/internal/engine/buffer"
	"github.com/dshills/enquote/internal/engine/cursor"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/logging"
)

// Re-export commonly used types for convenience.
type (
	// Point represents a line/column position.
	Point = buffer.Point

	// Range represents a span between two points.
	Range = buffer.Range

	// Selection represents a cursor selection.
	Selection = cursor.Selection

	// LineEnding specifies the line ending style.
	LineEnding = buffer.LineEnding
)

// ChangeListener is called after each edit of the document.
// A returned error is logged; it does not undo the edit.
type ChangeListener func(ctx context.Context, ev events.DocumentChanged) error

// Engine is the editing facade for a single document.
// It combines the buffer and the cursor set into a thread-safe API and
// reports every edit to its listeners.
type Engine struct {
	mu sync.RWMutex

	id   string
	path string

	buf     *buffer.Buffer
	cursors *cursor.CursorSet

	lineEnding  *buffer.LineEnding
	initContent string

	publisher Publisher
	log       *logrus.Entry

	lmu       sync.Mutex
	listeners map[uint64]ChangeListener
	nextID    uint64

	// dmu guards delivery state.
	dmu        sync.Mutex
	delivering bool
	pending    []pendingChange
}

type pendingChange struct {
	ctx context.Context
	ev  events.DocumentChanged
}

// New creates a new Engine with the given options.
func New(opts ...Option) *Engine {
	e := newEngine(opts)
	e.buf = buffer.NewBufferFromString(e.initContent, e.bufferOptions()...)
	e.initContent = ""
	return e
}

// NewFromReader creates an Engine from an io.Reader.
func NewFromReader(r io.Reader, opts ...Option) (*Engine, error) {
	e := newEngine(opts)
	buf, err := buffer.NewBufferFromReader(r, e.bufferOptions()...)
	if err != nil {
		return nil, err
	}
	e.buf = buf
	return e, nil
}

func newEngine(opts []Option) *Engine {
	e := &Engine{
		id:        uuid.NewString(),
		cursors:   cursor.NewCursorSetAt(Point{}),
		listeners: make(map[uint64]ChangeListener),
		log:       logging.NewLogger("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) bufferOptions() []buffer.Option {
	if e.lineEnding == nil {
		return nil
	}
	return []buffer.Option{buffer.WithLineEnding(*e.lineEnding)}
}

// ============================================================================
// Identity
// ============================================================================

// ID returns the unique document ID.
func (e *Engine) ID() string {
	return e.id
}

// Path returns the document's file path (empty for scratch documents).
func (e *Engine) Path() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.path
}

// SetPath changes the document's file path.
func (e *Engine) SetPath(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.path = path
}

// ============================================================================
// Read Operations
// ============================================================================

// Text returns the full document content with LF line endings.
func (e *Engine) Text() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.buf.Text()
}

// EncodedText returns the document content using its original line endings.
func (e *Engine) EncodedText() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.buf.EncodedText()
}

// TextRange returns the text covered by r.
func (e *Engine) TextRange(r Range) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.buf.TextRange(r)
}

// LineCount returns the number of lines.
func (e *Engine) LineCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.buf.LineCount()
}

// LineText returns the text of a specific line (without newline).
func (e *Engine) LineText(line int) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.buf.LineText(line)
}

// LineLen returns the length of a line in characters.
func (e *Engine) LineLen(line int) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.buf.LineLen(line)
}

// LineEnding returns the document's line ending style.
func (e *Engine) LineEnding() LineEnding {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.buf.LineEnding()
}

// ============================================================================
// Cursor Operations
// ============================================================================

// Selection returns the primary selection.
func (e *Engine) Selection() Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cursors.Primary()
}

// Selections returns all selections in document order.
func (e *Engine) Selections() []Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cursors.All()
}

// SetCaret collapses all selections into a single caret at p.
func (e *Engine) SetCaret(p Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.buf.ValidPoint(p) {
		return ErrPointOutOfRange
	}
	e.cursors.Set(cursor.NewCaret(p))
	return nil
}

// AddCaret adds a secondary caret at p.
func (e *Engine) AddCaret(p Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.buf.ValidPoint(p) {
		return ErrPointOutOfRange
	}
	e.cursors.Add(cursor.NewCaret(p))
	return nil
}

// Select replaces all selections with a single selection.
func (e *Engine) Select(anchor, head Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.buf.ValidPoint(anchor) || !e.buf.ValidPoint(head) {
		return ErrPointOutOfRange
	}
	e.cursors.Set(cursor.NewSelection(anchor, head))
	return nil
}

// ============================================================================
// Write Operations
// ============================================================================

// Type inserts text at every selection, replacing selected text.
// One DocumentChanged event is emitted with one change per selection.
func (e *Engine) Type(ctx context.Context, text string) error {
	return e.editSelections(ctx, func(sel Selection) (Range, bool) {
		return sel.Range(), true
	}, text)
}

// Paste inserts text at every selection. It behaves like Type and exists
// so callers can express multi-character insertions.
func (e *Engine) Paste(ctx context.Context, text string) error {
	return e.Type(ctx, text)
}

// Delete removes the selected text, or the character before each caret.
func (e *Engine) Delete(ctx context.Context) error {
	return e.editSelections(ctx, func(sel Selection) (Range, bool) {
		if !sel.IsEmpty() {
			return sel.Range(), true
		}
		p := sel.Caret()
		switch {
		case p.Column > 0:
			return buffer.NewRange(p.Translate(-1), p), true
		case p.Line > 0:
			prev := Point{Line: p.Line - 1, Column: e.buf.LineLen(p.Line - 1)}
			return buffer.NewRange(prev, p), true
		}
		return Range{}, false
	}, "")
}

// Replace replaces the text covered by r. Carets after the range are
// shifted; carets inside it move to the end of the new text. The emitted
// change carries the replaced range, so it is never a plain insertion.
func (e *Engine) Replace(ctx context.Context, r Range, text string) error {
	e.mu.Lock()
	result, err := e.buf.Replace(r, text)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	sels := e.cursors.All()
	for i, sel := range sels {
		sels[i] = cursor.NewSelection(remapPoint(sel.Anchor, result), remapPoint(sel.Head, result))
	}
	e.cursors.SetAll(sels)
	ev := e.changeEvent([]events.ContentChange{{Range: r, Text: result.NewText}})
	e.mu.Unlock()

	e.deliver(ctx, ev)
	return nil
}

// editSelections replaces the range chosen by target for every selection
// with text. Edits are applied from the end of the document backwards so
// the pre-edit ranges stay valid while applying.
func (e *Engine) editSelections(ctx context.Context, target func(Selection) (Range, bool), text string) error {
	e.mu.Lock()

	var ranges []Range
	for _, sel := range e.cursors.All() {
		if r, ok := target(sel); ok {
			ranges = append(ranges, r)
		}
	}
	if len(ranges) == 0 {
		e.mu.Unlock()
		return nil
	}

	carets := make([]Point, len(ranges))
	var newText string
	for i := len(ranges) - 1; i >= 0; i-- {
		result, err := e.buf.Replace(ranges[i], text)
		if err != nil {
			e.mu.Unlock()
			return err
		}
		newText = result.NewText
		carets[i] = result.NewRange.End
		for j := i + 1; j < len(carets); j++ {
			carets[j] = shiftPoint(carets[j], result)
		}
	}

	sels := make([]Selection, len(carets))
	changes := make([]events.ContentChange, len(ranges))
	for i := range ranges {
		sels[i] = cursor.NewCaret(carets[i])
		changes[i] = events.ContentChange{Range: ranges[i], Text: newText}
	}
	e.cursors.SetAll(sels)
	ev := e.changeEvent(changes)
	e.mu.Unlock()

	e.deliver(ctx, ev)
	return nil
}

// changeEvent builds the event for changes. Caller holds the lock.
func (e *Engine) changeEvent(changes []events.ContentChange) events.DocumentChanged {
	return events.DocumentChanged{
		DocumentID: e.id,
		Path:       e.path,
		Changes:    changes,
	}
}

// shiftPoint moves p, which lies at or after the edited range, by the
// effect of the edit.
func shiftPoint(p Point, res buffer.EditResult) Point {
	old := res.OldRange.End
	if p.Before(old) {
		return p
	}
	if p.Line == old.Line {
		return Point{Line: res.NewRange.End.Line, Column: res.NewRange.End.Column + p.Column - old.Column}
	}
	return Point{Line: p.Line + res.NewRange.End.Line - old.Line, Column: p.Column}
}

// remapPoint maps any pre-edit point to post-edit coordinates.
func remapPoint(p Point, res buffer.EditResult) Point {
	if !p.After(res.OldRange.Start) {
		return p
	}
	if p.Before(res.OldRange.End) {
		return res.NewRange.End
	}
	return shiftPoint(p, res)
}

// ============================================================================
// Change Delivery
// ============================================================================

// OnChange registers a listener for document changes.
// It returns a function that removes the listener.
func (e *Engine) OnChange(fn ChangeListener) (remove func()) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	e.nextID++
	id := e.nextID
	e.listeners[id] = fn
	return func() {
		e.lmu.Lock()
		defer e.lmu.Unlock()
		delete(e.listeners, id)
	}
}

// deliver hands ev to listeners and the publisher. Events raised while a
// delivery is running are queued behind it.
func (e *Engine) deliver(ctx context.Context, ev events.DocumentChanged) {
	e.dmu.Lock()
	e.pending = append(e.pending, pendingChange{ctx: ctx, ev: ev})
	if e.delivering {
		e.dmu.Unlock()
		return
	}
	e.delivering = true
	e.dmu.Unlock()

	for {
		e.dmu.Lock()
		if len(e.pending) == 0 {
			e.delivering = false
			e.dmu.Unlock()
			return
		}
		next := e.pending[0]
		e.pending = e.pending[1:]
		e.dmu.Unlock()

		e.dispatch(next.ctx, next.ev)
	}
}

func (e *Engine) dispatch(ctx context.Context, ev events.DocumentChanged) {
	e.lmu.Lock()
	ids := make([]uint64, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	e.lmu.Unlock()
	slices.Sort(ids)

	for _, id := range ids {
		e.lmu.Lock()
		fn, ok := e.listeners[id]
		e.lmu.Unlock()
		if !ok {
			continue
		}
		if err := fn(ctx, ev); err != nil {
			e.log.WithError(err).WithField("document", e.id).Warn("Change listener failed")
		}
	}

	if e.publisher != nil {
		err := e.publisher.Publish(ctx, event.NewEvent(events.TopicDocumentChanged, ev, "engine"))
		if err != nil {
			e.log.WithError(err).WithField("document", e.id).Warn("Publishing document.changed failed")
		}
	}
}
