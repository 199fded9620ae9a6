package app

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dshills/enquote/internal/engine"
	"github.com/dshills/enquote/internal/event/events"
)

// Document is an open file and its editing engine.
type Document struct {
	// Name is the display name (file name or "Untitled").
	Name string

	// Engine holds the text and carets.
	Engine *engine.Engine

	modified atomic.Bool
	remove   func()
}

// newDocument wraps eng. Edits mark the document modified.
func newDocument(eng *engine.Engine) *Document {
	name := filepath.Base(eng.Path())
	if eng.Path() == "" {
		name = "Untitled"
	}
	doc := &Document{Name: name, Engine: eng}
	doc.remove = eng.OnChange(doc.markModified)
	return doc
}

// ID returns the document ID.
func (d *Document) ID() string {
	return d.Engine.ID()
}

// Path returns the absolute file path (empty for scratch documents).
func (d *Document) Path() string {
	return d.Engine.Path()
}

// IsModified returns true if the document has unsaved changes.
func (d *Document) IsModified() bool {
	return d.modified.Load()
}

// SetModified sets the modified flag.
func (d *Document) SetModified(modified bool) {
	d.modified.Store(modified)
}

func (d *Document) markModified(context.Context, events.DocumentChanged) error {
	d.modified.Store(true)
	return nil
}

// IsScratch returns true if the document has no file path.
func (d *Document) IsScratch() bool {
	return d.Engine.Path() == ""
}

// Content returns the full document content.
func (d *Document) Content() string {
	return d.Engine.Text()
}

// DocumentManager tracks open documents and the active one.
type DocumentManager struct {
	mu        sync.RWMutex
	documents map[string]*Document // id -> document
	byPath    map[string]string    // path -> id
	order     []string
	active    *Document
}

// NewDocumentManager creates a new document manager.
func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		documents: make(map[string]*Document),
		byPath:    make(map[string]string),
	}
}

// Add registers doc and makes it active.
func (dm *DocumentManager) Add(doc *Document) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	id := doc.ID()
	if _, exists := dm.documents[id]; !exists {
		dm.order = append(dm.order, id)
	}
	dm.documents[id] = doc
	if p := doc.Path(); p != "" {
		dm.byPath[p] = id
	}
	dm.active = doc
}

// Remove forgets the document with id. When it was active, the most
// recently opened remaining document becomes active.
func (dm *DocumentManager) Remove(id string) (*Document, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc, exists := dm.documents[id]
	if !exists {
		return nil, ErrDocumentNotFound
	}
	delete(dm.documents, id)
	if p := doc.Path(); p != "" && dm.byPath[p] == id {
		delete(dm.byPath, p)
	}
	for i, o := range dm.order {
		if o == id {
			dm.order = append(dm.order[:i], dm.order[i+1:]...)
			break
		}
	}
	doc.remove()

	if dm.active == doc {
		dm.active = nil
		if n := len(dm.order); n > 0 {
			dm.active = dm.documents[dm.order[n-1]]
		}
	}
	return doc, nil
}

// Active returns the active document, or nil.
func (dm *DocumentManager) Active() *Document {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.active
}

// SetActive makes the document with id active.
func (dm *DocumentManager) SetActive(id string) (*Document, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc, exists := dm.documents[id]
	if !exists {
		return nil, ErrDocumentNotFound
	}
	dm.active = doc
	return doc, nil
}

// Get returns a document by ID.
func (dm *DocumentManager) Get(id string) (*Document, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	doc, exists := dm.documents[id]
	return doc, exists
}

// ByPath returns the open document for an absolute path.
func (dm *DocumentManager) ByPath(path string) (*Document, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	id, ok := dm.byPath[path]
	if !ok {
		return nil, false
	}
	return dm.documents[id], true
}

// All returns the open documents in open order.
func (dm *DocumentManager) All() []*Document {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	docs := make([]*Document, 0, len(dm.order))
	for _, id := range dm.order {
		docs = append(docs, dm.documents[id])
	}
	return docs
}

// Count returns the number of open documents.
func (dm *DocumentManager) Count() int {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return len(dm.documents)
}
