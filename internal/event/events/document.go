package events

import (
	"github.com/dshills/enquote/internal/engine/buffer"
	"github.com/dshills/enquote/internal/event/topic"
)

// Document event topics.
const (
	// TopicDocumentChanged is published after the content of a document changed.
	TopicDocumentChanged topic.Topic = "document.changed"

	// TopicDocumentActivated is published when a document becomes the active one.
	TopicDocumentActivated topic.Topic = "document.activated"

	// TopicDocumentClosed is published when a document is closed.
	TopicDocumentClosed topic.Topic = "document.closed"
)

// ContentChange describes one edit within a DocumentChanged event.
type ContentChange struct {
	// Range is the range that was replaced, in pre-edit coordinates.
	// For a plain insertion it is empty and marks the insertion point.
	Range buffer.Range

	// Text is the inserted text. Empty for pure deletions.
	Text string
}

// IsInsertion returns true if the change only inserted text.
func (c ContentChange) IsInsertion() bool {
	return c.Range.IsEmpty() && c.Text != ""
}

// DocumentChanged is published after one edit operation touched a document.
// An edit made with several carets produces one event with one change per
// caret, in document order.
type DocumentChanged struct {
	// DocumentID identifies the changed document.
	DocumentID string

	// Path is the document's file path (empty for scratch documents).
	Path string

	// Changes lists the individual content changes.
	Changes []ContentChange
}

// DocumentActivated is published when the active document changes.
type DocumentActivated struct {
	// DocumentID identifies the newly active document.
	DocumentID string

	// Path is the document's file path.
	Path string
}

// DocumentClosed is published when a document is closed.
type DocumentClosed struct {
	// DocumentID identifies the closed document.
	DocumentID string
}
