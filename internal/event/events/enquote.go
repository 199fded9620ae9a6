package events

import (
	"github.com/dshills/enquote/internal/engine/buffer"
	"github.com/dshills/enquote/internal/event/topic"
)

// Enquote event topics.
const (
	// TopicEnquoteApplied is published after a quote was replaced by a delimiter.
	TopicEnquoteApplied topic.Topic = "enquote.applied"

	// TopicEnquotePackageDetected is published the first time the csquotes
	// import is confirmed in the root file.
	TopicEnquotePackageDetected topic.Topic = "enquote.package.detected"
)

// EnquoteApplied is published after a substitution.
type EnquoteApplied struct {
	// DocumentID identifies the edited document.
	DocumentID string

	// Replacement is the delimiter text that replaced the quote.
	Replacement string

	// Opening is true when Replacement is the opening delimiter.
	Opening bool

	// Position is where the delimiter starts.
	Position buffer.Point

	// Caret is the caret position after the substitution.
	Caret buffer.Point
}

// EnquotePackageDetected is published once per session when auto mode
// finds the csquotes import.
type EnquotePackageDetected struct {
	// RootFile is the scanned root document.
	RootFile string
}
