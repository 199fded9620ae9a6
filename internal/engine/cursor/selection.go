package cursor

import (
	"fmt"

	"github.com/dshills/enquote/internal/engine/buffer"
)

// Point is an alias for buffer.Point for convenience.
type Point = buffer.Point

// Range is an alias for buffer.Range for convenience.
type Range = buffer.Range

// Selection represents a range of selected text.
// Anchor is where the selection started; Head is the current caret position.
// When Anchor == Head, this represents a caret with no selection.
type Selection struct {
	Anchor Point // Where selection started
	Head   Point // Current caret position (where typing occurs)
}

// NewSelection creates a selection from anchor to head.
func NewSelection(anchor, head Point) Selection {
	return Selection{Anchor: anchor, Head: head}
}

// NewCaret creates a selection representing just a caret (no extent).
func NewCaret(p Point) Selection {
	return Selection{Anchor: p, Head: p}
}

// IsEmpty returns true if the selection has no extent (just a caret).
func (s Selection) IsEmpty() bool {
	return s.Anchor == s.Head
}

// Range returns the selection as a range (always Start <= End).
func (s Selection) Range() Range {
	if s.Anchor.Compare(s.Head) <= 0 {
		return Range{Start: s.Anchor, End: s.Head}
	}
	return Range{Start: s.Head, End: s.Anchor}
}

// Start returns the lower bound of the selection.
func (s Selection) Start() Point {
	return s.Range().Start
}

// End returns the upper bound of the selection.
func (s Selection) End() Point {
	return s.Range().End
}

// Caret returns the head position (where typing would occur).
func (s Selection) Caret() Point {
	return s.Head
}

// Extend returns a new selection with the head moved to p.
// The anchor remains fixed.
func (s Selection) Extend(p Point) Selection {
	return Selection{Anchor: s.Anchor, Head: p}
}

// MoveTo returns a new collapsed selection (caret) at p.
func (s Selection) MoveTo(p Point) Selection {
	return NewCaret(p)
}

// Collapse collapses the selection to a caret at the head.
func (s Selection) Collapse() Selection {
	return NewCaret(s.Head)
}

// Merge returns the smallest selection covering both s and other.
// The result is always a forward selection.
func (s Selection) Merge(other Selection) Selection {
	start, end := s.Start(), s.End()
	if other.Start().Before(start) {
		start = other.Start()
	}
	if other.End().After(end) {
		end = other.End()
	}
	return Selection{Anchor: start, Head: end}
}

// String returns a human-readable representation of the selection.
func (s Selection) String() string {
	if s.IsEmpty() {
		return fmt.Sprintf("Caret%s", s.Head)
	}
	return fmt.Sprintf("Selection%s->%s", s.Anchor, s.Head)
}
