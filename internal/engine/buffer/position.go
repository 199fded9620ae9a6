package buffer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Point represents a line and column position.
// Both Line and Column are 0-indexed.
// Column is measured in characters from the start of the line.
type Point struct {
	Line   int // 0-indexed line number
	Column int // 0-indexed column (character offset within line)
}

// String returns a human-readable representation of the point.
func (p Point) String() string {
	return fmt.Sprintf("(%d:%d)", p.Line, p.Column)
}

// Compare returns -1 if p < other, 0 if p == other, 1 if p > other.
func (p Point) Compare(other Point) int {
	if p.Line < other.Line {
		return -1
	}
	if p.Line > other.Line {
		return 1
	}
	if p.Column < other.Column {
		return -1
	}
	if p.Column > other.Column {
		return 1
	}
	return 0
}

// Before returns true if p comes before other.
func (p Point) Before(other Point) bool {
	return p.Compare(other) < 0
}

// After returns true if p comes after other.
func (p Point) After(other Point) bool {
	return p.Compare(other) > 0
}

// IsZero returns true if this is the zero point (0:0).
func (p Point) IsZero() bool {
	return p.Line == 0 && p.Column == 0
}

// Translate returns the point moved by the given number of columns on the
// same line.
func (p Point) Translate(columns int) Point {
	return Point{Line: p.Line, Column: p.Column + columns}
}

// PointAfter returns the position immediately after text when text is
// inserted at start.
func PointAfter(start Point, text string) Point {
	last := strings.LastIndexByte(text, '\n')
	if last < 0 {
		return Point{Line: start.Line, Column: start.Column + utf8.RuneCountInString(text)}
	}
	return Point{
		Line:   start.Line + strings.Count(text, "\n"),
		Column: utf8.RuneCountInString(text[last+1:]),
	}
}
