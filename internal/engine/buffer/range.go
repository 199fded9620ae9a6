package buffer

import "fmt"

// Range represents a span between two points.
// Start is inclusive, End is exclusive: [Start, End).
type Range struct {
	Start Point // Inclusive start position
	End   Point // Exclusive end position
}

// NewRange creates a new Range from start and end points.
func NewRange(start, end Point) Range {
	return Range{Start: start, End: end}
}

// CaretRange returns an empty range at p.
func CaretRange(p Point) Range {
	return Range{Start: p, End: p}
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	return fmt.Sprintf("[%s:%s)", r.Start.String(), r.End.String())
}

// IsEmpty returns true if start equals end.
func (r Range) IsEmpty() bool {
	return r.Start.Compare(r.End) == 0
}

// IsValid returns true if start <= end and neither point is negative.
func (r Range) IsValid() bool {
	if r.Start.Line < 0 || r.Start.Column < 0 || r.End.Line < 0 || r.End.Column < 0 {
		return false
	}
	return r.Start.Compare(r.End) <= 0
}

// Contains returns true if the given point is within the range.
func (r Range) Contains(p Point) bool {
	return p.Compare(r.Start) >= 0 && p.Compare(r.End) < 0
}

// IsSingleLine returns true if the range spans only one line.
func (r Range) IsSingleLine() bool {
	return r.Start.Line == r.End.Line
}

// WithEnd returns a copy of the range with a different end point.
func (r Range) WithEnd(end Point) Range {
	return Range{Start: r.Start, End: end}
}
