package buffer

import (
	"errors"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// Errors returned by buffer operations.
var (
	ErrPointOutOfRange = errors.New("point out of range")
	ErrRangeInvalid    = errors.New("invalid range")
)

// LineEnding specifies the line ending style.
type LineEnding uint8

const (
	LineEndingLF   LineEnding = iota // Unix: \n
	LineEndingCRLF                   // Windows: \r\n
	LineEndingCR                     // Old Mac: \r
)

// String returns the string representation of the line ending.
func (le LineEnding) String() string {
	switch le {
	case LineEndingCRLF:
		return "\\r\\n"
	case LineEndingCR:
		return "\\r"
	default:
		return "\\n"
	}
}

// Sequence returns the actual line ending characters.
func (le LineEnding) Sequence() string {
	switch le {
	case LineEndingCRLF:
		return "\r\n"
	case LineEndingCR:
		return "\r"
	default:
		return "\n"
	}
}

// Buffer holds document text as a slice of lines.
// All methods are thread-safe.
type Buffer struct {
	mu         sync.RWMutex
	lines      []string
	lineEnding LineEnding
}

// NewBuffer creates a new empty buffer.
// An empty buffer has exactly one empty line.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		lines:      []string{""},
		lineEnding: LineEndingLF,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// NewBufferFromString creates a buffer with initial content.
// The line ending style is detected from the content unless overridden.
func NewBufferFromString(s string, opts ...Option) *Buffer {
	all := append([]Option{WithLineEnding(DetectLineEnding(s))}, opts...)
	b := NewBuffer(all...)
	b.lines = strings.Split(normalizeLineEndings(s), "\n")
	return b
}

// NewBufferFromReader creates a buffer from an io.Reader.
func NewBufferFromReader(r io.Reader, opts ...Option) (*Buffer, error) {
	// CRLF sequences may be split across read boundaries, so read everything first.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return NewBufferFromString(string(data), opts...), nil
}

// normalizeLineEndings converts CRLF and CR line endings to LF.
func normalizeLineEndings(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Read Operations

// Text returns the full buffer content with LF line endings.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.Join(b.lines, "\n")
}

// EncodedText returns the full buffer content using the buffer's line ending.
func (b *Buffer) EncodedText() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.Join(b.lines, b.lineEnding.Sequence())
}

// LineCount returns the number of lines.
func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// LineText returns the text of a specific line (without newline).
// Returns an empty string if the line does not exist.
func (b *Buffer) LineText(line int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if line < 0 || line >= len(b.lines) {
		return ""
	}
	return b.lines[line]
}

// LineLen returns the length of a specific line in characters (without newline).
func (b *Buffer) LineLen(line int) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if line < 0 || line >= len(b.lines) {
		return 0
	}
	return utf8.RuneCountInString(b.lines[line])
}

// End returns the point after the last character of the buffer.
func (b *Buffer) End() Point {
	b.mu.RLock()
	defer b.mu.RUnlock()
	last := len(b.lines) - 1
	return Point{Line: last, Column: utf8.RuneCountInString(b.lines[last])}
}

// ValidPoint reports whether p addresses a position inside the buffer.
func (b *Buffer) ValidPoint(p Point) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.checkPoint(p) == nil
}

// TextRange returns the text covered by r.
func (b *Buffer) TextRange(r Range) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkRange(r); err != nil {
		return "", err
	}
	return b.textRange(r), nil
}

// Write Operations

// Insert inserts text at the given point.
// Returns the position immediately after the inserted text.
func (b *Buffer) Insert(p Point, text string) (Point, error) {
	result, err := b.Replace(CaretRange(p), text)
	if err != nil {
		return Point{}, err
	}
	return result.NewRange.End, nil
}

// Delete removes the text covered by r.
func (b *Buffer) Delete(r Range) (EditResult, error) {
	return b.Replace(r, "")
}

// ApplyEdit applies a single edit to the buffer.
func (b *Buffer) ApplyEdit(edit Edit) (EditResult, error) {
	return b.Replace(edit.Range, edit.NewText)
}

// Replace replaces the text covered by r with text.
func (b *Buffer) Replace(r Range, text string) (EditResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkRange(r); err != nil {
		return EditResult{}, err
	}

	text = normalizeLineEndings(text)
	oldText := b.textRange(r)

	startLine := []rune(b.lines[r.Start.Line])
	endLine := []rune(b.lines[r.End.Line])
	joined := string(startLine[:r.Start.Column]) + text + string(endLine[r.End.Column:])
	inserted := strings.Split(joined, "\n")

	lines := make([]string, 0, len(b.lines)-(r.End.Line-r.Start.Line)+len(inserted)-1)
	lines = append(lines, b.lines[:r.Start.Line]...)
	lines = append(lines, inserted...)
	lines = append(lines, b.lines[r.End.Line+1:]...)

	b.lines = lines

	return EditResult{
		OldRange: r,
		NewRange: Range{Start: r.Start, End: PointAfter(r.Start, text)},
		OldText:  oldText,
		NewText:  text,
	}, nil
}

// Buffer State

// IsEmpty returns true if the buffer is empty.
func (b *Buffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines) == 1 && b.lines[0] == ""
}

// LineEnding returns the buffer's line ending style.
func (b *Buffer) LineEnding() LineEnding {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lineEnding
}

// checkPoint validates p against the current lines. Caller holds the lock.
func (b *Buffer) checkPoint(p Point) error {
	if p.Line < 0 || p.Line >= len(b.lines) || p.Column < 0 {
		return ErrPointOutOfRange
	}
	if p.Column > utf8.RuneCountInString(b.lines[p.Line]) {
		return ErrPointOutOfRange
	}
	return nil
}

// checkRange validates r against the current lines. Caller holds the lock.
func (b *Buffer) checkRange(r Range) error {
	if !r.IsValid() {
		return ErrRangeInvalid
	}
	if err := b.checkPoint(r.Start); err != nil {
		return err
	}
	return b.checkPoint(r.End)
}

// textRange extracts the text for a validated range. Caller holds the lock.
func (b *Buffer) textRange(r Range) string {
	if r.IsSingleLine() {
		line := []rune(b.lines[r.Start.Line])
		return string(line[r.Start.Column:r.End.Column])
	}

	var sb strings.Builder
	first := []rune(b.lines[r.Start.Line])
	sb.WriteString(string(first[r.Start.Column:]))
	for i := r.Start.Line + 1; i < r.End.Line; i++ {
		sb.WriteByte('\n')
		sb.WriteString(b.lines[i])
	}
	sb.WriteByte('\n')
	last := []rune(b.lines[r.End.Line])
	sb.WriteString(string(last[:r.End.Column]))
	return sb.String()
}
