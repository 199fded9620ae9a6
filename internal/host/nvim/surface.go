package nvim

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/neovim/go-client/nvim"

	"github.com/dshills/enquote/internal/engine/buffer"
)

// Client is the part of the Neovim API the host uses.
type Client interface {
	BufferLines(buffer nvim.Buffer, start, end int, strict bool) ([][]byte, error)
	SetBufferText(buffer nvim.Buffer, startRow, startCol, endRow, endCol int, replacement [][]byte) error
	SetWindowCursor(window nvim.Window, pos [2]int) error
	BufferName(buffer nvim.Buffer) (string, error)
	Var(name string, result any) error
	Command(cmd string) error
}

var _ Client = (*nvim.Nvim)(nil)

// currentWindow addresses the current window in API calls.
const currentWindow nvim.Window = 0

// Surface edits one Neovim buffer in character coordinates.
type Surface struct {
	client Client
	buf    nvim.Buffer
	win    nvim.Window
	path   string
}

// NewSurface creates a Surface for buf, moving the caret in win.
func NewSurface(client Client, buf nvim.Buffer, win nvim.Window) *Surface {
	s := &Surface{client: client, buf: buf, win: win}
	if name, err := client.BufferName(buf); err == nil {
		s.path = name
	}
	return s
}

// DocumentID returns the document ID used for buffer n.
func DocumentID(n nvim.Buffer) string {
	return "nvim:" + strconv.Itoa(int(n))
}

// ID returns the document ID of the buffer.
func (s *Surface) ID() string {
	return DocumentID(s.buf)
}

// Path returns the buffer name.
func (s *Surface) Path() string {
	return s.path
}

// Text returns the buffer content joined with LF.
func (s *Surface) Text() string {
	lines, err := s.client.BufferLines(s.buf, 0, -1, true)
	if err != nil {
		return ""
	}
	return string(bytes.Join(lines, []byte("\n")))
}

// line returns line n of the buffer.
func (s *Surface) line(n int) ([]byte, error) {
	if n < 0 {
		return nil, buffer.ErrPointOutOfRange
	}
	lines, err := s.client.BufferLines(s.buf, n, n+1, true)
	if err != nil {
		return nil, fmt.Errorf("reading line %d: %w", n, err)
	}
	if len(lines) != 1 {
		return nil, buffer.ErrPointOutOfRange
	}
	return lines[0], nil
}

// byteCol returns the byte column of p.
func (s *Surface) byteCol(p buffer.Point) ([]byte, int, error) {
	line, err := s.line(p.Line)
	if err != nil {
		return nil, 0, err
	}
	off, ok := runeToByte(line, p.Column)
	if !ok {
		return nil, 0, buffer.ErrPointOutOfRange
	}
	return line, off, nil
}

// TextRange returns the text covered by r.
func (s *Surface) TextRange(r buffer.Range) (string, error) {
	if r.End.Before(r.Start) {
		return "", buffer.ErrRangeInvalid
	}
	first, start, err := s.byteCol(r.Start)
	if err != nil {
		return "", err
	}
	if r.Start.Line == r.End.Line {
		_, end, err := s.byteCol(r.End)
		if err != nil {
			return "", err
		}
		return string(first[start:end]), nil
	}

	last, end, err := s.byteCol(r.End)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Write(first[start:])
	for n := r.Start.Line + 1; n < r.End.Line; n++ {
		line, err := s.line(n)
		if err != nil {
			return "", err
		}
		sb.WriteByte('\n')
		sb.Write(line)
	}
	sb.WriteByte('\n')
	sb.Write(last[:end])
	return sb.String(), nil
}

// Replace replaces the text covered by r with nvim_buf_set_text.
func (s *Surface) Replace(_ context.Context, r buffer.Range, text string) error {
	if r.End.Before(r.Start) {
		return buffer.ErrRangeInvalid
	}
	_, start, err := s.byteCol(r.Start)
	if err != nil {
		return err
	}
	_, end, err := s.byteCol(r.End)
	if err != nil {
		return err
	}

	parts := strings.Split(text, "\n")
	replacement := make([][]byte, len(parts))
	for i, p := range parts {
		replacement[i] = []byte(p)
	}
	return s.client.SetBufferText(s.buf, r.Start.Line, start, r.End.Line, end, replacement)
}

// SetCaret moves the window cursor to p.
func (s *Surface) SetCaret(p buffer.Point) error {
	_, col, err := s.byteCol(p)
	if err != nil {
		return err
	}
	return s.client.SetWindowCursor(s.win, [2]int{p.Line + 1, col})
}
