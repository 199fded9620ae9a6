package nvim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/neovim/go-client/nvim"
	"github.com/sirupsen/logrus"

	"github.com/dshills/enquote/internal/config/registry"
	"github.com/dshills/enquote/internal/engine/buffer"
	"github.com/dshills/enquote/internal/enquote"
	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
	"github.com/dshills/enquote/internal/logging"
	"github.com/dshills/enquote/internal/project"
)

// ErrNotBound is returned when a request arrives before Bind.
var ErrNotBound = errors.New("nvim host: not bound")

// RequestMethod is the RPC method the autocommands call.
const RequestMethod = "enquote_changed"

// ModeVariable is the global variable that overrides enquote.active.
const ModeVariable = "enquote_active"

// autocmdGroup names the augroup holding the host's autocommands.
const autocmdGroup = "enquote"

// Publisher publishes events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Overrides writes and clears runtime settings.
type Overrides interface {
	Set(ctx context.Context, path string, value any) error
	Unset(ctx context.Context, path string) error
}

// ChangeRequest is the payload of one TextChangedI notification.
type ChangeRequest struct {
	// Buffer is the buffer handle.
	Buffer int

	// Line is the 0-based cursor line.
	Line int

	// ByteColumn is the 0-based cursor column in bytes.
	ByteColumn int

	// Char is the character recorded by InsertCharPre, or empty.
	Char string
}

// Host connects Neovim buffers to the enquote pipeline.
type Host struct {
	client    Client
	publisher Publisher
	overrides Overrides
	log       *logrus.Entry

	// handleMu serialises HandleChange.
	handleMu sync.Mutex

	mu        sync.Mutex
	current   *Surface
	modeValue string
}

// New creates a Host talking to client. Bind must be called before
// requests are handled.
func New(client Client) *Host {
	return &Host{
		client: client,
		log:    logging.NewLogger("nvim"),
	}
}

// Bind sets where change events are published and where the
// g:enquote_active override is written.
func (h *Host) Bind(p Publisher, o Overrides) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publisher = p
	h.overrides = o
}

// ActiveEditor returns the buffer of the request being handled.
func (h *Host) ActiveEditor() enquote.Editor {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil
	}
	return h.current
}

// ActiveDocument returns the buffer of the request being handled.
func (h *Host) ActiveDocument() project.Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil
	}
	return h.current
}

// HandleChange publishes the change described by req as document.changed
// while the requesting buffer is the active editor.
func (h *Host) HandleChange(ctx context.Context, req ChangeRequest) error {
	h.handleMu.Lock()
	defer h.handleMu.Unlock()

	h.mu.Lock()
	pub := h.publisher
	h.mu.Unlock()
	if pub == nil {
		return ErrNotBound
	}

	h.syncMode(ctx)

	s := NewSurface(h.client, nvim.Buffer(req.Buffer), currentWindow)
	ev, err := changeEvent(s, req)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.current = s
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.current = nil
		h.mu.Unlock()
	}()

	return pub.Publish(ctx, event.NewEvent(events.TopicDocumentChanged, ev, "nvim"))
}

// changeEvent converts req into a DocumentChanged event. The recorded
// character must sit directly before the cursor; otherwise the event has
// no changes.
func changeEvent(s *Surface, req ChangeRequest) (events.DocumentChanged, error) {
	ev := events.DocumentChanged{DocumentID: s.ID(), Path: s.Path()}
	if req.Char == "" {
		return ev, nil
	}

	line, err := s.line(req.Line)
	if err != nil {
		return ev, err
	}
	cursor := byteToRune(line, req.ByteColumn)
	start := cursor - utf8.RuneCountInString(req.Char)
	if start < 0 {
		return ev, nil
	}

	off, _ := runeToByte(line, start)
	end := req.ByteColumn
	if end > len(line) {
		end = len(line)
	}
	if string(line[off:end]) != req.Char {
		return ev, nil
	}

	at := buffer.Point{Line: req.Line, Column: start}
	ev.Changes = []events.ContentChange{{
		Range: buffer.NewRange(at, at),
		Text:  req.Char,
	}}
	return ev, nil
}

// syncMode mirrors g:enquote_active into the runtime settings. A variable
// that was set and is now gone removes the override again.
func (h *Host) syncMode(ctx context.Context) {
	h.mu.Lock()
	o := h.overrides
	prev := h.modeValue
	h.mu.Unlock()
	if o == nil {
		return
	}

	value, ok := h.modeVariable()
	switch {
	case ok && value != prev:
		if err := o.Set(ctx, registry.EnquoteActive, value); err != nil {
			h.log.WithError(err).WithField("value", value).Warn("Ignoring g:enquote_active")
			return
		}
	case !ok && prev != "":
		if err := o.Unset(ctx, registry.EnquoteActive); err != nil {
			h.log.WithError(err).Warn("Clearing enquote.active override failed")
			return
		}
	default:
		return
	}

	h.mu.Lock()
	h.modeValue = value
	h.mu.Unlock()
}

// modeVariable reads g:enquote_active. Vim booleans and numbers map to
// "true" and "false".
func (h *Host) modeVariable() (string, bool) {
	var raw any
	if err := h.client.Var(ModeVariable, &raw); err != nil {
		return "", false
	}
	switch v := raw.(type) {
	case bool:
		return strconv.FormatBool(v), true
	case int64:
		return strconv.FormatBool(v != 0), true
	case uint64:
		return strconv.FormatBool(v != 0), true
	case string:
		return strings.ToLower(strings.TrimSpace(v)), true
	default:
		return "", false
	}
}

// Setup installs the autocommands that call back into channel.
func (h *Host) Setup(channel int) error {
	cmds := []string{
		fmt.Sprintf("augroup %s | autocmd! | augroup END", autocmdGroup),
		fmt.Sprintf("autocmd %s InsertCharPre *.tex let b:enquote_char = v:char", autocmdGroup),
		fmt.Sprintf("autocmd %s TextChangedI *.tex "+
			"let b:enquote_pending = get(b:, 'enquote_char', '') | "+
			"let b:enquote_char = '' | "+
			"call rpcrequest(%d, '%s', bufnr(), line('.') - 1, col('.') - 1, b:enquote_pending)",
			autocmdGroup, channel, RequestMethod),
	}
	for _, cmd := range cmds {
		if err := h.client.Command(cmd); err != nil {
			return fmt.Errorf("installing autocommands: %w", err)
		}
	}
	h.log.WithField("channel", channel).Info("Autocommands installed")
	return nil
}

// Serve registers the request handler on v, runs the RPC loop and installs
// the autocommands. It returns when the connection ends or ctx is done.
func (h *Host) Serve(ctx context.Context, v *nvim.Nvim) error {
	err := v.RegisterHandler(RequestMethod, func(buf, line, col int, char string) error {
		return h.HandleChange(ctx, ChangeRequest{
			Buffer:     buf,
			Line:       line,
			ByteColumn: col,
			Char:       char,
		})
	})
	if err != nil {
		return fmt.Errorf("registering %s: %w", RequestMethod, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- v.Serve()
	}()

	if err := h.Setup(v.ChannelID()); err != nil {
		_ = v.Close()
		<-done
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = v.Close()
		<-done
		return nil
	}
}
