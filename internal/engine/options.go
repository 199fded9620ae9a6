package engine

import (
	"context"

	"github.com/dshills/enquote/internal/engine/buffer"
)

// Publisher publishes events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Option configures an Engine during creation.
type Option func(*Engine)

// WithContent sets the initial content of the engine.
func WithContent(content string) Option {
	return func(e *Engine) {
		e.initContent = content
	}
}

// WithPath sets the file path of the document.
func WithPath(path string) Option {
	return func(e *Engine) {
		e.path = path
	}
}

// WithID overrides the generated document ID.
func WithID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.id = id
		}
	}
}

// WithLineEnding sets the line ending style used by EncodedText.
func WithLineEnding(ending buffer.LineEnding) Option {
	return func(e *Engine) {
		e.lineEnding = &ending
	}
}

// WithPublisher publishes document.changed events to p.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}
