package event

import "context"

// Priority determines handler execution order.
// Lower values execute first.
type Priority int

const (
	// PriorityCritical is for core editing handlers that must run first.
	PriorityCritical Priority = 0

	// PriorityHigh is for editing features that rewrite the buffer.
	PriorityHigh Priority = 100

	// PriorityNormal is the default priority for plugins and integrations.
	PriorityNormal Priority = 200

	// PriorityLow is for logging handlers that run last.
	PriorityLow Priority = 300
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch {
	case p <= PriorityCritical:
		return "critical"
	case p <= PriorityHigh:
		return "high"
	case p <= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// Handler is the interface for event handlers.
type Handler interface {
	// Handle processes an event.
	// The event parameter is type-erased; handlers should type-assert.
	Handle(ctx context.Context, event any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, event any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// Typed adapts a function taking a concrete Event[T] into a Handler.
// Events with a different payload type are ignored.
func Typed[T any](fn func(ctx context.Context, ev Event[T]) error) Handler {
	return HandlerFunc(func(ctx context.Context, event any) error {
		ev, ok := event.(Event[T])
		if !ok {
			return nil
		}
		return fn(ctx, ev)
	})
}

// ErrorHandler receives handler failures. It plays the role of the host's
// default error handler: whatever a subscriber could not recover from ends
// up here.
type ErrorHandler func(event any, err error)
