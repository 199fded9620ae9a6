package enquote

import (
	"context"

	"github.com/dshills/enquote/internal/event"
	"github.com/dshills/enquote/internal/event/events"
)

// ActiveEditorFunc returns the active editor, or nil when there is none.
type ActiveEditorFunc func() Editor

// Subscribe runs the Substitutor for every document.changed event on bus.
// Errors returned by Handle reach the bus error handler.
func (s *Substitutor) Subscribe(bus *event.Bus, active ActiveEditorFunc) (*event.Subscription, error) {
	return bus.Subscribe(events.TopicDocumentChanged,
		event.Typed(func(ctx context.Context, ev event.Event[events.DocumentChanged]) error {
			return s.Handle(ctx, ev.Payload, active())
		}),
		event.WithPriority(event.PriorityHigh),
	)
}
