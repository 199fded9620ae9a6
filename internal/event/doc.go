// Package event provides the synchronous event bus that connects the editing
// engine, the enquote substitutor, configuration and project services.
//
// Events use hierarchical topics with dot notation:
//
//	document.changed           - Text changed in a document
//	enquote.applied            - A quote was replaced by a delimiter
//	config.changed             - A setting was modified
//
// Subscriptions support wildcard patterns:
//
//	document.*     - matches document.changed, document.activated
//	enquote.**     - matches every enquote event
//
// # Delivery
//
// Delivery is synchronous: handlers run in the publisher's goroutine in
// priority order. Editing reacts to keystrokes one at a time, and a handler
// that edits the buffer must finish before the next keystroke is processed.
// Handlers may publish further events; nested publishes are delivered
// before the outer Publish returns.
//
// # Errors
//
// A handler error or panic does not stop delivery to other subscribers.
// Each failure is wrapped in a HandlerError, passed to the ErrorHandler
// configured with WithErrorHandler, and returned from Publish joined with
// the other failures.
//
// # Usage
//
//	bus := event.NewBus(event.WithErrorHandler(func(ev any, err error) {
//	    log.WithError(err).Error("event handler failed")
//	}))
//
//	sub, _ := bus.Subscribe(events.TopicDocumentChanged,
//	    event.Typed(func(ctx context.Context, ev event.Event[events.DocumentChanged]) error {
//	        return nil
//	    }))
//	defer bus.Unsubscribe(sub)
//
//	bus.Publish(ctx, event.NewEvent(events.TopicDocumentChanged, payload, "engine"))
package event
