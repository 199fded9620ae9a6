// Package events defines strongly-typed event payloads for the event bus.
//
// Each event type has a corresponding topic constant and payload struct.
// Events are grouped by their source module:
//
//   - Document events: content changes, activation
//   - Enquote events: substitutions, package detection
//   - Config events: setting changes and reloads
//   - Project events: root file resolution
//
// # Usage
//
//	evt := event.NewEvent(events.TopicDocumentChanged,
//	    events.DocumentChanged{
//	        DocumentID: doc.ID(),
//	        Changes: []events.ContentChange{{
//	            Range: buffer.CaretRange(buffer.Point{Line: 3, Column: 7}),
//	            Text:  `"`,
//	        }},
//	    },
//	    "engine",
//	)
//	bus.Publish(ctx, evt)
//
// Topics follow a hierarchical dot-notation: <module>.<entity>.<action>.
package events
