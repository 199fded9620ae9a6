// Package engine provides a headless text editing engine for one document.
//
// The Engine combines a line-indexed buffer with a set of selections and
// reports every edit as a DocumentChanged event. It is the editor surface
// the quote substitutor works against when no external editor is attached
// (the CLI replay command, tests).
//
// # Architecture
//
// The engine is built on two sub-packages:
//
//   - buffer: line-indexed text storage with Point/Range addressing
//   - cursor: selections and multi-cursor sets
//
// # Change Delivery
//
// Edits are reported synchronously, after the engine lock is released, to
// listeners registered with OnChange and to the event bus when a publisher
// is configured. Each typing operation produces exactly one event carrying
// one change per selection, in document order, with ranges expressed in
// pre-edit coordinates.
//
// Listeners may edit the document again. Such nested edits are queued and
// delivered after the current delivery has finished, so a listener never
// observes its own edit while it is still running.
//
// # Basic Usage
//
//	e := engine.New(engine.WithContent("say hi"))
//	e.OnChange(func(ctx context.Context, ev events.DocumentChanged) error {
//	    fmt.Println(ev.Changes)
//	    return nil
//	})
//
//	_ = e.SetCaret(engine.Point{Line: 0, Column: 4})
//	_ = e.Type(ctx, `"`)
//
// # Thread Safety
//
// All Engine operations are safe for concurrent use.
package engine
