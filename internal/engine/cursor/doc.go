// Package cursor provides caret and selection management for text editing.
//
// Selections use an anchor/head model where:
//   - Anchor: The position where the selection started
//   - Head: The current caret position (where typing would occur)
//
// When Anchor == Head, the selection represents just a caret with no
// selected text.
//
// CursorSet manages one or more selections. They are kept sorted by
// position and merged when they overlap. The first selection is the
// primary one; every additional selection is an extra caret.
//
// Selection is an immutable value type and safe for concurrent use.
// CursorSet is not thread-safe and should be protected by external
// synchronization if accessed concurrently.
package cursor
