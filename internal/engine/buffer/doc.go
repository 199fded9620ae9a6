// Package buffer provides a thread-safe, line-indexed text buffer.
//
// Positions are expressed as Point values holding a 0-indexed line and a
// 0-indexed column. Columns count characters (runes), not bytes, so a
// column always addresses a whole character regardless of its UTF-8 width.
// Host adapters that speak byte or UTF-16 columns convert at their boundary.
//
// Basic usage:
//
//	buf := buffer.NewBufferFromString("Hello, World!")
//
//	// Insert text
//	buf.Insert(buffer.Point{Line: 0, Column: 7}, "Beautiful ")
//
//	// Replace a range
//	buf.Replace(buffer.NewRange(
//	    buffer.Point{Line: 0, Column: 0},
//	    buffer.Point{Line: 0, Column: 5},
//	), "Howdy")
//
// Line endings are normalized to LF when text enters the buffer. The
// detected line ending of the original content is kept so callers can
// restore it when writing the buffer back to disk.
//
// Thread Safety:
//
// All Buffer methods are thread-safe. Read operations acquire a read lock,
// while write operations acquire an exclusive write lock.
package buffer
