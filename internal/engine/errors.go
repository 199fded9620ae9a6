package engine

import "github.com/dshills/enquote/internal/engine/buffer"

// Errors returned by engine operations.
var (
	// ErrPointOutOfRange indicates a position outside the document.
	ErrPointOutOfRange = buffer.ErrPointOutOfRange

	// ErrRangeInvalid indicates an invalid range (e.g., end before start).
	ErrRangeInvalid = buffer.ErrRangeInvalid
)
