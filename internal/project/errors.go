package project

import (
	"errors"
	"fmt"
)

// Standard errors returned by the project package.
var (
	// ErrNoWorkspace indicates no workspace directory is set.
	ErrNoWorkspace = errors.New("no workspace open")

	// ErrNotFound indicates a file or directory was not found.
	ErrNotFound = errors.New("not found")
)

// PathError represents an error associated with a file path.
type PathError struct {
	Op   string // Operation that failed (scan, read, ...)
	Path string // File path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}
