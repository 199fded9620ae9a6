package app

import (
	"errors"
	"fmt"
	"sync"
)

// Application errors.
var (
	// ErrClosed indicates the application has been closed.
	ErrClosed = errors.New("application closed")

	// ErrNoActiveDocument indicates no document is currently active.
	ErrNoActiveDocument = errors.New("no active document")

	// ErrDocumentNotFound indicates a document was not found.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrNoFilePath indicates a save of a document without a path.
	ErrNoFilePath = errors.New("document has no file path")
)

// InitError reports a component that failed to start.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// FileError represents a file operation failure.
type FileError struct {
	Op   string // "open" or "save"
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ErrorList collects errors reported asynchronously, such as failing event
// handlers. It is safe for concurrent use.
type ErrorList struct {
	mu     sync.Mutex
	errors []error
}

// Add adds an error to the list. Nil errors are ignored.
func (e *ErrorList) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, err)
}

// Len returns the number of errors.
func (e *ErrorList) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errors)
}

// Errors returns a copy of the collected errors.
func (e *ErrorList) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errors) == 0 {
		return nil
	}
	out := make([]error, len(e.errors))
	copy(out, e.errors)
	return out
}

// AsError returns nil if there are no errors, otherwise all of them joined.
func (e *ErrorList) AsError() error {
	return errors.Join(e.Errors()...)
}
