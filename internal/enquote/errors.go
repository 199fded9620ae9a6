package enquote

import "fmt"

// DetectionError reports a failure to read the root file while checking
// for the csquotes import.
type DetectionError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *DetectionError) Error() string {
	return fmt.Sprintf("enquote: reading root file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying read error.
func (e *DetectionError) Unwrap() error {
	return e.Err
}
