// Package output addresses the artifacts tagcompare stores on disk and merges
// capture runs into the canonical build.
package output

import "fmt"

// MissingFieldError is returned when an identity is under-specified for the
// requested resolution.
type MissingFieldError struct {
	Field string
	Path  string // deepest resolvable prefix
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field error: %s is not set (resolved up to %s)", e.Field, e.Path)
}

// InvalidPathError is returned when a path does not exist or cannot be
// decomposed into an identity.
type InvalidPathError struct {
	Path    string
	Message string
	Cause   error
}

func (e *InvalidPathError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid path error: %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid path error: %s: %s", e.Path, e.Message)
}

func (e *InvalidPathError) Unwrap() error {
	return e.Cause
}
