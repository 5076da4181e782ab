package project

import (
	"errors"
	"fmt"
)

// Standard errors returned by the project package.
var (
	// ErrNotOpen indicates the project has been closed.
	ErrNotOpen = errors.New("project not open")

	// ErrNotDirectory indicates the root exists but is a file.
	ErrNotDirectory = errors.New("path is not a directory")
)

// WorkspaceError represents an error related to workspace operations.
type WorkspaceError struct {
	Root string // Workspace root path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s: %v", e.Root, e.Err)
}

// Unwrap returns the underlying error.
func (e *WorkspaceError) Unwrap() error {
	return e.Err
}

// IsNotOpen returns true if the error indicates the project was closed.
func IsNotOpen(err error) bool {
	return errors.Is(err, ErrNotOpen)
}
