package slide

import (
	"errors"
	"fmt"

	"github.com/ironsheep/slide-tools-mcp/internal/associated"
	"github.com/ironsheep/slide-tools-mcp/internal/pyramid"
)

// Sentinel errors for session operations.
// Use errors.Is() to check for these conditions.
var (
	// ErrClosed is returned by every data accessor once the session is closed.
	ErrClosed = errors.New("slide reader is closed")

	// ErrOpen wraps any failure to open the underlying resource.
	ErrOpen = errors.New("failed to open slide")

	// ErrRead wraps decoder failures during region reads.
	ErrRead = errors.New("failed to read region")

	// ErrUnimplemented is returned for URI-based opening.
	ErrUnimplemented = errors.New("URI-based loading not yet implemented")

	// ErrUnsupportedFormat is returned when no format is registered for a
	// path's extension.
	ErrUnsupportedFormat = errors.New("unsupported slide format")
)

// Re-exported from the packages that detect them.
var (
	ErrInvalidLevel = pyramid.ErrInvalidLevel
	ErrOutOfBounds  = pyramid.ErrOutOfBounds
	ErrInvalidSize  = pyramid.ErrInvalidSize
	ErrNotFound     = associated.ErrNotFound
)

// OpenError reports a failed Open. It matches ErrOpen as well as the
// underlying cause.
type OpenError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open slide %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OpenError) Unwrap() error {
	return e.Err
}

// Is makes every OpenError match ErrOpen.
func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}

// ReadError reports a decoder failure for one region. It matches ErrRead
// as well as the underlying cause.
type ReadError struct {
	Region pyramid.Region
	Err    error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	r := e.Region
	return fmt.Sprintf("failed to read region %dx%d at (%d,%d) on level %d: %v",
		r.Width, r.Height, r.X, r.Y, r.Level, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// Is makes every ReadError match ErrRead.
func (e *ReadError) Is(target error) bool {
	return target == ErrRead
}
