package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for common gateway conditions.
var (
	// ErrBodyTooLarge is returned by Collect when a request body exceeds
	// the configured bound.
	ErrBodyTooLarge = errors.New("gateway: request body too large")

	// ErrNoHandler is returned when no handler has ever loaded
	// successfully.
	ErrNoHandler = errors.New("gateway: no handler loaded")
)

// LoadError wraps a failure to load or compile the handler module. The
// previous handler, if any, stays active when a load fails.
type LoadError struct {
	Module string // module identity that failed to load
	Output string // compiler or loader output, if available
	Err    error  // underlying error
}

// Error returns the error message with module context.
func (e *LoadError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("gateway: load %s: %v\n%s", e.Module, e.Err, e.Output)
	}
	return fmt.Sprintf("gateway: load %s: %v", e.Module, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// HandlerError wraps a panic that escaped a handler's Handle call.
type HandlerError struct {
	Method string
	Path   string
	Panic  any
	Stack  []byte
}

// Error returns the error message.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("gateway: handler panic on %s %s: %v", e.Method, e.Path, e.Panic)
}
