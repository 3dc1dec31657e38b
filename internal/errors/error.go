package errors

import (
	"fmt"
	"strings"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryLoad    Category = "load"
	CategoryProcess Category = "process"
	CategoryWatch   Category = "watch"
	CategoryCLI     Category = "cli"
)

// BridgeError is a structured error with a code, detail, and suggestion.
type BridgeError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type (config, load, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation, often raw tool output.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *BridgeError) Unwrap() error {
	return e.Wrapped
}

// WithDetail adds a detailed explanation to the error.
func (e *BridgeError) WithDetail(d string) *BridgeError {
	e.Detail = d
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *BridgeError) WithSuggestion(s string) *BridgeError {
	e.Suggestion = s
	return e
}

// Wrap wraps another error.
func (e *BridgeError) Wrap(err error) *BridgeError {
	e.Wrapped = err
	return e
}

// Format renders the error for terminal display.
func (e *BridgeError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "ERROR %s: %s\n", e.Code, e.Message)

	if e.Wrapped != nil {
		fmt.Fprintf(&b, "\n  %v\n", e.Wrapped)
	}

	if e.Detail != "" {
		b.WriteString("\n")
		for _, line := range strings.Split(strings.TrimRight(e.Detail, "\n"), "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}

	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  Hint: %s\n", e.Suggestion)
	}

	return b.String()
}

// New creates an error from a registered code. Unknown codes produce a
// generic error carrying the code itself.
func New(code string) *BridgeError {
	tmpl, ok := registry[code]
	if !ok {
		return &BridgeError{
			Code:    code,
			Message: "unknown error",
		}
	}

	return &BridgeError{
		Code:       code,
		Category:   tmpl.Category,
		Message:    tmpl.Message,
		Suggestion: tmpl.Suggestion,
	}
}
