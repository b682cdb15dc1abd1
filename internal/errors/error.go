package errors

import (
	"fmt"
)

// Category groups error codes.
type Category string

const (
	CategoryConfig   Category = "config"
	CategorySnapshot Category = "snapshot"
	CategoryServer   Category = "server"
	CategoryCLI      Category = "cli"
)

// NodesyncError is a coded error with an explanation and a fix hint, meant
// for display on the command line.
type NodesyncError struct {
	// Code is a unique identifier (e.g., "N101").
	Code string

	Category Category

	// Message is a short description.
	Message string

	// Detail is a longer explanation.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *NodesyncError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *NodesyncError) Unwrap() error {
	return e.Wrapped
}

// WithDetail sets the explanation.
func (e *NodesyncError) WithDetail(d string) *NodesyncError {
	e.Detail = d
	return e
}

// WithSuggestion sets the fix hint.
func (e *NodesyncError) WithSuggestion(s string) *NodesyncError {
	e.Suggestion = s
	return e
}

// Wrap sets the underlying error.
func (e *NodesyncError) Wrap(err error) *NodesyncError {
	e.Wrapped = err
	return e
}

// New creates an error from a registered code.
func New(code string) *NodesyncError {
	template, ok := registry[code]
	if !ok {
		return &NodesyncError{Code: code, Message: "Unknown error"}
	}
	return &NodesyncError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates an uncoded error with a formatted message.
func Newf(category Category, format string, args ...any) *NodesyncError {
	return &NodesyncError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err under code unless it already is a NodesyncError.
func FromError(err error, code string) *NodesyncError {
	if err == nil {
		return nil
	}
	if ne, ok := err.(*NodesyncError); ok {
		return ne
	}
	return New(code).Wrap(err)
}
