package rpc

import (
	"errors"
	"fmt"
)

// Sentinel errors for invocation handling.
var (
	// ErrAuthorizationDenied is returned when the client may not write a property.
	ErrAuthorizationDenied = errors.New("rpc: authorization denied")

	// ErrMalformedInvocation is returned for undecodable values, unknown
	// invocation types and unresolvable target nodes.
	ErrMalformedInvocation = errors.New("rpc: malformed invocation")

	// ErrInternalInconsistency is returned when an invocation names a feature
	// the target cannot have.
	ErrInternalInconsistency = errors.New("rpc: internal inconsistency")

	// ErrNodeDisabled is returned when a write to a disabled node is dropped.
	// It wraps ErrAuthorizationDenied. The dispatcher skips such invocations
	// instead of failing the batch.
	ErrNodeDisabled = fmt.Errorf("%w: node is disabled", ErrAuthorizationDenied)
)

// InvocationError describes a rejected invocation.
type InvocationError struct {
	// Kind is one of the sentinel errors above.
	Kind     error
	NodeID   int
	Property string
	Message  string
}

// Error returns the error message.
func (e *InvocationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: node %d: %s", e.Kind, e.NodeID, e.Message)
	}
	if e.Property != "" {
		return fmt.Sprintf("%v: node %d, property '%s'", e.Kind, e.NodeID, e.Property)
	}
	return fmt.Sprintf("%v: node %d", e.Kind, e.NodeID)
}

// Unwrap returns the kind for errors.Is.
func (e *InvocationError) Unwrap() error {
	return e.Kind
}

func invocationError(kind error, inv Invocation, format string, args ...any) *InvocationError {
	return &InvocationError{
		Kind:     kind,
		NodeID:   inv.Node,
		Property: inv.Property,
		Message:  fmt.Sprintf(format, args...),
	}
}
