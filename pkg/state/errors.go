package state

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by tree operations.
var (
	// ErrUnknownFeature is returned when a wire id has no registered feature kind.
	ErrUnknownFeature = errors.New("state: unknown feature")

	// ErrUnsupportedFeature is returned when a node does not declare a feature kind.
	ErrUnsupportedFeature = errors.New("state: feature not supported by node")

	// ErrForeignNode is returned when a node from another tree is used as a value.
	ErrForeignNode = errors.New("state: node belongs to another tree")

	// ErrHasParent is returned when attaching a node that already has a parent.
	ErrHasParent = errors.New("state: node already has a parent")

	// ErrCycle is returned when attaching a node below itself.
	ErrCycle = errors.New("state: node cannot be its own ancestor")

	// ErrUpdateDenied is returned when the client may not update a property.
	ErrUpdateDenied = errors.New("state: update from client denied")

	// ErrInvalidPath is returned for malformed model paths.
	ErrInvalidPath = errors.New("state: invalid model path")

	// ErrNotAModel is returned when a model path crosses a non-model value.
	ErrNotAModel = errors.New("state: property does not hold a model")
)

// UpdateDeniedError describes a rejected client property update.
type UpdateDeniedError struct {
	NodeID int
	Key    string

	// Filtered is true when an update filter actively rejected the key,
	// false when nothing allowed it.
	Filtered bool
}

// Error returns the error message.
func (e *UpdateDeniedError) Error() string {
	if e.Filtered {
		return fmt.Sprintf("state: node %d: property '%s' rejected by update filter", e.NodeID, e.Key)
	}
	return fmt.Sprintf("state: node %d: property '%s' is not allowed to be updated from the client", e.NodeID, e.Key)
}

// Unwrap returns ErrUpdateDenied for errors.Is.
func (e *UpdateDeniedError) Unwrap() error {
	return ErrUpdateDenied
}
