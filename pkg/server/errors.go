package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for UI management.
var (
	// ErrUINotFound is returned when a UI id does not exist.
	ErrUINotFound = errors.New("server: ui not found")

	// ErrUIClosed is returned when a request reaches a UI that has been closed.
	ErrUIClosed = errors.New("server: ui closed")

	// ErrMaxUIsReached is returned when the live UI limit is reached.
	ErrMaxUIsReached = errors.New("server: max uis reached")

	// ErrSyncIDAhead is returned when a client claims a sync id the server
	// has not issued yet.
	ErrSyncIDAhead = errors.New("server: sync id ahead of server")

	// ErrManagerClosed is returned after Shutdown.
	ErrManagerClosed = errors.New("server: manager closed")
)

// UIError wraps an error with UI context.
type UIError struct {
	UIID string
	Op   string
	Err  error
}

// Error returns the error message with UI context.
func (e *UIError) Error() string {
	if e.UIID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: ui %s: %s: %v", e.UIID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *UIError) Unwrap() error {
	return e.Err
}

// NewUIError creates a new UIError.
func NewUIError(uiID, op string, err error) *UIError {
	return &UIError{UIID: uiID, Op: op, Err: err}
}
