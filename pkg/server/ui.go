package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/nodesync/pkg/rpc"
	"github.com/vango-dev/nodesync/pkg/snapshot"
	"github.com/vango-dev/nodesync/pkg/state"
)

// UI is one client's state tree. Requests against a UI are serialized by its
// mutex, so every batch sees the tree as the previous batch left it.
type UI struct {
	id         string
	dispatcher *rpc.Dispatcher
	logger     *slog.Logger

	mu     sync.Mutex
	tree   *state.Tree
	syncID int
	closed bool

	lastActive atomic.Int64
}

func newUI(id string, tree *state.Tree, dispatcher *rpc.Dispatcher, logger *slog.Logger) *UI {
	u := &UI{
		id:         id,
		tree:       tree,
		dispatcher: dispatcher,
		logger:     logger.With("ui", id),
	}
	u.touch()
	return u
}

// ID returns the UI id.
func (u *UI) ID() string {
	return u.id
}

// SyncID returns the id of the last response sent to the client.
func (u *UI) SyncID() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.syncID
}

// LastActive returns the time of the last request.
func (u *UI) LastActive() time.Time {
	return time.Unix(0, u.lastActive.Load())
}

func (u *UI) touch() {
	u.lastActive.Store(time.Now().UnixNano())
}

// Handle applies a client batch and returns the changes the tree produced
// since the previous response. A rejected batch still yields a response
// carrying the error and any changes made by server code in the meantime.
func (u *UI) Handle(ctx context.Context, req rpc.Request) (rpc.Response, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return rpc.Response{}, NewUIError(u.id, "handle", ErrUIClosed)
	}
	u.touch()

	if req.SyncID > u.syncID {
		err := NewUIError(u.id, "handle", fmt.Errorf("%w: got %d, last sent %d", ErrSyncIDAhead, req.SyncID, u.syncID))
		return rpc.Response{SyncID: u.syncID, Error: err.Error()}, err
	}

	result, applyErr := u.dispatcher.Apply(ctx, u.tree, req.RPC)
	resp, err := u.flushLocked()
	if err != nil {
		return resp, err
	}
	if applyErr != nil {
		u.logger.Debug("batch rejected", "error", applyErr)
		resp.Error = applyErr.Error()
		return resp, NewUIError(u.id, "handle", applyErr)
	}
	if result.Dropped > 0 {
		u.logger.Debug("batch applied", "committed", result.Committed, "dropped", result.Dropped)
	}
	return resp, nil
}

// Flush returns pending changes without applying a batch. It is used for
// the initial response and for pushing server-side updates.
func (u *UI) Flush() (rpc.Response, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return rpc.Response{}, NewUIError(u.id, "flush", ErrUIClosed)
	}
	return u.flushLocked()
}

func (u *UI) flushLocked() (rpc.Response, error) {
	changes, err := rpc.EncodeChanges(u.tree.CollectChanges())
	u.syncID++
	resp := rpc.Response{SyncID: u.syncID, Changes: changes}
	if err != nil {
		err = NewUIError(u.id, "encode", fmt.Errorf("%w: %v", rpc.ErrInternalInconsistency, err))
		resp.Error = err.Error()
		return resp, err
	}
	return resp, nil
}

// Do runs fn with exclusive access to the tree. Changes fn makes are sent
// with the next response.
func (u *UI) Do(fn func(tree *state.Tree) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return NewUIError(u.id, "do", ErrUIClosed)
	}
	return fn(u.tree)
}

// Snapshot captures the tree.
func (u *UI) Snapshot() (*snapshot.Document, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return snapshot.Capture(u.tree)
}

// close marks the UI closed and returns its tree for a final snapshot.
// It reports false if the UI was already closed.
func (u *UI) close() (*state.Tree, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil, false
	}
	u.closed = true
	return u.tree, true
}

// IsClosed reports whether the UI has been closed.
func (u *UI) IsClosed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closed
}
