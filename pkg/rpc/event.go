package rpc

import (
	"log/slog"

	"github.com/vango-dev/nodesync/pkg/state"
)

// EventHandler delivers client DOM events to element listeners.
type EventHandler struct {
	logger *slog.Logger
}

// NewEventHandler creates a handler. A nil logger uses slog.Default().
func NewEventHandler(logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{logger: logger.With("component", "event")}
}

// RPCType returns TypeEvent.
func (h *EventHandler) RPCType() string {
	return TypeEvent
}

// Handle validates an event invocation. The returned action fires the
// listeners; on a disabled node only listeners with mode Always run.
func (h *EventHandler) Handle(tree *state.Tree, inv Invocation) (func() error, error) {
	node, ok := tree.NodeByID(inv.Node)
	if !ok {
		return nil, invocationError(ErrMalformedInvocation, inv, "no attached node with id %d", inv.Node)
	}
	if inv.Event == "" {
		return nil, invocationError(ErrMalformedInvocation, inv, "missing event type")
	}
	if !node.HasFeature(state.KindElementListeners) {
		return nil, invocationError(ErrInternalInconsistency, inv, "%v cannot have event listeners", node)
	}
	return func() error {
		if n := node.Listeners().Fire(inv.Event, inv.Data); n == 0 {
			h.logger.Debug("event had no active listeners", "event", inv.Event, "node", node.ID())
		}
		return nil
	}, nil
}
