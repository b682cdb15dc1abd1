package rpc

import (
	"errors"
	"log/slog"

	"github.com/vango-dev/nodesync/pkg/jsoncodec"
	"github.com/vango-dev/nodesync/pkg/state"
)

// Handler turns one invocation into a deferred action. Handlers only
// validate and decode; nothing in the tree changes until the action runs.
type Handler interface {
	// RPCType returns the invocation type the handler accepts.
	RPCType() string

	// Handle resolves the invocation against tree and returns the action
	// that applies it.
	Handle(tree *state.Tree, inv Invocation) (func() error, error)
}

// MapSyncHandler applies client property writes to element property maps.
type MapSyncHandler struct {
	logger *slog.Logger
}

// NewMapSyncHandler creates a handler. A nil logger uses slog.Default().
func NewMapSyncHandler(logger *slog.Logger) *MapSyncHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MapSyncHandler{logger: logger.With("component", "map-sync")}
}

// RPCType returns TypeMapSync.
func (h *MapSyncHandler) RPCType() string {
	return TypeMapSync
}

// Handle resolves the target node in tree and delegates to HandleNode.
func (h *MapSyncHandler) Handle(tree *state.Tree, inv Invocation) (func() error, error) {
	node, ok := tree.NodeByID(inv.Node)
	if !ok {
		return nil, invocationError(ErrMalformedInvocation, inv, "no attached node with id %d", inv.Node)
	}
	return h.HandleNode(node, inv)
}

// HandleNode validates a property write for node and returns the deferred
// write.
//
// A write to an effectively disabled node is dropped unless the property is
// synchronized with mode Always. The drop is logged once, at debug level when
// the property has no value yet and at warn level when it has one, and
// reported as ErrNodeDisabled.
func (h *MapSyncHandler) HandleNode(node *state.Node, inv Invocation) (func() error, error) {
	kind, err := state.KindForID(inv.Feature)
	if err != nil || kind != state.KindElementProperties {
		return nil, invocationError(ErrInternalInconsistency, inv, "feature %d is not a property map", inv.Feature)
	}
	if !node.HasFeature(kind) {
		return nil, invocationError(ErrInternalInconsistency, inv, "%v has no property map", node)
	}
	key := inv.Property
	if key == "" {
		return nil, invocationError(ErrMalformedInvocation, inv, "missing property name")
	}

	if !node.IsEnabled() && disabledUpdateMode(node, key) != state.Always {
		h.logDisabledDrop(node, key)
		return nil, &InvocationError{Kind: ErrNodeDisabled, NodeID: node.ID(), Property: key}
	}

	pm := node.PropertyMap()
	if pm.AllowUpdateFromClient(key) != state.ExplicitlyAllowed {
		return nil, denied(node, key)
	}

	value, err := jsoncodec.DecodeWithoutTypeInfo(inv.Value)
	if err != nil {
		return nil, invocationError(ErrMalformedInvocation, inv, "property '%s': %v", key, err)
	}
	value, err = resolveNodeValue(node, value)
	if err != nil {
		return nil, invocationError(ErrInternalInconsistency, inv, "property '%s': %v", key, err)
	}

	apply, err := pm.DeferredUpdateFromClient(key, value)
	if err != nil {
		if errors.Is(err, state.ErrUpdateDenied) {
			return nil, denied(node, key)
		}
		return nil, invocationError(ErrMalformedInvocation, inv, "property '%s': %v", key, err)
	}
	return apply, nil
}

func (h *MapSyncHandler) logDisabledDrop(node *state.Node, key string) {
	if f, ok := node.FeatureIfInitialized(state.KindElementProperties); ok &&
		f.(*state.ElementPropertyMap).Property(key) != nil {
		h.logger.Warn("property update request for disabled element is received from the client side; the property update is ignored",
			"property", key, "node", node.ID())
		return
	}
	h.logger.Debug("ignoring update of unset property for disabled element",
		"property", key, "node", node.ID())
}

// disabledUpdateMode returns the mode of the node's synchronization
// registrations for key, OnlyWhenEnabled when there are none.
func disabledUpdateMode(node *state.Node, key string) state.DisabledUpdateMode {
	f, ok := node.FeatureIfInitialized(state.KindElementListeners)
	if !ok {
		return state.OnlyWhenEnabled
	}
	mode, _ := f.(*state.ElementListenerMap).SynchronizationMode(key)
	return mode
}

func denied(node *state.Node, key string) error {
	return &InvocationError{
		Kind:     ErrAuthorizationDenied,
		NodeID:   node.ID(),
		Property: key,
		Message: "client is not allowed to update property '" + key + "' of " + state.Describe(node) +
			"; allow it with an update filter or a property synchronization registration",
	}
}

// resolveNodeValue turns a decoded {"nodeId": n} reference into the value to
// store. A model list item is copied, a node held as a property of its
// parent's property map is stored as is, and anything else (including ids
// that do not resolve in the target's tree) stays the decoded JSON.
func resolveNodeValue(target *state.Node, value any) (any, error) {
	id, ok := jsoncodec.NodeReference(value)
	if !ok {
		return value, nil
	}
	tree := target.Tree()
	if tree == nil {
		return value, nil
	}
	ref, ok := tree.NodeByID(id)
	if !ok || ref.Parent() == nil {
		return value, nil
	}
	parent := ref.Parent()
	if f, ok := parent.FeatureIfInitialized(state.KindModelList); ok && f.(*state.NodeList).Contains(ref) {
		return ref.CopyStructure()
	}
	if f, ok := parent.FeatureIfInitialized(state.KindElementProperties); ok && f.(*state.ElementPropertyMap).HoldsNode(ref) {
		return ref, nil
	}
	return value, nil
}
