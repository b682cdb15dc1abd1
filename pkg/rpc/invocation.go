package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/vango-dev/nodesync/pkg/jsoncodec"
	"github.com/vango-dev/nodesync/pkg/state"
)

// Invocation types.
const (
	TypeMapSync = "mSync"
	TypeEvent   = "event"
)

// Invocation is one client RPC message. Which fields are used depends on Type.
type Invocation struct {
	Type     string          `json:"type"`
	Node     int             `json:"node"`
	Feature  int             `json:"feature,omitempty"`
	Property string          `json:"property,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Event    string          `json:"event,omitempty"`
	Data     map[string]any  `json:"data,omitempty"`
}

// NewMapSync builds a property sync invocation for node, encoding value
// without type info.
func NewMapSync(node *state.Node, property string, value any) (Invocation, error) {
	raw, err := jsoncodec.EncodeWithoutTypeInfo(value)
	if err != nil {
		return Invocation{}, fmt.Errorf("rpc: encode %q: %w", property, err)
	}
	return Invocation{
		Type:     TypeMapSync,
		Node:     node.ID(),
		Feature:  state.FeatureID(state.KindElementProperties),
		Property: property,
		Value:    raw,
	}, nil
}

// NewEvent builds a DOM event invocation for node.
func NewEvent(node *state.Node, event string, data map[string]any) Invocation {
	return Invocation{
		Type:  TypeEvent,
		Node:  node.ID(),
		Event: event,
		Data:  data,
	}
}

// Request is a batch of invocations sent by the client in one round trip.
type Request struct {
	// SyncID is the last server sync id the client has seen.
	SyncID int          `json:"syncId"`
	RPC    []Invocation `json:"rpc,omitempty"`
}

// Response carries the changes produced by a batch.
type Response struct {
	SyncID  int          `json:"syncId"`
	Changes []ChangeJSON `json:"changes,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// ChangeJSON is the wire form of a state.Change.
type ChangeJSON struct {
	Node      int             `json:"node"`
	Type      string          `json:"type"`
	Feature   *int            `json:"feat,omitempty"`
	Key       string          `json:"key,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	NodeValue *int            `json:"nodeValue,omitempty"`
	Index     *int            `json:"index,omitempty"`
	Remove    *int            `json:"remove,omitempty"`
	AddNodes  []int           `json:"addNodes,omitempty"`
}

// EncodeChanges converts collected tree changes to their wire form.
func EncodeChanges(changes []state.Change) ([]ChangeJSON, error) {
	out := make([]ChangeJSON, 0, len(changes))
	for _, c := range changes {
		cj := ChangeJSON{Node: c.Node, Type: string(c.Type)}
		switch c.Type {
		case state.ChangeAttach, state.ChangeDetach:
		case state.ChangePut:
			cj.Feature = intPtr(state.FeatureID(c.Feature))
			cj.Key = c.Key
			if n, ok := c.Value.(*state.Node); ok && n != nil {
				cj.NodeValue = intPtr(n.ID())
				break
			}
			raw, err := jsoncodec.EncodeWithTypeInfo(c.Value)
			if err != nil {
				return nil, fmt.Errorf("rpc: node %d key %q: %w", c.Node, c.Key, err)
			}
			cj.Value = raw
		case state.ChangeRemove:
			cj.Feature = intPtr(state.FeatureID(c.Feature))
			cj.Key = c.Key
		case state.ChangeSplice:
			cj.Feature = intPtr(state.FeatureID(c.Feature))
			cj.Index = intPtr(c.Index)
			cj.Remove = intPtr(c.Remove)
			cj.AddNodes = make([]int, len(c.Add))
			for i, n := range c.Add {
				cj.AddNodes[i] = n.ID()
			}
		default:
			return nil, fmt.Errorf("rpc: unknown change type %q", c.Type)
		}
		out = append(out, cj)
	}
	return out, nil
}

func intPtr(v int) *int {
	return &v
}
