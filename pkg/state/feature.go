package state

import (
	"fmt"
)

// FeatureKind identifies one facet of a node's state.
type FeatureKind uint8

const (
	// KindElementData holds the tag name and owning component.
	KindElementData FeatureKind = iota

	// KindElementProperties is the element property map.
	KindElementProperties

	// KindElementChildren is the ordered list of child elements.
	KindElementChildren

	// KindElementListeners holds DOM listeners and property sync registrations.
	KindElementListeners

	// KindModelList is an ordered list of model nodes stored under a property.
	KindModelList

	numKinds
)

// Feature is a typed facet of a node's state.
type Feature interface {
	// Kind returns the feature kind.
	Kind() FeatureKind

	// Node returns the node that owns this feature.
	Node() *Node
}

// featureEntry describes one registered feature kind.
type featureEntry struct {
	id   int
	name string
	make func(n *Node) Feature
}

// registry is fixed at init. Wire ids are independent of declaration order so
// that adding a kind never renumbers existing ones.
var (
	registry  [numKinds]featureEntry
	kindsByID map[int]FeatureKind
)

func init() {
	registry = [numKinds]featureEntry{
		KindElementData: {
			id:   0,
			name: "elementData",
			make: func(n *Node) Feature { return newElementData(n) },
		},
		KindElementProperties: {
			id:   1,
			name: "elementProperties",
			make: func(n *Node) Feature { return newElementPropertyMap(n) },
		},
		KindElementChildren: {
			id:   2,
			name: "elementChildren",
			make: func(n *Node) Feature { return newNodeList(n, KindElementChildren) },
		},
		KindElementListeners: {
			id:   4,
			name: "elementListeners",
			make: func(n *Node) Feature { return newElementListenerMap(n) },
		},
		KindModelList: {
			id:   11,
			name: "modelList",
			make: func(n *Node) Feature { return newNodeList(n, KindModelList) },
		},
	}

	kindsByID = make(map[int]FeatureKind, numKinds)
	for k := FeatureKind(0); k < numKinds; k++ {
		id := registry[k].id
		if _, dup := kindsByID[id]; dup {
			panic(fmt.Sprintf("state: duplicate feature id %d", id))
		}
		kindsByID[id] = k
	}
}

// String returns the registered name of the kind.
func (k FeatureKind) String() string {
	if k >= numKinds {
		return fmt.Sprintf("FeatureKind(%d)", uint8(k))
	}
	return registry[k].name
}

// Valid reports whether k is a registered kind.
func (k FeatureKind) Valid() bool {
	return k < numKinds
}

// FeatureID returns the wire id for a feature kind.
// It panics if the kind is not registered.
func FeatureID(kind FeatureKind) int {
	if !kind.Valid() {
		panic(fmt.Sprintf("state: unregistered feature kind %d", uint8(kind)))
	}
	return registry[kind].id
}

// KindForID resolves a wire id to a feature kind.
func KindForID(id int) (FeatureKind, error) {
	k, ok := kindsByID[id]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownFeature, id)
	}
	return k, nil
}

// AllKinds returns every registered kind in declaration order.
func AllKinds() []FeatureKind {
	kinds := make([]FeatureKind, 0, numKinds)
	for k := FeatureKind(0); k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ElementKinds is the feature set of an element node.
var ElementKinds = []FeatureKind{
	KindElementData,
	KindElementProperties,
	KindElementChildren,
	KindElementListeners,
}

// childOwner is implemented by features that own child nodes.
type childOwner interface {
	forEachChild(fn func(*Node))
}

// changeTracker is implemented by features that report changes to the client.
type changeTracker interface {
	collectChanges(full bool, emit func(Change))
}
