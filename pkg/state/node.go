package state

import (
	"fmt"
	"sync/atomic"
)

// lastNodeID is the process-wide node id counter.
var lastNodeID atomic.Int64

// Node is a unit of synchronized state in a Tree.
//
// A node declares the feature kinds it supports when it is created. Feature
// instances are created on first access and live as long as the node.
type Node struct {
	id       int
	parent   *Node
	tree     *Tree
	disabled bool

	supported uint32
	features  [numKinds]Feature
}

// NewNode creates an unattached node supporting the given feature kinds.
func NewNode(kinds ...FeatureKind) *Node {
	n := &Node{id: int(lastNodeID.Add(1))}
	for _, k := range kinds {
		if !k.Valid() {
			panic(fmt.Sprintf("state: unregistered feature kind %d", uint8(k)))
		}
		n.supported |= 1 << k
	}
	return n
}

// ID returns the node id. It never changes.
func (n *Node) ID() int {
	return n.id
}

// Parent returns the owning node, or nil.
func (n *Node) Parent() *Node {
	return n.parent
}

// Tree returns the tree the node is attached to, or nil.
func (n *Node) Tree() *Tree {
	return n.tree
}

// IsAttached reports whether the node is registered in a tree.
func (n *Node) IsAttached() bool {
	return n.tree != nil
}

// HasFeature reports whether the node declares the feature kind.
func (n *Node) HasFeature(kind FeatureKind) bool {
	return kind.Valid() && n.supported&(1<<kind) != 0
}

// Kinds returns the declared feature kinds in registry order.
func (n *Node) Kinds() []FeatureKind {
	var kinds []FeatureKind
	for k := FeatureKind(0); k < numKinds; k++ {
		if n.HasFeature(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Feature returns the feature instance for kind, creating it on first use.
func (n *Node) Feature(kind FeatureKind) (Feature, error) {
	if !n.HasFeature(kind) {
		return nil, fmt.Errorf("%w: node %d does not support %s", ErrUnsupportedFeature, n.id, kind)
	}
	if f := n.features[kind]; f != nil {
		return f, nil
	}
	f := registry[kind].make(n)
	n.features[kind] = f
	return f, nil
}

// FeatureIfInitialized returns the feature only if it was already created.
// It never allocates.
func (n *Node) FeatureIfInitialized(kind FeatureKind) (Feature, bool) {
	if !kind.Valid() {
		return nil, false
	}
	f := n.features[kind]
	return f, f != nil
}

func (n *Node) mustFeature(kind FeatureKind) Feature {
	f, err := n.Feature(kind)
	if err != nil {
		panic(err)
	}
	return f
}

// PropertyMap returns the element property map.
// It panics if the node does not support KindElementProperties.
func (n *Node) PropertyMap() *ElementPropertyMap {
	return n.mustFeature(KindElementProperties).(*ElementPropertyMap)
}

// ElementData returns the element data feature.
// It panics if the node does not support KindElementData.
func (n *Node) ElementData() *ElementData {
	return n.mustFeature(KindElementData).(*ElementData)
}

// Children returns the element children list.
// It panics if the node does not support KindElementChildren.
func (n *Node) Children() *NodeList {
	return n.mustFeature(KindElementChildren).(*NodeList)
}

// Listeners returns the element listener map.
// It panics if the node does not support KindElementListeners.
func (n *Node) Listeners() *ElementListenerMap {
	return n.mustFeature(KindElementListeners).(*ElementListenerMap)
}

// ModelList returns the model list feature.
// It panics if the node does not support KindModelList.
func (n *Node) ModelList() *NodeList {
	return n.mustFeature(KindModelList).(*NodeList)
}

// SetEnabled sets the node's own enabled flag.
func (n *Node) SetEnabled(enabled bool) {
	n.disabled = !enabled
}

// IsEnabledSelf reports the node's own flag, ignoring ancestors.
func (n *Node) IsEnabledSelf() bool {
	return !n.disabled
}

// IsEnabled reports whether the node and all of its ancestors are enabled.
func (n *Node) IsEnabled() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.disabled {
			return false
		}
	}
	return true
}

// Visit calls fn for the node and every node it owns, depth first.
// Returning false from fn skips the node's children.
func (n *Node) Visit(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	n.forEachChild(func(child *Node) {
		child.Visit(fn)
	})
}

// forEachChild calls fn for each directly owned child, in feature order.
func (n *Node) forEachChild(fn func(*Node)) {
	for _, f := range n.features {
		if owner, ok := f.(childOwner); ok {
			owner.forEachChild(fn)
		}
	}
}

// setParent links n below p, or unlinks it when p is nil.
// Attaching below an attached parent registers the whole subtree.
func (n *Node) setParent(p *Node) error {
	if p == nil {
		if n.tree != nil {
			n.tree.unregisterSubtree(n)
		}
		n.parent = nil
		return nil
	}
	if n.parent == p {
		return nil
	}
	if n.parent != nil {
		return fmt.Errorf("%w: node %d is owned by node %d", ErrHasParent, n.id, n.parent.id)
	}
	if n.tree != nil && n.tree.root == n {
		return fmt.Errorf("%w: node %d is the root of a tree", ErrHasParent, n.id)
	}
	for a := p; a != nil; a = a.parent {
		if a == n {
			return fmt.Errorf("%w: node %d", ErrCycle, n.id)
		}
	}
	n.parent = p
	if p.tree != nil {
		p.tree.registerSubtree(n)
	}
	return nil
}

// markDirty records that the node has changes for the client.
func (n *Node) markDirty() {
	if n.tree != nil {
		n.tree.markDirty(n)
	}
}

// CopyStructure returns an unattached copy of the node with fresh ids.
// Property values are copied, nested model nodes owned by the node are copied
// recursively and list items are copied in order. Node values the node does
// not own stay aliases of the same node. Listener registrations are not
// copied.
func (n *Node) CopyStructure() (*Node, error) {
	cp := &Node{
		id:        int(lastNodeID.Add(1)),
		supported: n.supported,
		disabled:  n.disabled,
	}
	if f, ok := n.FeatureIfInitialized(KindElementData); ok {
		src := f.(*ElementData)
		dst := cp.ElementData()
		dst.tag = src.tag
		dst.component = src.component
	}
	if f, ok := n.FeatureIfInitialized(KindElementProperties); ok {
		src := f.(*ElementPropertyMap)
		dst := cp.PropertyMap()
		dst.filter = src.filter
		copies := make(map[*Node]*Node)
		for _, key := range src.PropertyNames() {
			v := src.values[key]
			child, ok := v.(*Node)
			if !ok || child.parent != n {
				// Plain values and aliases are carried over as is.
				dst.values[key] = v
				dst.markDirty(key)
				continue
			}
			if c, ok := copies[child]; ok {
				dst.values[key] = c
				dst.markDirty(key)
				continue
			}
			c, err := child.CopyStructure()
			if err != nil {
				return nil, err
			}
			copies[child] = c
			if err := dst.SetProperty(key, c); err != nil {
				return nil, fmt.Errorf("state: copy property %q of node %d: %w", key, n.id, err)
			}
		}
	}
	for _, kind := range []FeatureKind{KindElementChildren, KindModelList} {
		if f, ok := n.FeatureIfInitialized(kind); ok {
			src := f.(*NodeList)
			dst := cp.mustFeature(kind).(*NodeList)
			for _, item := range src.items {
				c, err := item.CopyStructure()
				if err != nil {
					return nil, err
				}
				if err := dst.Add(c); err != nil {
					return nil, fmt.Errorf("state: copy list item of node %d: %w", n.id, err)
				}
			}
		}
	}
	return cp, nil
}

// String returns a short description for logs.
func (n *Node) String() string {
	if f, ok := n.FeatureIfInitialized(KindElementData); ok {
		if tag := f.(*ElementData).Tag(); tag != "" {
			return fmt.Sprintf("node %d <%s>", n.id, tag)
		}
	}
	return fmt.Sprintf("node %d", n.id)
}
