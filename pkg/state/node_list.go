package state

import (
	"fmt"
)

// NodeList is an ordered list of child nodes owned by the list's node.
// It backs both element children and model lists.
type NodeList struct {
	node  *Node
	kind  FeatureKind
	items []*Node

	// Length the client last saw, and whether the list changed since.
	sentLen int
	dirty   bool
}

func newNodeList(n *Node, kind FeatureKind) *NodeList {
	return &NodeList{node: n, kind: kind}
}

// Kind returns the list's feature kind.
func (l *NodeList) Kind() FeatureKind { return l.kind }

// Node returns the owning node.
func (l *NodeList) Node() *Node { return l.node }

// Size returns the number of items.
func (l *NodeList) Size() int {
	return len(l.items)
}

// Get returns the item at index.
func (l *NodeList) Get(index int) *Node {
	return l.items[index]
}

// Items returns a copy of the items.
func (l *NodeList) Items() []*Node {
	return append([]*Node(nil), l.items...)
}

// IndexOf returns the index of n, or -1.
func (l *NodeList) IndexOf(n *Node) int {
	for i, item := range l.items {
		if item == n {
			return i
		}
	}
	return -1
}

// Contains reports whether n is an item of the list.
func (l *NodeList) Contains(n *Node) bool {
	return l.IndexOf(n) >= 0
}

// Add appends an unowned node.
func (l *NodeList) Add(n *Node) error {
	return l.Insert(len(l.items), n)
}

// Insert adds an unowned node at index.
func (l *NodeList) Insert(index int, n *Node) error {
	if index < 0 || index > len(l.items) {
		return fmt.Errorf("state: list index %d out of range [0,%d]", index, len(l.items))
	}
	if n == nil {
		return fmt.Errorf("state: nil list item")
	}
	if n.parent != nil {
		return fmt.Errorf("%w: node %d is owned by node %d", ErrHasParent, n.id, n.parent.id)
	}
	if n.tree != nil && n.tree != l.node.tree {
		return fmt.Errorf("%w: node %d", ErrForeignNode, n.id)
	}
	l.items = append(l.items, nil)
	copy(l.items[index+1:], l.items[index:])
	l.items[index] = n
	if err := n.setParent(l.node); err != nil {
		l.items = append(l.items[:index], l.items[index+1:]...)
		return err
	}
	l.markDirty()
	return nil
}

// RemoveAt removes and detaches the item at index.
func (l *NodeList) RemoveAt(index int) *Node {
	n := l.items[index]
	l.items = append(l.items[:index], l.items[index+1:]...)
	_ = n.setParent(nil)
	l.markDirty()
	return n
}

// Remove removes n if it is an item. It reports whether it was found.
func (l *NodeList) Remove(n *Node) bool {
	i := l.IndexOf(n)
	if i < 0 {
		return false
	}
	l.RemoveAt(i)
	return true
}

// Clear removes all items.
func (l *NodeList) Clear() {
	for len(l.items) > 0 {
		l.RemoveAt(len(l.items) - 1)
	}
}

func (l *NodeList) markDirty() {
	l.dirty = true
	l.node.markDirty()
}

func (l *NodeList) forEachChild(fn func(*Node)) {
	for _, item := range l.items {
		fn(item)
	}
}

func (l *NodeList) collectChanges(full bool, emit func(Change)) {
	if full {
		l.sentLen = 0
		if len(l.items) == 0 {
			l.dirty = false
			return
		}
	} else if !l.dirty {
		return
	}
	emit(Change{
		Type:    ChangeSplice,
		Node:    l.node.id,
		Feature: l.kind,
		Index:   0,
		Remove:  l.sentLen,
		Add:     l.Items(),
	})
	l.sentLen = len(l.items)
	l.dirty = false
}
