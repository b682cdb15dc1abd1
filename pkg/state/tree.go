package state

import (
	"sort"
)

// ChangeType is the kind of a change reported to the client.
type ChangeType string

const (
	// ChangeAttach reports a node that became part of the tree.
	ChangeAttach ChangeType = "attach"

	// ChangeDetach reports a node that left the tree.
	ChangeDetach ChangeType = "detach"

	// ChangePut reports a property set to Value.
	ChangePut ChangeType = "put"

	// ChangeRemove reports a removed property.
	ChangeRemove ChangeType = "remove"

	// ChangeSplice reports a list splice: Remove items at Index replaced by Add.
	ChangeSplice ChangeType = "splice"
)

// Change is one pending update for the client.
type Change struct {
	Type    ChangeType
	Node    int
	Feature FeatureKind
	Key     string
	Value   any
	Index   int
	Remove  int
	Add     []*Node
}

// Tree owns a root node and every node attached below it.
type Tree struct {
	root  *Node
	nodes map[int]*Node

	// Nodes attached since the last collection; their full state is sent.
	fresh map[int]struct{}
	dirty map[int]struct{}

	// Detached node ids since the last collection.
	detached []int
}

// NewTree creates a tree whose root is a "body" element.
func NewTree() *Tree {
	return NewTreeWithRoot(NewElement("body"))
}

// NewTreeWithRoot creates a tree with the given unattached root.
// It panics if root already belongs to a tree or has a parent.
func NewTreeWithRoot(root *Node) *Tree {
	if root.tree != nil || root.parent != nil {
		panic("state: tree root must be unattached")
	}
	t := &Tree{
		root:  root,
		nodes: make(map[int]*Node),
		fresh: make(map[int]struct{}),
		dirty: make(map[int]struct{}),
	}
	t.registerSubtree(root)
	return t
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.root
}

// NodeByID resolves an id to an attached node.
func (t *Tree) NodeByID(id int) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Len returns the number of attached nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// HasChanges reports whether CollectChanges would return anything.
func (t *Tree) HasChanges() bool {
	return len(t.fresh) > 0 || len(t.dirty) > 0 || len(t.detached) > 0
}

func (t *Tree) registerSubtree(n *Node) {
	n.tree = t
	t.nodes[n.id] = n
	t.fresh[n.id] = struct{}{}
	n.forEachChild(func(child *Node) {
		if child.parent == n {
			t.registerSubtree(child)
		}
	})
}

func (t *Tree) unregisterSubtree(n *Node) {
	n.forEachChild(func(child *Node) {
		if child.parent == n {
			t.unregisterSubtree(child)
		}
	})
	delete(t.nodes, n.id)
	delete(t.dirty, n.id)
	if _, ok := t.fresh[n.id]; ok {
		// The client never saw it.
		delete(t.fresh, n.id)
	} else {
		t.detached = append(t.detached, n.id)
	}
	n.tree = nil
}

func (t *Tree) markDirty(n *Node) {
	if _, ok := t.fresh[n.id]; ok {
		return
	}
	t.dirty[n.id] = struct{}{}
}

// CollectChanges drains all pending changes in a deterministic order:
// detaches first, then attached nodes by ascending id.
func (t *Tree) CollectChanges() []Change {
	var changes []Change
	emit := func(c Change) {
		changes = append(changes, c)
	}

	for _, id := range t.detached {
		emit(Change{Type: ChangeDetach, Node: id})
	}

	ids := make([]int, 0, len(t.fresh)+len(t.dirty))
	for id := range t.fresh {
		ids = append(ids, id)
	}
	for id := range t.dirty {
		if _, ok := t.fresh[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	for _, id := range ids {
		n := t.nodes[id]
		if n == nil {
			continue
		}
		_, full := t.fresh[id]
		if full {
			emit(Change{Type: ChangeAttach, Node: id})
		}
		for _, f := range n.features {
			if tracker, ok := f.(changeTracker); ok {
				tracker.collectChanges(full, emit)
			}
		}
	}

	t.detached = nil
	clear(t.fresh)
	clear(t.dirty)
	return changes
}
