package state

import (
	"testing"
)

func TestNodeByIDResolvesAttachedNodesOnly(t *testing.T) {
	tree := NewTree()
	el := NewElement("div")

	if _, ok := tree.NodeByID(el.ID()); ok {
		t.Error("unattached node should not resolve")
	}

	mustAppend(t, tree.Root(), el)
	got, ok := tree.NodeByID(el.ID())
	if !ok || got != el {
		t.Error("attached node should resolve")
	}
	if el.Tree() != tree {
		t.Error("node should know its tree")
	}

	tree.Root().Children().Remove(el)
	if _, ok := tree.NodeByID(el.ID()); ok {
		t.Error("detached node should not resolve")
	}
	if el.IsAttached() {
		t.Error("detached node should report unattached")
	}
}

func TestAttachRegistersWholeSubtree(t *testing.T) {
	tree := NewTree()
	el := NewElement("div")
	list, _ := el.PropertyMap().ResolveModelList("items")
	item := NewNode(KindElementProperties)
	if err := list.Add(item); err != nil {
		t.Fatal(err)
	}

	mustAppend(t, tree.Root(), el)

	for _, n := range []*Node{el, list.Node(), item} {
		if _, ok := tree.NodeByID(n.ID()); !ok {
			t.Errorf("%v should be attached", n)
		}
	}
	if tree.Len() != 4 {
		t.Errorf("Len() = %d, want 4", tree.Len())
	}
}

func TestCollectChanges(t *testing.T) {
	tree := NewTree()
	tree.CollectChanges()

	el := NewElement("input")
	_ = el.PropertyMap().SetProperty("value", "a")
	mustAppend(t, tree.Root(), el)

	changes := tree.CollectChanges()
	assertHasChange(t, changes, Change{Type: ChangeAttach, Node: el.ID()})
	assertHasChange(t, changes, Change{Type: ChangePut, Node: el.ID(), Feature: KindElementProperties, Key: "value", Value: "a"})
	assertHasChange(t, changes, Change{Type: ChangePut, Node: el.ID(), Feature: KindElementData, Key: "tag", Value: "input"})

	if tree.HasChanges() {
		t.Error("collect should drain pending changes")
	}

	_ = el.PropertyMap().SetProperty("value", "b")
	changes = tree.CollectChanges()
	if len(changes) != 1 {
		t.Fatalf("changes = %+v, want one put", changes)
	}
	assertHasChange(t, changes, Change{Type: ChangePut, Node: el.ID(), Feature: KindElementProperties, Key: "value", Value: "b"})

	el.PropertyMap().RemoveProperty("value")
	changes = tree.CollectChanges()
	assertHasChange(t, changes, Change{Type: ChangeRemove, Node: el.ID(), Feature: KindElementProperties, Key: "value"})

	tree.Root().Children().Remove(el)
	changes = tree.CollectChanges()
	assertHasChange(t, changes, Change{Type: ChangeDetach, Node: el.ID()})
}

func TestCollectChangesSplice(t *testing.T) {
	tree := NewTree()
	tree.CollectChanges()

	a := NewElement("li")
	b := NewElement("li")
	mustAppend(t, tree.Root(), a)
	tree.CollectChanges()

	mustAppend(t, tree.Root(), b)
	changes := tree.CollectChanges()

	var splice *Change
	for i := range changes {
		if changes[i].Type == ChangeSplice && changes[i].Node == tree.Root().ID() {
			splice = &changes[i]
		}
	}
	if splice == nil {
		t.Fatalf("no splice in %+v", changes)
	}
	if splice.Remove != 1 || len(splice.Add) != 2 || splice.Add[1] != b {
		t.Errorf("splice = %+v", *splice)
	}
}

func TestDetachOfUnsentNodeIsSilent(t *testing.T) {
	tree := NewTree()
	tree.CollectChanges()

	el := NewElement("div")
	mustAppend(t, tree.Root(), el)
	tree.Root().Children().Remove(el)

	for _, c := range tree.CollectChanges() {
		if c.Node == el.ID() {
			t.Errorf("unexpected change for never-sent node: %+v", c)
		}
	}
}

func assertHasChange(t *testing.T, changes []Change, want Change) {
	t.Helper()
	for _, c := range changes {
		if c.Type == want.Type && c.Node == want.Node && c.Feature == want.Feature &&
			c.Key == want.Key && c.Value == want.Value {
			return
		}
	}
	t.Errorf("missing change %+v in %+v", want, changes)
}
