package snapshot

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/vango-dev/nodesync/pkg/state"
)

type formView struct{}

// buildTree returns a tree with a form element holding plain values, a model
// map, a model list and a second, disabled element aliasing the model map.
func buildTree(t *testing.T) (*state.Tree, *state.Node, *state.Node) {
	t.Helper()
	tree := state.NewTree()
	form := state.NewComponentElement("form", formView{})
	other := state.NewElement("input")
	for _, el := range []*state.Node{form, other} {
		if err := state.AppendChild(tree.Root(), el); err != nil {
			t.Fatal(err)
		}
	}

	pm := form.PropertyMap()
	_ = pm.SetProperty("title", "Signup")
	_ = pm.SetProperty("count", 3)
	_ = pm.SetProperty("tags", []any{"a", "b"})
	person, err := pm.ResolveModelMap("person")
	if err != nil {
		t.Fatal(err)
	}
	_ = person.SetProperty("name", "Ada")

	items, err := pm.ResolveModelList("items")
	if err != nil {
		t.Fatal(err)
	}
	for _, sku := range []string{"x1", "x2"} {
		item := state.NewNode(state.KindElementProperties)
		_ = item.PropertyMap().SetProperty("sku", sku)
		if err := items.Add(item); err != nil {
			t.Fatal(err)
		}
	}

	if err := other.PropertyMap().SetProperty("peer", person.Node()); err != nil {
		t.Fatal(err)
	}
	other.SetEnabled(false)
	return tree, form, other
}

func roundTrip(t *testing.T, tree *state.Tree) *state.Tree {
	t.Helper()
	doc, err := Capture(tree)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	restored, err := Restore(decoded)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	return restored
}

func TestCaptureRestoreRoundTrip(t *testing.T) {
	tree, form, _ := buildTree(t)
	restored := roundTrip(t, tree)

	if restored.Len() != tree.Len() {
		t.Errorf("Len() = %d, want %d", restored.Len(), tree.Len())
	}
	children := restored.Root().Children()
	if children.Size() != 2 {
		t.Fatalf("root children = %d, want 2", children.Size())
	}
	form2, other2 := children.Get(0), children.Get(1)
	if form2.ID() == form.ID() {
		t.Error("restored nodes should get fresh ids")
	}
	if got := form2.ElementData().Tag(); got != "form" {
		t.Errorf("tag = %q, want form", got)
	}
	if got := form2.ElementData().ComponentName(); got != state.ComponentName(formView{}) {
		t.Errorf("component = %q", got)
	}

	pm := form2.PropertyMap()
	if got := pm.Property("title"); got != "Signup" {
		t.Errorf("title = %v, want Signup", got)
	}
	if got := pm.Property("count"); got != float64(3) {
		t.Errorf("count = %#v, want 3", got)
	}
	if tags, ok := pm.Property("tags").([]any); !ok || len(tags) != 2 || tags[1] != "b" {
		t.Errorf("tags = %#v", pm.Property("tags"))
	}

	person, ok := pm.Property("person").(*state.Node)
	if !ok {
		t.Fatalf("person = %T, want node", pm.Property("person"))
	}
	if person.Parent() != form2 {
		t.Error("model map should be owned by the restored form")
	}
	if got := person.PropertyMap().Property("name"); got != "Ada" {
		t.Errorf("person.name = %v, want Ada", got)
	}

	items, err := pm.ResolveModelList("items")
	if err != nil {
		t.Fatal(err)
	}
	if items.Size() != 2 || items.Get(1).PropertyMap().Property("sku") != "x2" {
		t.Errorf("items not restored in order")
	}

	if other2.IsEnabledSelf() {
		t.Error("disabled flag should be restored")
	}
	if got := other2.PropertyMap().Property("peer"); got != person {
		t.Errorf("peer = %v, want alias of restored person model", got)
	}

	if restored.HasChanges() {
		t.Error("restored tree should start without pending changes")
	}
}

func TestCaptureSkipsDetachedNodes(t *testing.T) {
	tree, _, other := buildTree(t)
	tree.Root().Children().Remove(other)

	doc, err := Capture(tree)
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range doc.Nodes {
		if rec.ID == other.ID() {
			t.Error("detached node should not be captured")
		}
	}
	if len(doc.Nodes) != tree.Len() {
		t.Errorf("records = %d, want %d", len(doc.Nodes), tree.Len())
	}
}

func TestCaptureRejectsUnencodableValue(t *testing.T) {
	tree := state.NewTree()
	_ = tree.Root().PropertyMap().SetProperty("fn", func() {})

	if _, err := Capture(tree); err == nil {
		t.Error("expected an error for a function value")
	}
}

func TestRestoreInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
	}{
		{"version", &Document{Version: 99}},
		{"missing root", &Document{Version: FormatVersion, Root: 1}},
		{"unknown feature", &Document{Version: FormatVersion, Root: 1, Nodes: []NodeRecord{{ID: 1, Features: []int{42}}}}},
		{"duplicate", &Document{Version: FormatVersion, Root: 1, Nodes: []NodeRecord{{ID: 1}, {ID: 1}}}},
		{"dangling child", &Document{Version: FormatVersion, Root: 1, Nodes: []NodeRecord{
			{ID: 1, Features: []int{0, 1, 2, 4}, Children: []int{7}},
		}}},
		{"untagged array", &Document{Version: FormatVersion, Root: 1, Nodes: []NodeRecord{
			{ID: 1, Features: []int{1}, Properties: map[string]json.RawMessage{"a": json.RawMessage(`["x"]`)}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Restore(tt.doc); !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("err = %v, want ErrInvalidSnapshot", err)
			}
		})
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	if _, err := Unmarshal([]byte("{")); !errors.Is(err, ErrInvalidSnapshot) {
		t.Errorf("err = %v, want ErrInvalidSnapshot", err)
	}
}
