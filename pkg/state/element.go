package state

import (
	"reflect"
)

// ElementData holds element metadata: tag name and owning component.
type ElementData struct {
	node      *Node
	tag       string
	component string
}

func newElementData(n *Node) *ElementData {
	return &ElementData{node: n}
}

// Kind returns KindElementData.
func (d *ElementData) Kind() FeatureKind { return KindElementData }

// Node returns the owning node.
func (d *ElementData) Node() *Node { return d.node }

// Tag returns the element tag name.
func (d *ElementData) Tag() string { return d.tag }

// SetTag sets the element tag name.
func (d *ElementData) SetTag(tag string) {
	d.tag = tag
	d.node.markDirty()
}

// ComponentName returns the qualified name of the component that owns the
// element, or "".
func (d *ElementData) ComponentName() string { return d.component }

// SetComponentName records the owning component's qualified name.
func (d *ElementData) SetComponentName(name string) {
	d.component = name
}

func (d *ElementData) collectChanges(full bool, emit func(Change)) {
	// Only the tag travels to the client, and it is fixed after attach.
	if full && d.tag != "" {
		emit(Change{Type: ChangePut, Node: d.node.id, Feature: KindElementData, Key: "tag", Value: d.tag})
	}
}

// NewElement creates an unattached element node with the given tag.
func NewElement(tag string) *Node {
	n := NewNode(ElementKinds...)
	n.ElementData().tag = tag
	return n
}

// NewComponentElement creates an element node owned by component. The
// component's qualified type name is recorded for diagnostics.
func NewComponentElement(tag string, component any) *Node {
	n := NewElement(tag)
	n.ElementData().component = ComponentName(component)
	return n
}

// ComponentName returns the package-qualified type name of v, dereferencing
// pointers, e.g. "example.com/app/views.LoginForm".
func ComponentName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// AppendChild appends child to parent's element children.
func AppendChild(parent, child *Node) error {
	return parent.Children().Add(child)
}

// OwningElement walks up from n to the nearest node with element data,
// which is n itself for element nodes. It returns nil for free-standing
// model nodes.
func OwningElement(n *Node) *Node {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.HasFeature(KindElementData) {
			return cur
		}
	}
	return nil
}

// Describe names the element or component n belongs to, for error messages:
// "Component <name>" when a component owns the element, otherwise
// "Element with tag '<tag>'".
func Describe(n *Node) string {
	el := OwningElement(n)
	if el == nil {
		return n.String()
	}
	data := el.ElementData()
	if data.component != "" {
		return "Component " + data.component
	}
	return "Element with tag '" + data.tag + "'"
}
