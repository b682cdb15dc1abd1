package state

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// UpdateFilter decides whether the client may write a property key.
type UpdateFilter func(key string) bool

// PropertyChangeEvent describes a committed property change.
type PropertyChangeEvent struct {
	Node           *Node
	Key            string
	OldValue       any
	Value          any
	UserOriginated bool
}

// PropertyChangeListener receives committed property changes.
type PropertyChangeListener func(PropertyChangeEvent)

// ElementPropertyMap is the synchronizable key/value store of a node.
//
// A value is nil, a bool, a number, a string, decoded JSON (map[string]any or
// []any) or a *Node. Node values set through the map are owned by the map's
// node, which is how model maps and model lists hang below an element.
type ElementPropertyMap struct {
	node      *Node
	values    map[string]any
	dirty     map[string]struct{}
	filter    UpdateFilter
	listeners map[string][]*listenerEntry
}

type listenerEntry struct {
	fn PropertyChangeListener
}

func newElementPropertyMap(n *Node) *ElementPropertyMap {
	return &ElementPropertyMap{
		node:   n,
		values: make(map[string]any),
		dirty:  make(map[string]struct{}),
	}
}

// Kind returns KindElementProperties.
func (m *ElementPropertyMap) Kind() FeatureKind { return KindElementProperties }

// Node returns the owning node.
func (m *ElementPropertyMap) Node() *Node { return m.node }

// HasProperty reports whether key has been set, even to nil.
func (m *ElementPropertyMap) HasProperty(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Property returns the value of key, or nil if it was never set.
// Use HasProperty to tell an unset key from a nil value.
func (m *ElementPropertyMap) Property(key string) any {
	return m.values[key]
}

// PropertyNames returns the set keys in sorted order.
func (m *ElementPropertyMap) PropertyNames() []string {
	names := make([]string, 0, len(m.values))
	for k := range m.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetProperty sets key to value and marks it for the client.
func (m *ElementPropertyMap) SetProperty(key string, value any) error {
	return m.put(key, value, false)
}

// RemoveProperty removes key. Removing an unset key is a no-op.
func (m *ElementPropertyMap) RemoveProperty(key string) {
	old, ok := m.values[key]
	if !ok {
		return
	}
	delete(m.values, key)
	m.release(key, old)
	m.markDirty(key)
	m.fire(key, old, nil, false)
}

func (m *ElementPropertyMap) put(key string, value any, fromClient bool) error {
	if err := m.checkValue(value); err != nil {
		return err
	}
	old, had := m.values[key]
	if child, ok := value.(*Node); ok {
		if err := child.setParent(m.node); err != nil {
			// Aliasing an attached node of the same tree is allowed; the
			// list or map that owns it stays its owner.
			if !errors.Is(err, ErrHasParent) || child.tree == nil || child.tree != m.node.tree {
				return err
			}
		}
	}
	m.values[key] = value
	if oldNode, ok := old.(*Node); had && ok {
		if newNode, _ := value.(*Node); newNode != oldNode {
			m.release(key, old)
		}
	}
	m.markDirty(key)
	m.fire(key, old, value, fromClient)
	return nil
}

// checkValue rejects node values that belong to another tree.
func (m *ElementPropertyMap) checkValue(value any) error {
	child, ok := value.(*Node)
	if !ok {
		return nil
	}
	if child == m.node {
		return fmt.Errorf("%w: node %d", ErrCycle, child.id)
	}
	if child.parent == nil || child.parent == m.node {
		if child.tree != nil && child.tree.root == child {
			return fmt.Errorf("%w: node %d is the root of a tree", ErrForeignNode, child.id)
		}
		return nil
	}
	if child.tree == nil || child.tree != m.node.tree {
		return fmt.Errorf("%w: node %d", ErrForeignNode, child.id)
	}
	return nil
}

// release detaches a node value that is no longer referenced by this map.
func (m *ElementPropertyMap) release(key string, old any) {
	child, ok := old.(*Node)
	if !ok || child.parent != m.node {
		return
	}
	for k, v := range m.values {
		if k != key && v == old {
			return
		}
	}
	_ = child.setParent(nil)
}

func (m *ElementPropertyMap) markDirty(key string) {
	m.dirty[key] = struct{}{}
	m.node.markDirty()
}

// AddPropertyChangeListener registers a server-side listener for key.
// The returned function removes it.
func (m *ElementPropertyMap) AddPropertyChangeListener(key string, fn PropertyChangeListener) func() {
	if m.listeners == nil {
		m.listeners = make(map[string][]*listenerEntry)
	}
	entry := &listenerEntry{fn: fn}
	m.listeners[key] = append(m.listeners[key], entry)
	return func() {
		list := m.listeners[key]
		for i, e := range list {
			if e == entry {
				m.listeners[key] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

func (m *ElementPropertyMap) fire(key string, old, value any, fromClient bool) {
	list := m.listeners[key]
	if len(list) == 0 {
		return
	}
	event := PropertyChangeEvent{
		Node:           m.node,
		Key:            key,
		OldValue:       old,
		Value:          value,
		UserOriginated: fromClient,
	}
	for _, e := range append([]*listenerEntry(nil), list...) {
		e.fn(event)
	}
}

// SetUpdateFromClientFilter sets the predicate for client-writable keys.
// A nil filter allows nothing implicitly.
func (m *ElementPropertyMap) SetUpdateFromClientFilter(filter UpdateFilter) {
	m.filter = filter
}

// UpdateFromClientFilter returns the map's own filter, or nil.
func (m *ElementPropertyMap) UpdateFromClientFilter() UpdateFilter {
	return m.filter
}

// HasUpdateFromClientFilter reports whether this map or an ancestor model
// map configures a filter that governs its keys.
func (m *ElementPropertyMap) HasUpdateFromClientFilter() bool {
	f, _ := m.effectiveFilter("")
	return f != nil
}

// effectiveFilter returns the filter that governs key and the path it must
// be tested with. Model maps without their own filter defer to the map that
// holds them, using the dotted path from that map.
func (m *ElementPropertyMap) effectiveFilter(key string) (UpdateFilter, string) {
	if m.filter != nil {
		return m.filter, key
	}
	holder, holderKey, ok := m.holder()
	if !ok {
		return nil, key
	}
	path := holderKey
	if key != "" {
		path += "." + key
	}
	return holder.effectiveFilter(path)
}

// holder finds the property map that stores this map's node, either directly
// or through a model list.
func (m *ElementPropertyMap) holder() (*ElementPropertyMap, string, bool) {
	owned := m.node
	parent := owned.parent
	if parent == nil {
		return nil, "", false
	}
	if f, ok := parent.FeatureIfInitialized(KindModelList); ok && f.(*NodeList).Contains(owned) {
		owned = parent
		parent = parent.parent
		if parent == nil {
			return nil, "", false
		}
	}
	f, ok := parent.FeatureIfInitialized(KindElementProperties)
	if !ok {
		return nil, "", false
	}
	pm := f.(*ElementPropertyMap)
	if key, ok := pm.keyOf(owned); ok {
		return pm, key, true
	}
	return nil, "", false
}

// keyOf returns the first key, in sorted order, whose value is n.
func (m *ElementPropertyMap) keyOf(n *Node) (string, bool) {
	for _, k := range m.PropertyNames() {
		if m.values[k] == n {
			return k, true
		}
	}
	return "", false
}

// HoldsNode reports whether any property of the map has n as its value.
func (m *ElementPropertyMap) HoldsNode(n *Node) bool {
	_, ok := m.keyOf(n)
	return ok
}

// AllowUpdate is the outcome of the client update check for a key.
type AllowUpdate int

const (
	// NoExplicitStatus means nothing allowed or denied the key.
	NoExplicitStatus AllowUpdate = iota

	// ExplicitlyAllowed means a filter or a sync registration allowed the key.
	ExplicitlyAllowed

	// ExplicitlyDisallowed means the update filter rejected the key.
	ExplicitlyDisallowed
)

// AllowUpdateFromClient reports whether the client may write key.
// A property synchronization registration on the node wins over the filter.
func (m *ElementPropertyMap) AllowUpdateFromClient(key string) AllowUpdate {
	if f, ok := m.node.FeatureIfInitialized(KindElementListeners); ok {
		if f.(*ElementListenerMap).IsSynchronized(key) {
			return ExplicitlyAllowed
		}
	}
	filter, path := m.effectiveFilter(key)
	if filter == nil {
		return NoExplicitStatus
	}
	if filter(path) {
		return ExplicitlyAllowed
	}
	return ExplicitlyDisallowed
}

// DeferredUpdateFromClient validates a client write of key and returns the
// write as an action. Nothing changes until the action runs.
func (m *ElementPropertyMap) DeferredUpdateFromClient(key string, value any) (func() error, error) {
	switch m.AllowUpdateFromClient(key) {
	case ExplicitlyAllowed:
	case ExplicitlyDisallowed:
		return nil, &UpdateDeniedError{NodeID: m.node.id, Key: key, Filtered: true}
	default:
		return nil, &UpdateDeniedError{NodeID: m.node.id, Key: key}
	}
	if err := m.checkValue(value); err != nil {
		return nil, err
	}
	return func() error {
		return m.put(key, value, true)
	}, nil
}

// ResolveModelMap walks a dotted path of model maps below this map,
// creating missing intermediate model nodes. An empty path returns m.
func (m *ElementPropertyMap) ResolveModelMap(path string) (*ElementPropertyMap, error) {
	if path == "" {
		return m, nil
	}
	cur := m
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		next, err := cur.modelMap(seg)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func (m *ElementPropertyMap) modelMap(key string) (*ElementPropertyMap, error) {
	if v, ok := m.values[key]; ok && v != nil {
		child, isNode := v.(*Node)
		if !isNode || !child.HasFeature(KindElementProperties) {
			return nil, fmt.Errorf("%w: %q on node %d", ErrNotAModel, key, m.node.id)
		}
		return child.PropertyMap(), nil
	}
	child := NewNode(KindElementProperties)
	if err := m.SetProperty(key, child); err != nil {
		return nil, err
	}
	return child.PropertyMap(), nil
}

// ResolveModelList returns the model list stored under key, creating it if
// the key is unset.
func (m *ElementPropertyMap) ResolveModelList(key string) (*NodeList, error) {
	if key == "" || strings.Contains(key, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	target := m
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		var err error
		if target, err = m.ResolveModelMap(key[:i]); err != nil {
			return nil, err
		}
		key = key[i+1:]
	}
	if v, ok := target.values[key]; ok && v != nil {
		child, isNode := v.(*Node)
		if !isNode || !child.HasFeature(KindModelList) {
			return nil, fmt.Errorf("%w: %q on node %d", ErrNotAModel, key, target.node.id)
		}
		return child.ModelList(), nil
	}
	child := NewNode(KindModelList)
	if err := target.SetProperty(key, child); err != nil {
		return nil, err
	}
	return child.ModelList(), nil
}

func (m *ElementPropertyMap) forEachChild(fn func(*Node)) {
	seen := make(map[*Node]struct{})
	for _, k := range m.PropertyNames() {
		child, ok := m.values[k].(*Node)
		if !ok || child.parent != m.node {
			continue
		}
		if _, dup := seen[child]; dup {
			continue
		}
		seen[child] = struct{}{}
		fn(child)
	}
}

func (m *ElementPropertyMap) collectChanges(full bool, emit func(Change)) {
	var keys []string
	if full {
		keys = m.PropertyNames()
	} else {
		keys = make([]string, 0, len(m.dirty))
		for k := range m.dirty {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	for _, k := range keys {
		v, ok := m.values[k]
		if !ok {
			emit(Change{Type: ChangeRemove, Node: m.node.id, Feature: KindElementProperties, Key: k})
			continue
		}
		emit(Change{Type: ChangePut, Node: m.node.id, Feature: KindElementProperties, Key: k, Value: v})
	}
	clear(m.dirty)
}
