package state

import (
	"sort"
)

// DisabledUpdateMode controls whether client updates reach a disabled node.
type DisabledUpdateMode int

const (
	// OnlyWhenEnabled rejects updates while the node is effectively disabled.
	OnlyWhenEnabled DisabledUpdateMode = iota

	// Always accepts updates regardless of the enabled state.
	Always
)

// String returns the mode name.
func (m DisabledUpdateMode) String() string {
	if m == Always {
		return "always"
	}
	return "onlyWhenEnabled"
}

// MostPermissive returns the more permissive of two modes.
func MostPermissive(a, b DisabledUpdateMode) DisabledUpdateMode {
	if a == Always || b == Always {
		return Always
	}
	return OnlyWhenEnabled
}

// DomEvent is a client DOM event delivered to server listeners.
type DomEvent struct {
	Node *Node
	Type string
	Data map[string]any
}

// DomEventListener handles a DOM event.
type DomEventListener func(DomEvent)

// PropertySync opts a property in for client synchronization when a DOM
// event fires on the element.
type PropertySync struct {
	owner    *ElementListenerMap
	property string
	event    string
	mode     DisabledUpdateMode
}

// Property returns the synchronized property.
func (s *PropertySync) Property() string { return s.property }

// Event returns the DOM event that triggers synchronization.
func (s *PropertySync) Event() string { return s.event }

// DisabledUpdateMode returns the registration's mode.
func (s *PropertySync) DisabledUpdateMode() DisabledUpdateMode { return s.mode }

// SetDisabledUpdateMode sets the mode and returns s for chaining.
func (s *PropertySync) SetDisabledUpdateMode(mode DisabledUpdateMode) *PropertySync {
	s.mode = mode
	return s
}

// Remove unregisters the synchronization.
func (s *PropertySync) Remove() {
	s.owner.removeSync(s)
}

// DomListenerRegistration is a DOM event listener that may synchronize
// properties when it fires.
type DomListenerRegistration struct {
	owner      *ElementListenerMap
	event      string
	listener   DomEventListener
	properties []string
	mode       DisabledUpdateMode
}

// Event returns the DOM event name.
func (r *DomListenerRegistration) Event() string { return r.event }

// SynchronizeProperty adds a property to send with the event.
func (r *DomListenerRegistration) SynchronizeProperty(property string) *DomListenerRegistration {
	r.properties = append(r.properties, property)
	r.owner.markDirty()
	return r
}

// SetDisabledUpdateMode sets the mode and returns r for chaining.
func (r *DomListenerRegistration) SetDisabledUpdateMode(mode DisabledUpdateMode) *DomListenerRegistration {
	r.mode = mode
	return r
}

// Remove unregisters the listener.
func (r *DomListenerRegistration) Remove() {
	r.owner.removeListener(r)
}

// ElementListenerMap holds DOM listeners and property synchronization
// registrations for an element.
type ElementListenerMap struct {
	node      *Node
	syncs     []*PropertySync
	listeners []*DomListenerRegistration

	// Events the client currently knows about.
	sent  map[string]struct{}
	dirty bool
}

func newElementListenerMap(n *Node) *ElementListenerMap {
	return &ElementListenerMap{node: n}
}

// Kind returns KindElementListeners.
func (l *ElementListenerMap) Kind() FeatureKind { return KindElementListeners }

// Node returns the owning node.
func (l *ElementListenerMap) Node() *Node { return l.node }

// AddPropertySync synchronizes property whenever event fires.
func (l *ElementListenerMap) AddPropertySync(property, event string) *PropertySync {
	s := &PropertySync{owner: l, property: property, event: event}
	l.syncs = append(l.syncs, s)
	l.markDirty()
	return s
}

// AddEventListener registers a DOM event listener.
func (l *ElementListenerMap) AddEventListener(event string, listener DomEventListener) *DomListenerRegistration {
	r := &DomListenerRegistration{owner: l, event: event, listener: listener}
	l.listeners = append(l.listeners, r)
	l.markDirty()
	return r
}

func (l *ElementListenerMap) removeSync(s *PropertySync) {
	for i, cur := range l.syncs {
		if cur == s {
			l.syncs = append(l.syncs[:i:i], l.syncs[i+1:]...)
			l.markDirty()
			return
		}
	}
}

func (l *ElementListenerMap) removeListener(r *DomListenerRegistration) {
	for i, cur := range l.listeners {
		if cur == r {
			l.listeners = append(l.listeners[:i:i], l.listeners[i+1:]...)
			l.markDirty()
			return
		}
	}
}

// IsSynchronized reports whether any registration opts property in.
func (l *ElementListenerMap) IsSynchronized(property string) bool {
	_, ok := l.SynchronizationMode(property)
	return ok
}

// SynchronizationMode returns the most permissive disabled-update mode among
// the registrations that synchronize property.
func (l *ElementListenerMap) SynchronizationMode(property string) (DisabledUpdateMode, bool) {
	mode, found := OnlyWhenEnabled, false
	for _, s := range l.syncs {
		if s.property == property {
			mode, found = MostPermissive(mode, s.mode), true
		}
	}
	for _, r := range l.listeners {
		for _, p := range r.properties {
			if p == property {
				mode, found = MostPermissive(mode, r.mode), true
			}
		}
	}
	return mode, found
}

func (l *ElementListenerMap) markDirty() {
	l.dirty = true
	l.node.markDirty()
}

// SynchronizedProperties returns the synchronized properties per event.
func (l *ElementListenerMap) SynchronizedProperties() map[string][]string {
	out := make(map[string][]string)
	for _, s := range l.syncs {
		out[s.event] = appendUnique(out[s.event], s.property)
	}
	for _, r := range l.listeners {
		for _, p := range r.properties {
			out[r.event] = appendUnique(out[r.event], p)
		}
	}
	for _, props := range out {
		sort.Strings(props)
	}
	return out
}

// HasEventListener reports whether a listener is registered for event.
func (l *ElementListenerMap) HasEventListener(event string) bool {
	for _, r := range l.listeners {
		if r.event == event {
			return true
		}
	}
	return false
}

// Fire delivers an event to the listeners registered for its type. On an
// effectively disabled node only listeners with mode Always run. It returns
// the number of listeners invoked.
func (l *ElementListenerMap) Fire(eventType string, data map[string]any) int {
	enabled := l.node.IsEnabled()
	event := DomEvent{Node: l.node, Type: eventType, Data: data}
	n := 0
	for _, r := range append([]*DomListenerRegistration(nil), l.listeners...) {
		if r.event != eventType || r.listener == nil {
			continue
		}
		if !enabled && r.mode != Always {
			continue
		}
		r.listener(event)
		n++
	}
	return n
}

// collectChanges reports, per event, the properties the client must send
// along with it.
func (l *ElementListenerMap) collectChanges(full bool, emit func(Change)) {
	if !full && !l.dirty {
		return
	}
	if full {
		l.sent = nil
	}
	current := l.SynchronizedProperties()
	for _, r := range l.listeners {
		if _, ok := current[r.event]; !ok {
			current[r.event] = nil
		}
	}
	events := make([]string, 0, len(current))
	for e := range current {
		events = append(events, e)
	}
	sort.Strings(events)

	var removed []string
	for e := range l.sent {
		if _, ok := current[e]; !ok {
			removed = append(removed, e)
		}
	}
	sort.Strings(removed)
	for _, e := range removed {
		emit(Change{Type: ChangeRemove, Node: l.node.id, Feature: KindElementListeners, Key: e})
	}
	next := make(map[string]struct{}, len(events))
	for _, e := range events {
		props := make([]any, 0, len(current[e]))
		for _, p := range current[e] {
			props = append(props, p)
		}
		emit(Change{Type: ChangePut, Node: l.node.id, Feature: KindElementListeners, Key: e, Value: props})
		next[e] = struct{}{}
	}
	l.sent = next
	l.dirty = false
}

func appendUnique(list []string, v string) []string {
	for _, cur := range list {
		if cur == v {
			return list
		}
	}
	return append(list, v)
}

// AddPropertyChangeListener synchronizes property on the DOM event and
// registers a server-side listener for committed changes. The returned
// registration controls the disabled-update mode.
func AddPropertyChangeListener(n *Node, property, event string, listener PropertyChangeListener) *PropertySync {
	if listener != nil {
		n.PropertyMap().AddPropertyChangeListener(property, listener)
	}
	return n.Listeners().AddPropertySync(property, event)
}
