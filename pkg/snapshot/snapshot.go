// Package snapshot captures state trees as JSON documents and restores them.
//
// A snapshot holds node structure and data: features, tags, enabled flags,
// property values and list membership. Listeners and update filters are code
// and are not captured; callers reinstall them after Restore. Numbers come
// back as float64.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/vango-dev/nodesync/pkg/jsoncodec"
	"github.com/vango-dev/nodesync/pkg/state"
)

// FormatVersion is the document format written by Capture.
const FormatVersion = 1

// ErrInvalidSnapshot is returned when a document cannot be restored.
var ErrInvalidSnapshot = errors.New("snapshot: invalid document")

// Document is a captured tree.
type Document struct {
	Version int          `json:"version"`
	Root    int          `json:"root"`
	Nodes   []NodeRecord `json:"nodes"`
}

// NodeRecord is one captured node. Ids are those of the captured tree;
// Restore assigns fresh ones.
type NodeRecord struct {
	ID         int                        `json:"id"`
	Parent     int                        `json:"parent,omitempty"`
	Features   []int                      `json:"features"`
	Disabled   bool                       `json:"disabled,omitempty"`
	Tag        string                     `json:"tag,omitempty"`
	Component  string                     `json:"component,omitempty"`
	Properties map[string]json.RawMessage `json:"properties,omitempty"`
	Children   []int                      `json:"children,omitempty"`
	ModelList  []int                      `json:"modelList,omitempty"`
}

// Capture records every attached node of tree, ordered by id.
func Capture(tree *state.Tree) (*Document, error) {
	doc := &Document{Version: FormatVersion, Root: tree.Root().ID()}
	var captureErr error
	seen := make(map[int]struct{})
	tree.Root().Visit(func(n *state.Node) bool {
		if _, dup := seen[n.ID()]; dup || captureErr != nil {
			return false
		}
		seen[n.ID()] = struct{}{}
		rec, err := capture(n)
		if err != nil {
			captureErr = err
			return false
		}
		doc.Nodes = append(doc.Nodes, rec)
		return true
	})
	if captureErr != nil {
		return nil, captureErr
	}
	sort.Slice(doc.Nodes, func(i, j int) bool { return doc.Nodes[i].ID < doc.Nodes[j].ID })
	return doc, nil
}

func capture(n *state.Node) (NodeRecord, error) {
	rec := NodeRecord{ID: n.ID(), Disabled: !n.IsEnabledSelf()}
	if p := n.Parent(); p != nil {
		rec.Parent = p.ID()
	}
	for _, kind := range n.Kinds() {
		rec.Features = append(rec.Features, state.FeatureID(kind))
	}
	if f, ok := n.FeatureIfInitialized(state.KindElementData); ok {
		data := f.(*state.ElementData)
		rec.Tag = data.Tag()
		rec.Component = data.ComponentName()
	}
	if f, ok := n.FeatureIfInitialized(state.KindElementProperties); ok {
		pm := f.(*state.ElementPropertyMap)
		names := pm.PropertyNames()
		if len(names) > 0 {
			rec.Properties = make(map[string]json.RawMessage, len(names))
		}
		for _, key := range names {
			raw, err := jsoncodec.EncodeWithTypeInfo(pm.Property(key))
			if err != nil {
				return rec, fmt.Errorf("snapshot: node %d property %q: %w", n.ID(), key, err)
			}
			rec.Properties[key] = raw
		}
	}
	rec.Children = listIDs(n, state.KindElementChildren)
	rec.ModelList = listIDs(n, state.KindModelList)
	return rec, nil
}

func listIDs(n *state.Node, kind state.FeatureKind) []int {
	f, ok := n.FeatureIfInitialized(kind)
	if !ok {
		return nil
	}
	items := f.(*state.NodeList).Items()
	if len(items) == 0 {
		return nil
	}
	ids := make([]int, len(items))
	for i, item := range items {
		ids[i] = item.ID()
	}
	return ids
}

// Restore rebuilds a tree from doc with fresh node ids.
func Restore(doc *Document) (*state.Tree, error) {
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidSnapshot, doc.Version)
	}
	nodes := make(map[int]*state.Node, len(doc.Nodes))
	for _, rec := range doc.Nodes {
		if _, dup := nodes[rec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %d", ErrInvalidSnapshot, rec.ID)
		}
		kinds := make([]state.FeatureKind, 0, len(rec.Features))
		for _, id := range rec.Features {
			kind, err := state.KindForID(id)
			if err != nil {
				return nil, fmt.Errorf("%w: node %d: %v", ErrInvalidSnapshot, rec.ID, err)
			}
			kinds = append(kinds, kind)
		}
		n := state.NewNode(kinds...)
		n.SetEnabled(!rec.Disabled)
		if n.HasFeature(state.KindElementData) {
			n.ElementData().SetTag(rec.Tag)
			n.ElementData().SetComponentName(rec.Component)
		}
		nodes[rec.ID] = n
	}
	lookup := func(id int) (*state.Node, error) {
		n, ok := nodes[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown node %d", ErrInvalidSnapshot, id)
		}
		return n, nil
	}
	root, err := lookup(doc.Root)
	if err != nil {
		return nil, err
	}

	// Owning relations first: list items and property values held by the
	// node that owns them. Aliases need the finished tree.
	type deferred struct {
		n     *state.Node
		key   string
		value any
	}
	var aliases []deferred
	parents := make(map[*state.Node]int, len(doc.Nodes))
	for _, rec := range doc.Nodes {
		parents[nodes[rec.ID]] = rec.Parent
	}
	for _, rec := range doc.Nodes {
		n := nodes[rec.ID]
		if err := restoreList(n, state.KindElementChildren, rec.Children, lookup); err != nil {
			return nil, err
		}
		if err := restoreList(n, state.KindModelList, rec.ModelList, lookup); err != nil {
			return nil, err
		}
		for _, key := range sortedKeys(rec.Properties) {
			value, err := jsoncodec.DecodeWithTypeInfo(rec.Properties[key], func(id int) (any, error) {
				return lookup(id)
			})
			if err != nil {
				return nil, fmt.Errorf("%w: node %d property %q: %v", ErrInvalidSnapshot, rec.ID, key, err)
			}
			if ref, ok := value.(*state.Node); ok && parents[ref] != rec.ID {
				aliases = append(aliases, deferred{n, key, value})
				continue
			}
			if err := n.PropertyMap().SetProperty(key, value); err != nil {
				return nil, fmt.Errorf("%w: node %d property %q: %v", ErrInvalidSnapshot, rec.ID, key, err)
			}
		}
	}

	if root.Parent() != nil {
		return nil, fmt.Errorf("%w: root %d has a parent", ErrInvalidSnapshot, doc.Root)
	}
	tree := state.NewTreeWithRoot(root)
	for _, a := range aliases {
		if err := a.n.PropertyMap().SetProperty(a.key, a.value); err != nil {
			return nil, fmt.Errorf("%w: node %d property %q: %v", ErrInvalidSnapshot, a.n.ID(), a.key, err)
		}
	}
	tree.CollectChanges()
	return tree, nil
}

func restoreList(n *state.Node, kind state.FeatureKind, ids []int, lookup func(int) (*state.Node, error)) error {
	if len(ids) == 0 {
		return nil
	}
	f, err := n.Feature(kind)
	if err != nil {
		return fmt.Errorf("%w: node %d: %v", ErrInvalidSnapshot, n.ID(), err)
	}
	list := f.(*state.NodeList)
	for _, id := range ids {
		item, err := lookup(id)
		if err != nil {
			return err
		}
		if err := list.Add(item); err != nil {
			return fmt.Errorf("%w: node %d: %v", ErrInvalidSnapshot, n.ID(), err)
		}
	}
	return nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Marshal encodes doc as indented JSON.
func Marshal(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Unmarshal decodes a document.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return &doc, nil
}
