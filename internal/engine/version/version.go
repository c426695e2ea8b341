// Package version holds document versions.
//
// A State is an immutable mapping from key to node record plus the committed
// selection. The mapping is a persistent hash map, so deriving a new version
// shares every untouched entry with the old one.
//
// A Pending is the writable overlay used while a transaction is open. It
// starts as the base version's map and records, per key, whether the record
// it holds is already a clone owned by this transaction. The first Writable
// call for a key clones the record and associates the clone; later calls
// return that same clone. Nothing reachable from the base State is ever
// mutated, so readers of the base keep a stable snapshot.
package version

import (
	"sort"

	"github.com/xiaq/persistent/hash"
	"github.com/xiaq/persistent/hashmap"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/selection"
)

// ID numbers committed versions in commit order.
type ID uint64

func keyEqual(a, b any) bool {
	return a.(node.Key) == b.(node.Key)
}

func keyHash(k any) uint32 {
	return hash.String(string(k.(node.Key)))
}

// emptyMap is the empty node mapping.
var emptyMap = hashmap.New(keyEqual, keyHash)

// State is one immutable document version.
type State struct {
	id        ID
	nodes     hashmap.Map
	selection *selection.Range
}

// Empty returns a version containing only an empty root.
func Empty() *State {
	return &State{nodes: emptyMap.Assoc(node.RootKey, node.Node(node.NewRoot()))}
}

// FromNodes builds a version from a complete set of records. It is used to
// reconstruct a document from an exported mapping.
func FromNodes(id ID, nodes []node.Node, sel *selection.Range) *State {
	m := emptyMap
	for _, n := range nodes {
		m = m.Assoc(n.Key(), n)
	}
	return &State{id: id, nodes: m, selection: sel.Clone()}
}

// FromState returns s renumbered as id. The mapping is shared, not copied.
func FromState(id ID, s *State) *State {
	return &State{id: id, nodes: s.nodes, selection: s.selection.Clone()}
}

// ID returns the version number.
func (s *State) ID() ID { return s.id }

// Get returns the record for k.
func (s *State) Get(k node.Key) (node.Node, bool) {
	return lookup(s.nodes, k)
}

// Len returns the number of records.
func (s *State) Len() int { return s.nodes.Len() }

// Has reports whether k is present.
func (s *State) Has(k node.Key) bool {
	_, ok := s.nodes.Index(k)
	return ok
}

// Keys returns every key in sorted order.
func (s *State) Keys() []node.Key {
	return keys(s.nodes)
}

// Each calls fn for every record until fn returns false.
func (s *State) Each(fn func(node.Node) bool) {
	for it := s.nodes.Iterator(); it.HasElem(); it.Next() {
		_, v := it.Elem()
		if !fn(v.(node.Node)) {
			return
		}
	}
}

// Selection returns a copy of the committed selection, or nil.
func (s *State) Selection() *selection.Range {
	return s.selection.Clone()
}

// Root returns the root record.
func (s *State) Root() *node.Root {
	n, _ := s.Get(node.RootKey)
	r, _ := n.(*node.Root)
	return r
}

func lookup(m hashmap.Map, k node.Key) (node.Node, bool) {
	v, ok := m.Index(k)
	if !ok {
		return nil, false
	}
	return v.(node.Node), true
}

func keys(m hashmap.Map) []node.Key {
	out := make([]node.Key, 0, m.Len())
	for it := m.Iterator(); it.HasElem(); it.Next() {
		k, _ := it.Elem()
		out = append(out, k.(node.Key))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
