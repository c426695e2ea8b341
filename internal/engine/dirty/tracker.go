// Package dirty records which nodes a transaction touched, for consumption
// by a renderer.
//
// Elements and leaves are tracked separately. An element is marked
// intentionally when it was itself mutated and unintentionally when it is
// only an ancestor of a mutated node; both kinds tell the renderer that the
// element's child list may need to be walked, but only intentional marks
// imply the element's own attributes changed.
package dirty

import (
	"sort"

	"github.com/dshills/inkwell/internal/engine/node"
)

// Set is the dirty output of one transaction.
type Set struct {
	// Elements maps dirty element keys to whether the mark was intentional.
	Elements map[node.Key]bool
	// Leaves holds dirty leaf keys.
	Leaves map[node.Key]struct{}
	// Full is set when the renderer must redraw everything, e.g. after the
	// whole state was replaced.
	Full bool
}

// Len returns the number of dirty keys.
func (s Set) Len() int {
	return len(s.Elements) + len(s.Leaves)
}

// Has reports whether k is dirty.
func (s Set) Has(k node.Key) bool {
	if _, ok := s.Elements[k]; ok {
		return true
	}
	_, ok := s.Leaves[k]
	return ok
}

// Keys returns every dirty key in sorted order.
func (s Set) Keys() []node.Key {
	out := make([]node.Key, 0, s.Len())
	for k := range s.Elements {
		out = append(out, k)
	}
	for k := range s.Leaves {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Tracker accumulates dirty marks for one transaction. It is not safe for
// concurrent use; a transaction has a single writer.
type Tracker struct {
	elements map[node.Key]bool
	leaves   map[node.Key]struct{}
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		elements: make(map[node.Key]bool),
		leaves:   make(map[node.Key]struct{}),
	}
}

// MarkElement marks an element dirty. An intentional mark is never
// downgraded by a later unintentional one.
func (t *Tracker) MarkElement(k node.Key, intentional bool) {
	if t.elements[k] {
		return
	}
	t.elements[k] = intentional
}

// MarkLeaf marks a leaf dirty.
func (t *Tracker) MarkLeaf(k node.Key) {
	t.leaves[k] = struct{}{}
}

// IsDirty reports whether k has any mark.
func (t *Tracker) IsDirty(k node.Key) bool {
	if _, ok := t.elements[k]; ok {
		return true
	}
	_, ok := t.leaves[k]
	return ok
}

// IsElementDirty reports whether k is a dirty element and whether the mark
// was intentional.
func (t *Tracker) IsElementDirty(k node.Key) (dirty, intentional bool) {
	intentional, dirty = t.elements[k]
	return dirty, intentional
}

// Forget removes every mark for k. Used when k is garbage collected before
// commit.
func (t *Tracker) Forget(k node.Key) {
	delete(t.elements, k)
	delete(t.leaves, k)
}

// Len returns the number of dirty keys.
func (t *Tracker) Len() int {
	return len(t.elements) + len(t.leaves)
}

// Set returns a copy of the accumulated marks.
func (t *Tracker) Set() Set {
	s := Set{
		Elements: make(map[node.Key]bool, len(t.elements)),
		Leaves:   make(map[node.Key]struct{}, len(t.leaves)),
	}
	for k, v := range t.elements {
		s.Elements[k] = v
	}
	for k := range t.leaves {
		s.Leaves[k] = struct{}{}
	}
	return s
}

