// Package selection provides the point and range values that address
// positions in a document.
//
// A Point names a node key plus an offset. The offset kind says how to read
// it: a Character offset counts grapheme clusters into a text node, a
// ChildIndex offset is a position between the children of an element
// (0 is before the first child, Size is after the last).
//
// A Range has an anchor, where the gesture started, and a focus, where it
// is now. Ordering the two by document position needs the tree, so it lives
// in the engine; the values here only know about keys and offsets.
//
// Points are plain values. Range is mutated in place by the engine while a
// transaction repairs it, and copied with Clone when it is committed.
package selection

import (
	"fmt"

	"github.com/dshills/inkwell/internal/engine/node"
)

// Kind says how a point's offset is interpreted.
type Kind uint8

const (
	// Character offsets count grapheme clusters into a text node.
	Character Kind = iota
	// ChildIndex offsets are positions between an element's children.
	ChildIndex
)

// String returns the kind name.
func (k Kind) String() string {
	if k == ChildIndex {
		return "element"
	}
	return "text"
}

// ParseKind parses a kind name produced by String.
func ParseKind(s string) Kind {
	if s == "element" {
		return ChildIndex
	}
	return Character
}

// Point is a position in the document.
type Point struct {
	Key    node.Key
	Offset int
	Kind   Kind
}

// TextPoint returns a character point.
func TextPoint(k node.Key, offset int) Point {
	return Point{Key: k, Offset: offset, Kind: Character}
}

// ElementPoint returns a child-index point.
func ElementPoint(k node.Key, offset int) Point {
	return Point{Key: k, Offset: offset, Kind: ChildIndex}
}

// Is reports whether p and o name the same position.
func (p Point) Is(o Point) bool {
	return p.Key == o.Key && p.Offset == o.Offset && p.Kind == o.Kind
}

// Set moves p to a new position.
func (p *Point) Set(k node.Key, offset int, kind Kind) {
	p.Key, p.Offset, p.Kind = k, offset, kind
}

// String returns a compact representation such as "7:3(text)".
func (p Point) String() string {
	return fmt.Sprintf("%s:%d(%s)", p.Key, p.Offset, p.Kind)
}

// Range is an anchor/focus selection.
type Range struct {
	Anchor Point
	Focus  Point
	// Format is the pending text format applied to text typed at a caret.
	Format node.TextFormat
	// Style is the pending inline style applied to text typed at a caret.
	Style string
}

// NewRange returns a range from anchor to focus.
func NewRange(anchor, focus Point) *Range {
	return &Range{Anchor: anchor, Focus: focus}
}

// Caret returns a collapsed range at p.
func Caret(p Point) *Range {
	return &Range{Anchor: p, Focus: p}
}

// IsCollapsed reports whether anchor and focus name the same position.
func (r *Range) IsCollapsed() bool {
	return r.Anchor.Is(r.Focus)
}

// Clone returns an independent copy.
func (r *Range) Clone() *Range {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Equals reports whether r and o have the same points and marks.
func (r *Range) Equals(o *Range) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Anchor.Is(o.Anchor) && r.Focus.Is(o.Focus) &&
		r.Format == o.Format && r.Style == o.Style
}

// Points returns pointers to anchor and focus, for code that repairs both
// the same way.
func (r *Range) Points() [2]*Point {
	return [2]*Point{&r.Anchor, &r.Focus}
}

// HasKey reports whether either point names k.
func (r *Range) HasKey(k node.Key) bool {
	return r.Anchor.Key == k || r.Focus.Key == k
}

// String returns a compact representation.
func (r *Range) String() string {
	if r.IsCollapsed() {
		return fmt.Sprintf("Caret(%s)", r.Anchor)
	}
	return fmt.Sprintf("Range(%s→%s)", r.Anchor, r.Focus)
}
