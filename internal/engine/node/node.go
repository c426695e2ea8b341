package node

import (
	"strconv"
	"sync/atomic"
)

// Key identifies a node for the lifetime of a document. Keys are opaque;
// ordering between them carries no meaning.
type Key string

// RootKey is the key of the document root.
const RootKey Key = "root"

// NoKey is the zero key, used for absent links.
const NoKey Key = ""

// keyCounter issues process-unique keys.
var keyCounter atomic.Uint64

// NewKey returns a fresh key that has never been issued before in this
// process.
func NewKey() Key {
	return Key(strconv.FormatUint(keyCounter.Add(1), 10))
}

// Reserve ensures NewKey never issues k, for keys that arrive from outside
// the process such as a decoded export. Keys that are not decimal numbers
// are never issued and need no reservation.
func Reserve(k Key) {
	n, err := strconv.ParseUint(string(k), 10, 64)
	if err != nil {
		return
	}
	for {
		cur := keyCounter.Load()
		if cur >= n || keyCounter.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Type is the tag naming a node variant.
type Type string

// Built-in variant tags.
const (
	TypeRoot      Type = "root"
	TypeParagraph Type = "paragraph"
	TypeInline    Type = "inline"
	TypeText      Type = "text"
	TypeLineBreak Type = "linebreak"
	TypeDecorator Type = "decorator"
)

// Node is the contract every variant satisfies.
type Node interface {
	// Key returns the node's stable key.
	Key() Key
	// Type returns the variant tag.
	Type() Type
	// Parent returns the owning element's key, or NoKey when detached.
	Parent() Key
	// Prev returns the previous sibling's key, or NoKey.
	Prev() Key
	// Next returns the next sibling's key, or NoKey.
	Next() Key
	// Clone returns a shallow copy that preserves the key and all
	// variant-specific fields.
	Clone() Node

	header() *Header
}

// Header holds the fields shared by every variant. Variants embed it
// (indirectly through Element or one of the leaf structs).
type Header struct {
	key    Key
	parent Key
	prev   Key
	next   Key
}

// Key returns the node's key.
func (h *Header) Key() Key { return h.key }

// Parent returns the parent key.
func (h *Header) Parent() Key { return h.parent }

// Prev returns the previous sibling key.
func (h *Header) Prev() Key { return h.prev }

// Next returns the next sibling key.
func (h *Header) Next() Key { return h.next }

func (h *Header) header() *Header { return h }

// Links exposes the link fields of n for the engine, which only calls it on
// writable clones.
func Links(n Node) *Header {
	return n.header()
}

// SetKey assigns the key. It is only valid on a node that has none yet.
func (h *Header) SetKey(k Key) { h.key = k }

// SetParent sets the parent link.
func (h *Header) SetParent(k Key) { h.parent = k }

// SetPrev sets the previous sibling link.
func (h *Header) SetPrev(k Key) { h.prev = k }

// SetNext sets the next sibling link.
func (h *Header) SetNext(k Key) { h.next = k }

// Detach clears all three links.
func (h *Header) Detach() {
	h.parent, h.prev, h.next = NoKey, NoKey, NoKey
}

// IsElement reports whether n owns a child list.
func IsElement(n Node) bool {
	_, ok := n.(ElementNode)
	return ok
}

// AsElement returns n as an ElementNode.
func AsElement(n Node) (ElementNode, bool) {
	e, ok := n.(ElementNode)
	return e, ok
}

// AsText returns n as a TextNode.
func AsText(n Node) (TextNode, bool) {
	t, ok := n.(TextNode)
	return t, ok
}

// IsInline reports whether n flows inline with text. Text, line breaks,
// inline decorators and inline elements are inline.
func IsInline(n Node) bool {
	switch v := n.(type) {
	case ElementNode:
		return v.IsInline()
	case DecoratorNode:
		return v.IsInline()
	default:
		return true
	}
}
