// Package node defines the records stored in a document version.
//
// A document is an arena: a flat mapping from Key to Node owned by a
// version. Nodes never hold pointers to each other. Parent and sibling links
// are plain keys, so a node record can be cloned and replaced in a new
// version without touching the rest of the tree.
//
// Variants:
//
//   - Root: the unique top-level element, always keyed RootKey
//   - Paragraph: block element that may be empty
//   - Inline: inline element that must never be empty
//   - Text: leaf with string content measured in grapheme clusters
//   - LineBreak: leaf with no content
//   - Decorator: leaf carrying an opaque payload
//
// Custom variants embed one of the built-in structs, override Type and
// Clone, and are registered in a Registry by their type tag:
//
//	type Heading struct {
//	    node.Element
//	    Level int
//	}
//
//	func (*Heading) Type() node.Type { return "heading" }
//	func (h *Heading) Clone() node.Node { c := *h; return &c }
//
//	reg.Register(&Heading{}, nil)
//
// Node records are not safe for mutation outside the engine. The engine
// hands out writable clones only inside an open transaction.
package node
