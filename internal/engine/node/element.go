package node

// Alignment is the block alignment of an element.
type Alignment uint8

const (
	AlignNone Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
	AlignJustify
	AlignStart
	AlignEnd
)

// String returns the alignment name.
func (a Alignment) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	case AlignJustify:
		return "justify"
	case AlignStart:
		return "start"
	case AlignEnd:
		return "end"
	default:
		return ""
	}
}

// ParseAlignment parses an alignment name. Unknown names map to AlignNone.
func ParseAlignment(s string) Alignment {
	switch s {
	case "left":
		return AlignLeft
	case "center":
		return AlignCenter
	case "right":
		return AlignRight
	case "justify":
		return AlignJustify
	case "start":
		return AlignStart
	case "end":
		return AlignEnd
	default:
		return AlignNone
	}
}

// Direction is the text direction of an element.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionLTR  Direction = "ltr"
	DirectionRTL  Direction = "rtl"
)

// ElementNode is a node that owns an ordered child list.
type ElementNode interface {
	Node
	// ElementBase returns the embedded element record.
	ElementBase() *Element
	// CanBeEmpty reports whether the element may exist with no children.
	// Elements that return false are removed when their last child goes.
	CanBeEmpty() bool
	// IsInline reports whether the element flows inline with text.
	IsInline() bool
}

// Element is the record shared by every element variant. The child list is
// doubly linked through the children's Prev/Next keys and bounded by first
// and last.
type Element struct {
	Header

	first  Key
	last   Key
	size   int
	format Alignment
	indent int
	dir    Direction
}

// ElementBase returns e.
func (e *Element) ElementBase() *Element { return e }

// CanBeEmpty returns true; variants override it.
func (e *Element) CanBeEmpty() bool { return true }

// IsInline returns false; variants override it.
func (e *Element) IsInline() bool { return false }

// First returns the first child key.
func (e *Element) First() Key { return e.first }

// Last returns the last child key.
func (e *Element) Last() Key { return e.last }

// Size returns the cached child count.
func (e *Element) Size() int { return e.size }

// Format returns the alignment.
func (e *Element) Format() Alignment { return e.format }

// Indent returns the indent level.
func (e *Element) Indent() int { return e.indent }

// Direction returns the text direction.
func (e *Element) Direction() Direction { return e.dir }

// IsEmpty reports whether the element has no children.
func (e *Element) IsEmpty() bool { return e.size == 0 }

// SetFirst sets the first child key.
func (e *Element) SetFirst(k Key) { e.first = k }

// SetLast sets the last child key.
func (e *Element) SetLast(k Key) { e.last = k }

// SetSize sets the cached child count.
func (e *Element) SetSize(n int) { e.size = n }

// SetFormat sets the alignment.
func (e *Element) SetFormat(a Alignment) { e.format = a }

// SetIndent sets the indent level. Negative levels clamp to zero.
func (e *Element) SetIndent(n int) {
	if n < 0 {
		n = 0
	}
	e.indent = n
}

// SetDirection sets the text direction.
func (e *Element) SetDirection(d Direction) { e.dir = d }

// Root is the unique top-level element.
type Root struct {
	Element
}

// NewRoot returns a root record keyed RootKey.
func NewRoot() *Root {
	r := &Root{}
	r.key = RootKey
	return r
}

func (*Root) Type() Type { return TypeRoot }

func (r *Root) Clone() Node {
	c := *r
	return &c
}

// Paragraph is a block element that may be empty.
type Paragraph struct {
	Element
}

// NewParagraph returns an unkeyed paragraph.
func NewParagraph() *Paragraph {
	return &Paragraph{}
}

func (*Paragraph) Type() Type { return TypeParagraph }

func (p *Paragraph) Clone() Node {
	c := *p
	return &c
}

// Inline is an inline element wrapping other inline content. It is removed
// when its last child is removed.
type Inline struct {
	Element
}

// NewInline returns an unkeyed inline element.
func NewInline() *Inline {
	return &Inline{}
}

func (*Inline) Type() Type { return TypeInline }

func (i *Inline) Clone() Node {
	c := *i
	return &c
}

// CanBeEmpty returns false.
func (*Inline) CanBeEmpty() bool { return false }

// IsInline returns true.
func (*Inline) IsInline() bool { return true }
