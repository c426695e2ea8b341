package node

import (
	"strings"

	"github.com/rivo/uniseg"
)

// TextFormat is a set of inline formatting flags.
type TextFormat uint16

const (
	FormatBold TextFormat = 1 << iota
	FormatItalic
	FormatStrikethrough
	FormatUnderline
	FormatCode
	FormatSubscript
	FormatSuperscript
	FormatHighlight
)

var formatNames = []struct {
	flag TextFormat
	name string
}{
	{FormatBold, "bold"},
	{FormatItalic, "italic"},
	{FormatStrikethrough, "strikethrough"},
	{FormatUnderline, "underline"},
	{FormatCode, "code"},
	{FormatSubscript, "subscript"},
	{FormatSuperscript, "superscript"},
	{FormatHighlight, "highlight"},
}

// Has reports whether all flags in f2 are set.
func (f TextFormat) Has(f2 TextFormat) bool { return f&f2 == f2 }

// Toggle flips flag. Subscript and superscript are mutually exclusive.
func (f TextFormat) Toggle(flag TextFormat) TextFormat {
	f ^= flag
	if f.Has(FormatSubscript) && flag == FormatSubscript {
		f &^= FormatSuperscript
	}
	if f.Has(FormatSuperscript) && flag == FormatSuperscript {
		f &^= FormatSubscript
	}
	return f
}

// String lists the set flags joined by "|".
func (f TextFormat) String() string {
	var parts []string
	for _, fn := range formatNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseTextFormat parses a format name such as "bold". Unknown names return 0.
func ParseTextFormat(name string) TextFormat {
	for _, fn := range formatNames {
		if fn.name == name {
			return fn.flag
		}
	}
	return 0
}

// TextMode controls how a text node behaves under editing.
type TextMode uint8

const (
	// ModeNormal text can be merged and edited freely.
	ModeNormal TextMode = iota
	// ModeToken text is edited as a single unit.
	ModeToken
	// ModeSegmented text is deleted segment by segment.
	ModeSegmented
)

// String returns the mode name.
func (m TextMode) String() string {
	switch m {
	case ModeToken:
		return "token"
	case ModeSegmented:
		return "segmented"
	default:
		return "normal"
	}
}

// ParseTextMode parses a mode name.
func ParseTextMode(s string) TextMode {
	switch s {
	case "token":
		return ModeToken
	case "segmented":
		return ModeSegmented
	default:
		return ModeNormal
	}
}

// TextNode is a leaf carrying text content.
type TextNode interface {
	Node
	// TextBase returns the embedded text record.
	TextBase() *Text
}

// Text is a leaf holding a run of uniformly formatted text. Offsets into the
// content count grapheme clusters.
type Text struct {
	Header

	content     string
	format      TextFormat
	style       string
	mode        TextMode
	unmergeable bool
}

// NewText returns an unkeyed text record.
func NewText(content string) *Text {
	return &Text{content: content}
}

func (*Text) Type() Type { return TypeText }

func (t *Text) Clone() Node {
	c := *t
	return &c
}

// TextBase returns t.
func (t *Text) TextBase() *Text { return t }

// Content returns the text content.
func (t *Text) Content() string { return t.content }

// Size returns the content length in grapheme clusters.
func (t *Text) Size() int { return GraphemeCount(t.content) }

// Format returns the format flags.
func (t *Text) Format() TextFormat { return t.format }

// Style returns the inline style string.
func (t *Text) Style() string { return t.style }

// Mode returns the editing mode.
func (t *Text) Mode() TextMode { return t.mode }

// Unmergeable reports whether normalization must leave the node alone.
func (t *Text) Unmergeable() bool { return t.unmergeable }

// IsSimple reports whether the node is normal-mode text that may be merged
// with its neighbors.
func (t *Text) IsSimple() bool {
	return t.mode == ModeNormal && !t.unmergeable
}

// SetContent replaces the content.
func (t *Text) SetContent(s string) { t.content = s }

// SetFormat replaces the format flags.
func (t *Text) SetFormat(f TextFormat) { t.format = f }

// SetStyle replaces the inline style.
func (t *Text) SetStyle(s string) { t.style = s }

// SetMode replaces the editing mode.
func (t *Text) SetMode(m TextMode) { t.mode = m }

// SetUnmergeable sets the unmergeable flag.
func (t *Text) SetUnmergeable(v bool) { t.unmergeable = v }

// SameMarks reports whether t and o share format, style and mode.
func (t *Text) SameMarks(o *Text) bool {
	return t.format == o.format && t.style == o.style && t.mode == o.mode
}

// GraphemeCount returns the number of grapheme clusters in s.
func GraphemeCount(s string) int {
	if s == "" {
		return 0
	}
	return uniseg.GraphemeClusterCount(s)
}

// GraphemeSlice returns the substring covering clusters [start, end).
// Bounds are clamped to the string.
func GraphemeSlice(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end <= start || s == "" {
		return ""
	}
	from, to := -1, len(s)
	idx := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		if idx == start {
			from, _ = g.Positions()
		}
		if idx == end {
			to, _ = g.Positions()
			break
		}
		idx++
	}
	if from < 0 {
		return ""
	}
	return s[from:to]
}

// GraphemeSplice removes del clusters at offset and inserts ins there.
func GraphemeSplice(s string, offset, del int, ins string) string {
	n := GraphemeCount(s)
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	if del < 0 {
		del = 0
	}
	if offset+del > n {
		del = n - offset
	}
	return GraphemeSlice(s, 0, offset) + ins + GraphemeSlice(s, offset+del, n)
}

// LineBreak is a content-free leaf forcing a line break.
type LineBreak struct {
	Header
}

// NewLineBreak returns an unkeyed line break.
func NewLineBreak() *LineBreak {
	return &LineBreak{}
}

func (*LineBreak) Type() Type { return TypeLineBreak }

func (l *LineBreak) Clone() Node {
	c := *l
	return &c
}

// DecoratorNode is a leaf embedding opaque content.
type DecoratorNode interface {
	Node
	// DecoratorBase returns the embedded decorator record.
	DecoratorBase() *Decorator
	// IsInline reports whether the decorator flows inline with text.
	IsInline() bool
}

// Decorator is a leaf whose payload the model never interprets.
type Decorator struct {
	Header

	payload string
	inline  bool
}

// NewDecorator returns an unkeyed decorator.
func NewDecorator(payload string, inline bool) *Decorator {
	return &Decorator{payload: payload, inline: inline}
}

func (*Decorator) Type() Type { return TypeDecorator }

func (d *Decorator) Clone() Node {
	c := *d
	return &c
}

// DecoratorBase returns d.
func (d *Decorator) DecoratorBase() *Decorator { return d }

// Payload returns the opaque payload.
func (d *Decorator) Payload() string { return d.payload }

// SetPayload replaces the payload.
func (d *Decorator) SetPayload(p string) { d.payload = p }

// IsInline reports whether the decorator is inline.
func (d *Decorator) IsInline() bool { return d.inline }

// SetInline sets the inline flag.
func (d *Decorator) SetInline(v bool) { d.inline = v }
