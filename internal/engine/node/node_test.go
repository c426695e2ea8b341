package node

import (
	"errors"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type callout struct {
	Paragraph
}

func (*callout) Type() Type { return "callout" }

func (c *callout) Clone() Node {
	cp := *c
	return &cp
}

func TestNewKeyUnique(t *testing.T) {
	seen := make(map[Key]bool)
	for i := 0; i < 1000; i++ {
		k := NewKey()
		if k == NoKey || k == RootKey {
			t.Fatalf("expected ordinary key, got %q", k)
		}
		if seen[k] {
			t.Fatalf("key %s issued twice", k)
		}
		seen[k] = true
	}
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	want := []Type{TypeDecorator, TypeInline, TypeLineBreak, TypeParagraph, TypeRoot, TypeText}
	if diff := cmp.Diff(want, r.Types()); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
	for _, n := range []Node{NewRoot(), NewParagraph(), NewInline(), NewText("x"), NewLineBreak(), NewDecorator("", true)} {
		if err := r.Check(n); err != nil {
			t.Errorf("unexpected error for %s: %v", n.Type(), err)
		}
	}
}

func TestRegistryCustomVariant(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&callout{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Check(&callout{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	v, ok := r.Lookup("callout")
	if !ok {
		t.Fatal("expected callout registered")
	}
	fresh := v.New()
	if _, ok := fresh.(*callout); !ok {
		t.Errorf("expected *callout, got %T", fresh)
	}
	if fresh.Key() != NoKey {
		t.Errorf("expected unkeyed record, got %q", fresh.Key())
	}
}

// impostor claims the paragraph tag with a different Go type.
type impostor struct {
	Paragraph
}

func (i *impostor) Clone() Node {
	c := *i
	return &c
}

func TestRegistryCheckErrors(t *testing.T) {
	r := NewRegistry()
	if err := r.Check(&impostor{}); !errors.Is(err, ErrVariantMismatch) {
		t.Errorf("expected ErrVariantMismatch, got %v", err)
	}
	if err := r.Check(&callout{}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
	if err := r.SetBinding("callout", nil); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
	if err := r.Register(nil, nil); err == nil {
		t.Error("expected error registering nil")
	}
}

func TestClonePreservesIdentity(t *testing.T) {
	txt := NewText("hello")
	Links(txt).SetKey("k")
	Links(txt).SetParent("p")
	txt.SetFormat(FormatBold)

	c, ok := txt.Clone().(*Text)
	if !ok {
		t.Fatalf("expected *Text, got %T", txt.Clone())
	}
	if c == txt {
		t.Fatal("expected a distinct record")
	}
	if c.Key() != "k" || c.Parent() != "p" || c.Content() != "hello" || c.Format() != FormatBold {
		t.Errorf("clone lost fields: %+v", c)
	}
	c.SetContent("changed")
	if txt.Content() != "hello" {
		t.Error("expected original unchanged")
	}
}

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		name    string
		n       Node
		element bool
		inline  bool
	}{
		{"paragraph", NewParagraph(), true, false},
		{"inline", NewInline(), true, true},
		{"text", NewText(""), false, true},
		{"line break", NewLineBreak(), false, true},
		{"block decorator", NewDecorator("", false), false, false},
		{"inline decorator", NewDecorator("", true), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IsElement(tt.n) != tt.element {
				t.Errorf("expected element %v, got %v", tt.element, IsElement(tt.n))
			}
			if IsInline(tt.n) != tt.inline {
				t.Errorf("expected inline %v, got %v", tt.inline, IsInline(tt.n))
			}
		})
	}
	if NewInline().CanBeEmpty() || !NewParagraph().CanBeEmpty() {
		t.Error("unexpected CanBeEmpty")
	}
}

func TestGraphemes(t *testing.T) {
	s := "aé👍🏽z"
	if n := GraphemeCount(s); n != 4 {
		t.Errorf("expected 4 clusters, got %d", n)
	}
	if got := GraphemeSlice(s, 1, 3); got != "é👍🏽" {
		t.Errorf("expected combining and emoji clusters, got %q", got)
	}
	if got := GraphemeSlice(s, 3, 10); got != "z" {
		t.Errorf("expected 'z', got %q", got)
	}
	if got := GraphemeSlice(s, 4, 5); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
	if got := GraphemeSplice(s, 1, 2, "-"); got != "a-z" {
		t.Errorf("expected 'a-z', got %q", got)
	}
	if got := GraphemeSplice("", 0, 0, "x"); got != "x" {
		t.Errorf("expected 'x', got %q", got)
	}
}

func TestTextFormat(t *testing.T) {
	f := FormatBold | FormatItalic
	if f.String() != "bold|italic" {
		t.Errorf("expected 'bold|italic', got %q", f.String())
	}
	if !f.Has(FormatBold) || f.Has(FormatCode) {
		t.Error("unexpected Has result")
	}
	if got := f.Toggle(FormatBold); got != FormatItalic {
		t.Errorf("expected italic, got %s", got)
	}
	if got := FormatSubscript.Toggle(FormatSuperscript); got != FormatSuperscript {
		t.Errorf("expected superscript to replace subscript, got %s", got)
	}
	if ParseTextFormat("underline") != FormatUnderline || ParseTextFormat("nope") != 0 {
		t.Error("unexpected ParseTextFormat result")
	}
	for _, m := range []TextMode{ModeNormal, ModeToken, ModeSegmented} {
		if ParseTextMode(m.String()) != m {
			t.Errorf("mode %s did not parse back", m)
		}
	}
	for _, a := range []Alignment{AlignNone, AlignLeft, AlignCenter, AlignRight, AlignJustify, AlignStart, AlignEnd} {
		if ParseAlignment(a.String()) != a {
			t.Errorf("alignment %q did not parse back", a)
		}
	}
}

func TestSameMarksAndSimple(t *testing.T) {
	a, b := NewText("a"), NewText("b")
	if !a.SameMarks(b) || !a.IsSimple() {
		t.Error("expected plain texts to match and be simple")
	}
	b.SetStyle("color: red")
	if a.SameMarks(b) {
		t.Error("expected style to break the match")
	}
	a.SetUnmergeable(true)
	if a.IsSimple() {
		t.Error("expected unmergeable text not simple")
	}
	b.SetMode(ModeToken)
	if b.IsSimple() {
		t.Error("expected token text not simple")
	}
}

func TestSetIndentClamps(t *testing.T) {
	p := NewParagraph()
	p.SetIndent(-3)
	if p.Indent() != 0 {
		t.Errorf("expected 0, got %d", p.Indent())
	}
}

func TestReserve(t *testing.T) {
	k := NewKey()
	n, err := strconv.ParseUint(string(k), 10, 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ahead := Key(strconv.FormatUint(n+50, 10))
	Reserve(ahead)
	Reserve("custom-key")
	Reserve(k)

	next := NewKey()
	got, err := strconv.ParseUint(string(next), 10, 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got <= n+50 {
		t.Errorf("expected key past %s, got %s", ahead, next)
	}
}
