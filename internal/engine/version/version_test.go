package version

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/selection"
)

func keyed(n node.Node, k node.Key) node.Node {
	node.Links(n).SetKey(k)
	return n
}

func TestEmpty(t *testing.T) {
	s := Empty()
	if s.ID() != 0 {
		t.Errorf("expected id 0, got %d", s.ID())
	}
	if s.Len() != 1 || s.Root() == nil {
		t.Fatalf("expected only a root, got %d records", s.Len())
	}
	if s.Selection() != nil {
		t.Error("expected no selection")
	}
}

func TestPendingCopyOnWrite(t *testing.T) {
	base := FromNodes(1, []node.Node{node.NewRoot(), keyed(node.NewText("a"), "t")}, nil)
	p := NewPending(base)

	orig, _ := base.Get("t")
	w1, err := p.Writable("t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w1 == orig {
		t.Fatal("expected a clone, got the base record")
	}
	w2, err := p.Writable("t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w1 != w2 {
		t.Error("expected the same clone on the second call")
	}
	if !p.Owned("t") || p.OwnedCount() != 1 {
		t.Errorf("expected one owned key, got %d", p.OwnedCount())
	}

	w1.(*node.Text).SetContent("changed")
	if orig.(*node.Text).Content() != "a" {
		t.Error("expected base record untouched")
	}

	if _, err := p.Writable("missing"); !errors.Is(err, ErrMissing) {
		t.Errorf("expected ErrMissing, got %v", err)
	}
}

func TestPendingInsertDeleteFreeze(t *testing.T) {
	base := Empty()
	p := NewPending(base)
	p.Insert(keyed(node.NewParagraph(), "p"))
	if !p.Owned("p") {
		t.Error("expected inserted record owned")
	}
	if p.Len() != 2 {
		t.Errorf("expected 2 records, got %d", p.Len())
	}
	p.Insert(keyed(node.NewLineBreak(), "b"))
	p.Delete("b")
	if p.Has("b") {
		t.Error("expected deleted key gone")
	}

	sel := selection.Caret(selection.ElementPoint("p", 0))
	s := p.Freeze(5, sel)
	sel.Anchor.Offset = 9

	if s.ID() != 5 {
		t.Errorf("expected id 5, got %d", s.ID())
	}
	if diff := cmp.Diff([]node.Key{"p", node.RootKey}, s.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if got := s.Selection(); got.Anchor.Offset != 0 {
		t.Errorf("expected frozen selection isolated, got %s", got)
	}
	if base.Has("p") {
		t.Error("expected base unaffected by the overlay")
	}
}

// badClone returns itself from Clone.
type badClone struct {
	node.LineBreak
}

func (b *badClone) Clone() node.Node { return b }

func TestPendingRejectsBadClone(t *testing.T) {
	base := FromNodes(1, []node.Node{node.NewRoot(), keyed(&badClone{}, "x")}, nil)
	p := NewPending(base)
	if _, err := p.Writable("x"); !errors.Is(err, ErrBadClone) {
		t.Errorf("expected ErrBadClone, got %v", err)
	}
}

func TestFromStateSharesNodes(t *testing.T) {
	s := FromNodes(3, []node.Node{node.NewRoot()}, selection.Caret(selection.ElementPoint(node.RootKey, 0)))
	r := FromState(9, s)
	if r.ID() != 9 {
		t.Errorf("expected id 9, got %d", r.ID())
	}
	a, _ := s.Get(node.RootKey)
	b, _ := r.Get(node.RootKey)
	if a != b {
		t.Error("expected shared records")
	}
	if !r.Selection().Equals(s.Selection()) {
		t.Error("expected same selection")
	}

	var n int
	r.Each(func(node.Node) bool { n++; return true })
	if n != 1 {
		t.Errorf("expected 1 record visited, got %d", n)
	}
}
