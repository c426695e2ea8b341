package reconcile

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dshills/inkwell/internal/engine"
	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/version"
)

// recorder is a binding whose views are strings describing the last call.
type recorder struct {
	calls []string
}

func (b *recorder) Create(n node.Node) any {
	b.calls = append(b.calls, fmt.Sprintf("create %s", n.Key()))
	return "created " + describe(n)
}

func (b *recorder) Update(prev, next node.Node, view any) any {
	b.calls = append(b.calls, fmt.Sprintf("update %s", next.Key()))
	return "updated " + describe(next)
}

func (b *recorder) reset() { b.calls = nil }

func describe(n node.Node) string {
	if tn, ok := node.AsText(n); ok {
		return tn.TextBase().Content()
	}
	return string(n.Type())
}

var unordered = cmpopts.SortSlices(func(a, b string) bool { return a < b })

func setup(t *testing.T) (*engine.Editor, *Reconciler, *recorder, func()) {
	t.Helper()
	e := engine.New(engine.WithTextNormalization(false))
	b := &recorder{}
	for _, tag := range []node.Type{node.TypeParagraph, node.TypeText} {
		if err := e.Registry().SetBinding(tag, b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	r := New(e.Registry())
	detach := r.Attach(e)
	return e, r, b, detach
}

func mustUpdate(t *testing.T, e *engine.Editor, fn func(*engine.Txn) error) *engine.Update {
	t.Helper()
	u, err := e.Update(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return u
}

func addParagraph(t *testing.T, e *engine.Editor, text string) (p, tk node.Key, u *engine.Update) {
	t.Helper()
	u = mustUpdate(t, e, func(tx *engine.Txn) error {
		var err error
		if p, err = tx.NewParagraph(); err != nil {
			return err
		}
		if tk, err = tx.NewText(text); err != nil {
			return err
		}
		if err := tx.Append(p, tk); err != nil {
			return err
		}
		return tx.Append(node.RootKey, p)
	})
	return p, tk, u
}

func TestAttachSkipsUnboundRoot(t *testing.T) {
	_, r, b, detach := setup(t)
	defer detach()

	if r.Len() != 0 {
		t.Errorf("expected no views, got %d", r.Len())
	}
	if len(b.calls) != 0 {
		t.Errorf("expected no binding calls, got %v", b.calls)
	}
	if got := r.Stats().Skipped; got != 1 {
		t.Errorf("expected root skipped once, got %d", got)
	}
}

func TestApplyCreatesAndUpdates(t *testing.T) {
	e, r, b, detach := setup(t)
	defer detach()

	p, tk, _ := addParagraph(t, e, "hello")
	if diff := cmp.Diff([]string{"create " + string(p), "create " + string(tk)}, b.calls, unordered); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if v, _ := r.View(tk); v != "created hello" {
		t.Errorf("expected 'created hello', got %v", v)
	}

	b.reset()
	mustUpdate(t, e, func(tx *engine.Txn) error { return tx.SetText(tk, "bye") })
	// The paragraph is only an ancestor of the change; its record is shared.
	if diff := cmp.Diff([]string{"update " + string(tk)}, b.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if v, _ := r.View(tk); v != "updated bye" {
		t.Errorf("expected 'updated bye', got %v", v)
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 views, got %v", r.Keys())
	}
}

func TestApplyDropsRemoved(t *testing.T) {
	e, r, b, detach := setup(t)
	defer detach()

	p, tk, _ := addParagraph(t, e, "hello")
	b.reset()
	u := mustUpdate(t, e, func(tx *engine.Txn) error { return tx.Remove(tk, true) })

	if diff := cmp.Diff([]node.Key{tk}, u.Removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
	if _, ok := r.View(tk); ok {
		t.Error("expected text view dropped")
	}
	if diff := cmp.Diff([]string{"update " + string(p)}, b.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if got := r.Stats().Dropped; got != 1 {
		t.Errorf("expected 1 drop, got %d", got)
	}
}

func TestApplyDropsDetachedSubtree(t *testing.T) {
	e, r, _, detach := setup(t)
	defer detach()

	p, tk, _ := addParagraph(t, e, "hello")
	other, _, _ := addParagraph(t, e, "world")
	// Moving the text into a detached paragraph keeps its record alive but
	// unreachable from the root.
	mustUpdate(t, e, func(tx *engine.Txn) error {
		loose, err := tx.NewParagraph()
		if err != nil {
			return err
		}
		return tx.Append(loose, tk)
	})

	if _, ok := r.View(tk); ok {
		t.Error("expected detached text view dropped")
	}
	for _, k := range []node.Key{p, other} {
		if _, ok := r.View(k); !ok {
			t.Errorf("expected view for %s", k)
		}
	}
}

func TestApplyFullUpdate(t *testing.T) {
	e, r, b, detach := setup(t)
	defer detach()

	p, tk, u := addParagraph(t, e, "hello")
	mustUpdate(t, e, func(tx *engine.Txn) error { return tx.Remove(tk, true) })

	b.reset()
	if err := e.SetState(u.State); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"update " + string(p), "create " + string(tk)}, b.calls, unordered); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if v, _ := r.View(tk); v != "created hello" {
		t.Errorf("expected 'created hello', got %v", v)
	}

	if err := e.SetState(version.Empty()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected all views dropped, got %v", r.Keys())
	}
}

func TestDetachStopsUpdates(t *testing.T) {
	e, r, _, detach := setup(t)
	detach()

	addParagraph(t, e, "hello")
	if r.Len() != 0 {
		t.Errorf("expected no views after detach, got %d", r.Len())
	}
}

func TestUnboundVariantSkipped(t *testing.T) {
	e, r, _, detach := setup(t)
	defer detach()

	p, _, _ := addParagraph(t, e, "a")
	before := r.Stats().Skipped
	var br node.Key
	mustUpdate(t, e, func(tx *engine.Txn) error {
		var err error
		if br, err = tx.NewLineBreak(); err != nil {
			return err
		}
		return tx.Append(p, br)
	})
	if _, ok := r.View(br); ok {
		t.Error("expected no view for line break")
	}
	if got := r.Stats().Skipped; got <= before {
		t.Errorf("expected skipped to grow past %d, got %d", before, got)
	}
}
