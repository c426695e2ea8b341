package engine

import (
	"sort"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/selection"
)

// Commit finalizes the transaction and makes its version active. The
// pipeline is: normalize text, collect removed nodes, validate the
// selection, optionally verify child lists, then freeze and publish.
//
// A transaction poisoned by a structural error aborts here and returns
// that error; so does one whose verification fails.
func (t *Txn) Commit() (*Update, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if t.err != nil {
		err := t.err
		t.abort(err)
		return nil, err
	}
	t.phase = PhaseCommitting
	e := t.editor

	if e.normalizeText {
		if err := t.normalize(); err != nil {
			err = t.fail("commit", node.NoKey, err)
			t.abort(err)
			return nil, err
		}
	}
	removed := t.collectGarbage()
	t.validateSelection()
	if e.verifyInvariants {
		if err := t.verify(); err != nil {
			err = t.fail("commit", node.NoKey, err)
			t.abort(err)
			return nil, err
		}
	}

	marks := t.dirty.Set()
	st := t.pending.Freeze(e.peekNextID(), t.sel)
	t.phase = PhaseCommitted
	t.pending = nil
	t.Reader = Reader{src: st}
	e.finish(t, st)
	e.store.Add(st)

	t.log.Debug("committed version %d: %d dirty elements, %d dirty leaves",
		st.ID(), len(marks.Elements), len(marks.Leaves))

	u := &Update{
		State:         st,
		Prev:          t.base,
		DirtyElements: marks.Elements,
		DirtyLeaves:   marks.Leaves,
		Removed:       removed,
		Tags:          t.tags,
	}
	e.notify(u)
	return u, nil
}

// normalize removes empty simple text and merges adjacent simple text with
// equal marks, visiting dirty leaves only.
func (t *Txn) normalize() error {
	marks := t.dirty.Set()
	for _, k := range marks.Keys() {
		if _, leaf := marks.Leaves[k]; !leaf {
			continue
		}
		if err := t.normalizeText(k); err != nil {
			return err
		}
	}
	return nil
}

func (t *Txn) normalizeText(k node.Key) error {
	tn, ok := t.simpleText(k)
	if !ok || !t.IsAttached(k) || k == t.composition {
		return nil
	}
	if tn.Content() == "" {
		return t.removeNode(k, false)
	}
	for {
		prev, ok := t.simpleText(tn.Prev())
		if !ok || !prev.SameMarks(tn) || prev.Key() == t.composition {
			break
		}
		if err := t.mergeText(k, prev.Key()); err != nil {
			return err
		}
		tn, _ = t.simpleText(k)
	}
	for {
		next, ok := t.simpleText(tn.Next())
		if !ok || !next.SameMarks(tn) || next.Key() == t.composition {
			break
		}
		if err := t.mergeText(k, next.Key()); err != nil {
			return err
		}
		tn, _ = t.simpleText(k)
	}
	return nil
}

// simpleText returns k as plain built-in text that normalization may touch.
func (t *Txn) simpleText(k node.Key) (*node.Text, bool) {
	n, ok := t.Get(k)
	if !ok || n.Type() != node.TypeText {
		return nil, false
	}
	tn, ok := node.AsText(n)
	if !ok || !tn.TextBase().IsSimple() {
		return nil, false
	}
	return tn.TextBase(), true
}

// collectGarbage deletes nodes removed in this transaction that are still
// detached and returns their keys sorted. Children of a collected element
// are cut loose and kept as unattached subtrees.
func (t *Txn) collectGarbage() []node.Key {
	var out []node.Key
	for k := range t.removed {
		n, ok := t.Get(k)
		if !ok || k == node.RootKey || n.Parent() != node.NoKey {
			continue
		}
		for _, c := range t.Children(k) {
			if h, err := t.header(c); err == nil {
				h.Detach()
			}
			t.dirty.Forget(c)
		}
		t.pending.Delete(k)
		t.dirty.Forget(k)
		if t.composition == k {
			t.composition = node.NoKey
		}
		out = append(out, k)
	}
	t.removed = make(map[node.Key]struct{})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// validateSelection moves any point that does not address a live attached
// position to the end of the root, and clamps offsets.
func (t *Txn) validateSelection() {
	if t.sel == nil {
		return
	}
	rootEnd := selection.ElementPoint(node.RootKey, t.ChildCount(node.RootKey))
	for _, p := range t.sel.Points() {
		n, ok := t.Get(p.Key)
		if !ok || !t.IsAttached(p.Key) {
			t.log.Debug("selection point %s dangles, moved to root end", *p)
			*p = rootEnd
			continue
		}
		limit := -1
		switch p.Kind {
		case selection.Character:
			if tn, ok := node.AsText(n); ok {
				limit = tn.TextBase().Size()
			}
		case selection.ChildIndex:
			if e, ok := node.AsElement(n); ok {
				limit = e.ElementBase().Size()
			}
		}
		switch {
		case limit < 0:
			*p = rootEnd
		case p.Offset > limit:
			p.Offset = limit
		case p.Offset < 0:
			p.Offset = 0
		}
	}
}

// verify walks the child list of the root and of every dirty attached
// element.
func (t *Txn) verify() error {
	if err := t.Verify(node.RootKey); err != nil {
		return err
	}
	for k := range t.dirty.Set().Elements {
		if !t.IsAttached(k) {
			continue
		}
		if err := t.Verify(k); err != nil {
			return err
		}
	}
	return nil
}
