package engine

import (
	"fmt"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/selection"
)

// Selection returns a copy of the pending selection, or nil.
func (t *Txn) Selection() *selection.Range {
	return t.sel.Clone()
}

// SetSelection replaces the selection. Both points must name nodes of the
// right kind with offsets in range.
func (t *Txn) SetSelection(r *selection.Range) error {
	if err := t.check(); err != nil {
		return err
	}
	if r == nil {
		t.sel = nil
		return nil
	}
	for _, p := range []selection.Point{r.Anchor, r.Focus} {
		if err := t.validPoint(p); err != nil {
			return t.fail("set selection", p.Key, err)
		}
	}
	t.sel = r.Clone()
	return nil
}

// ClearSelection removes the selection.
func (t *Txn) ClearSelection() error {
	return t.SetSelection(nil)
}

func (t *Txn) validPoint(p selection.Point) error {
	n, err := t.Node(p.Key)
	if err != nil {
		return err
	}
	limit := 0
	switch p.Kind {
	case selection.Character:
		tn, ok := node.AsText(n)
		if !ok {
			return fmt.Errorf("%w: character point on %s %s", ErrInvalidOperation, n.Type(), p.Key)
		}
		limit = tn.TextBase().Size()
	case selection.ChildIndex:
		e, ok := node.AsElement(n)
		if !ok {
			return fmt.Errorf("%w: child-index point on %s %s", ErrInvalidOperation, n.Type(), p.Key)
		}
		limit = e.ElementBase().Size()
	}
	if p.Offset < 0 || p.Offset > limit {
		return fmt.Errorf("%w: offset %d outside [0,%d] on %s", ErrInvalidOperation, p.Offset, limit, p.Key)
	}
	return nil
}

// Select selects within k. The first offset is the anchor and the second
// the focus; a missing offset defaults to the end of k, its character count
// for text or its child count for an element. Other leaves are selected as
// a whole, by child index in their parent.
func (t *Txn) Select(k node.Key, offsets ...int) error {
	if err := t.check(); err != nil {
		return err
	}
	n, err := t.Node(k)
	if err != nil {
		return t.fail("select", k, err)
	}

	var kind selection.Kind
	var end int
	switch {
	case node.IsElement(n):
		kind, end = selection.ChildIndex, t.ChildCount(k)
	default:
		if tn, ok := node.AsText(n); ok {
			kind, end = selection.Character, tn.TextBase().Size()
			break
		}
		idx, err := t.IndexWithinParent(k)
		if err != nil {
			return t.fail("select", k, err)
		}
		return t.SetSelection(selection.NewRange(
			selection.ElementPoint(n.Parent(), idx),
			selection.ElementPoint(n.Parent(), idx+1),
		))
	}

	anchor, focus := end, end
	if len(offsets) > 0 {
		anchor = offsets[0]
	}
	if len(offsets) > 1 {
		focus = offsets[1]
	}
	prev := t.sel
	err = t.SetSelection(selection.NewRange(
		selection.Point{Key: k, Offset: anchor, Kind: kind},
		selection.Point{Key: k, Offset: focus, Kind: kind},
	))
	if err == nil && prev != nil {
		t.sel.Format, t.sel.Style = prev.Format, prev.Style
	}
	return err
}

// SelectStart places a caret at the start of k's first descendant.
func (t *Txn) SelectStart(k node.Key) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, err := t.Node(k); err != nil {
		return t.fail("select start", k, err)
	}
	return t.SetSelection(selection.Caret(t.startPoint(t.FirstDescendant(k))))
}

// SelectEnd places a caret at the end of k's last descendant.
func (t *Txn) SelectEnd(k node.Key) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, err := t.Node(k); err != nil {
		return t.fail("select end", k, err)
	}
	return t.SetSelection(selection.Caret(t.endPoint(t.LastDescendant(k))))
}

// ToggleSelectionFormat flips a pending format flag on the selection, used
// for text typed at a caret.
func (t *Txn) ToggleSelectionFormat(f node.TextFormat) error {
	if err := t.check(); err != nil {
		return err
	}
	if t.sel == nil {
		return t.fail("toggle selection format", node.NoKey, fmt.Errorf("%w: no selection", ErrInvalidOperation))
	}
	t.sel.Format = t.sel.Format.Toggle(f)
	return nil
}

// SelectedNodes returns the nodes covered by the pending selection in
// document order.
func (t *Txn) SelectedNodes() ([]node.Key, error) {
	return t.Reader.SelectedNodes(t.sel)
}
