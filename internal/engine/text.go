package engine

import (
	"fmt"
	"sort"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/selection"
)

// ============================================================================
// Text content
// ============================================================================

// SetText replaces the content of text node k. Character points past the
// new end are clamped to it.
func (t *Txn) SetText(k node.Key, content string) error {
	if err := t.check(); err != nil {
		return err
	}
	tn, err := t.text(k)
	if err != nil {
		return t.fail("set text", k, err)
	}
	tn.SetContent(t.editor.input(content))
	size := tn.Size()
	t.eachTextPoint(k, func(p *selection.Point) {
		if p.Offset > size {
			p.Offset = size
		}
	})
	return nil
}

// SpliceText deletes del grapheme clusters at offset in text node k and
// inserts ins there. Character points after the edited span shift by the
// change in length; points inside the deleted span move to the end of the
// inserted text. Lengths are measured on the result, so a combining mark
// that joins the previous cluster shifts nothing.
func (t *Txn) SpliceText(k node.Key, offset, del int, ins string) error {
	if err := t.check(); err != nil {
		return err
	}
	tn, err := t.text(k)
	if err != nil {
		return t.fail("splice text", k, err)
	}
	size := tn.Size()
	if offset < 0 || del < 0 || offset+del > size {
		return t.fail("splice text", k, fmt.Errorf("%w: span [%d,+%d) outside %d characters", ErrInvalidOperation, offset, del, size))
	}

	ins = t.editor.input(ins)
	tn.SetContent(node.GraphemeSplice(tn.Content(), offset, del, ins))
	// Inserted marks can join the clusters around them, so the shift comes
	// from the resulting size rather than from ins alone.
	newSize := tn.Size()
	grown := max(newSize-size+del, 0)
	t.eachTextPoint(k, func(p *selection.Point) {
		switch {
		case p.Offset >= offset+del:
			p.Offset += newSize - size
		case p.Offset > offset:
			p.Offset = offset + grown
		}
		p.Offset = min(max(p.Offset, 0), newSize)
	})
	return nil
}

// SplitText splits text node k at the given character offsets and returns
// the keys of the pieces in order. The first piece keeps k; later pieces are
// new siblings carrying the same marks. A point on a boundary stays at the
// end of the left piece.
func (t *Txn) SplitText(k node.Key, offsets ...int) ([]node.Key, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	keys, err := t.splitText(k, offsets)
	return keys, t.fail("split text", k, err)
}

func (t *Txn) splitText(k node.Key, offsets []int) ([]node.Key, error) {
	src, err := t.Text(k)
	if err != nil {
		return nil, err
	}
	size := src.Size()

	cuts := make([]int, 0, len(offsets))
	seen := make(map[int]struct{})
	for _, o := range offsets {
		if o <= 0 || o >= size {
			continue
		}
		if _, dup := seen[o]; !dup {
			seen[o] = struct{}{}
			cuts = append(cuts, o)
		}
	}
	sort.Ints(cuts)
	if len(cuts) == 0 {
		return []node.Key{k}, nil
	}
	if src.Parent() == node.NoKey {
		return nil, fmt.Errorf("%w: cannot split detached text %s", ErrDetachedNode, k)
	}

	bounds := append([]int{0}, cuts...)
	bounds = append(bounds, size)
	content := src.Content()

	first, err := t.text(k)
	if err != nil {
		return nil, err
	}
	first.SetContent(node.GraphemeSlice(content, 0, bounds[1]))

	keys := []node.Key{k}
	prev := k
	for i := 1; i < len(bounds)-1; i++ {
		piece := node.NewText(node.GraphemeSlice(content, bounds[i], bounds[i+1]))
		piece.SetFormat(src.Format())
		piece.SetStyle(src.Style())
		piece.SetMode(src.Mode())
		piece.SetUnmergeable(src.Unmergeable())
		pk, err := t.createNode(piece)
		if err != nil {
			return nil, err
		}
		if err := t.insertAdjacent(prev, pk, true); err != nil {
			return nil, err
		}
		keys = append(keys, pk)
		prev = pk
	}

	t.eachTextPoint(k, func(p *selection.Point) {
		for i := 0; i < len(keys); i++ {
			if p.Offset <= bounds[i+1] || i == len(keys)-1 {
				p.Key = keys[i]
				p.Offset -= bounds[i]
				return
			}
		}
	})
	return keys, nil
}

// MergeWithSibling merges the adjacent text sibling into k and removes the
// sibling. Points on either node end up on k at the same character.
func (t *Txn) MergeWithSibling(k, sibling node.Key) error {
	if err := t.check(); err != nil {
		return err
	}
	return t.fail("merge text", k, t.mergeText(k, sibling))
}

func (t *Txn) mergeText(k, sibling node.Key) error {
	a, err := t.Text(k)
	if err != nil {
		return err
	}
	b, err := t.Text(sibling)
	if err != nil {
		return err
	}
	var siblingFirst bool
	switch {
	case a.Next() == sibling:
	case a.Prev() == sibling:
		siblingFirst = true
	default:
		return fmt.Errorf("%w: %s is not adjacent to %s", ErrInvalidOperation, sibling, k)
	}

	aLen, bLen := a.Size(), b.Size()
	w, err := t.text(k)
	if err != nil {
		return err
	}
	if siblingFirst {
		w.SetContent(b.Content() + a.Content())
	} else {
		w.SetContent(a.Content() + b.Content())
	}

	if t.sel != nil {
		for _, p := range t.sel.Points() {
			if p.Kind != selection.Character {
				continue
			}
			switch {
			case p.Key == k && siblingFirst:
				p.Offset += bLen
			case p.Key == sibling && !siblingFirst:
				p.Key, p.Offset = k, p.Offset+aLen
			case p.Key == sibling:
				p.Key = k
			}
		}
	}
	if t.composition == sibling {
		t.composition = k
	}
	return t.removeNode(sibling, true)
}

// eachTextPoint calls fn for every character point on k.
func (t *Txn) eachTextPoint(k node.Key, fn func(*selection.Point)) {
	if t.sel == nil {
		return
	}
	for _, p := range t.sel.Points() {
		if p.Key == k && p.Kind == selection.Character {
			fn(p)
		}
	}
}

// ============================================================================
// Marks and attributes
// ============================================================================

// SetTextFormat replaces the format flags of text node k.
func (t *Txn) SetTextFormat(k node.Key, f node.TextFormat) error {
	return t.updateText("set format", k, func(tn *node.Text) { tn.SetFormat(f) })
}

// ToggleFormat flips one format flag of text node k.
func (t *Txn) ToggleFormat(k node.Key, f node.TextFormat) error {
	return t.updateText("toggle format", k, func(tn *node.Text) { tn.SetFormat(tn.Format().Toggle(f)) })
}

// SetTextStyle replaces the inline style of text node k.
func (t *Txn) SetTextStyle(k node.Key, style string) error {
	return t.updateText("set style", k, func(tn *node.Text) { tn.SetStyle(style) })
}

// SetTextMode sets the editing mode of text node k.
func (t *Txn) SetTextMode(k node.Key, m node.TextMode) error {
	return t.updateText("set mode", k, func(tn *node.Text) { tn.SetMode(m) })
}

// SetUnmergeable controls whether normalization may merge text node k.
func (t *Txn) SetUnmergeable(k node.Key, v bool) error {
	return t.updateText("set unmergeable", k, func(tn *node.Text) { tn.SetUnmergeable(v) })
}

func (t *Txn) updateText(op string, k node.Key, fn func(*node.Text)) error {
	if err := t.check(); err != nil {
		return err
	}
	tn, err := t.text(k)
	if err != nil {
		return t.fail(op, k, err)
	}
	fn(tn)
	return nil
}

// SetElementFormat sets the alignment of element k.
func (t *Txn) SetElementFormat(k node.Key, a node.Alignment) error {
	return t.updateElement("set element format", k, func(e *node.Element) { e.SetFormat(a) })
}

// SetIndent sets the indent level of element k.
func (t *Txn) SetIndent(k node.Key, level int) error {
	return t.updateElement("set indent", k, func(e *node.Element) { e.SetIndent(level) })
}

// SetDirection sets the text direction of element k.
func (t *Txn) SetDirection(k node.Key, d node.Direction) error {
	return t.updateElement("set direction", k, func(e *node.Element) { e.SetDirection(d) })
}

func (t *Txn) updateElement(op string, k node.Key, fn func(*node.Element)) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, err := t.Element(k); err != nil {
		return t.fail(op, k, err)
	}
	e, err := t.element(k)
	if err != nil {
		return t.fail(op, k, err)
	}
	fn(e.ElementBase())
	return nil
}

// SetDecoratorPayload replaces the payload of decorator k.
func (t *Txn) SetDecoratorPayload(k node.Key, payload string) error {
	if err := t.check(); err != nil {
		return err
	}
	n, err := t.Node(k)
	if err != nil {
		return t.fail("set payload", k, err)
	}
	if _, ok := n.(node.DecoratorNode); !ok {
		return t.fail("set payload", k, fmt.Errorf("%w: %s is %s, not a decorator", ErrInvalidOperation, k, n.Type()))
	}
	w, err := t.writable(k)
	if err != nil {
		return t.fail("set payload", k, err)
	}
	w.(node.DecoratorNode).DecoratorBase().SetPayload(payload)
	return nil
}
