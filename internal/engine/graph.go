package engine

import (
	"fmt"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/selection"
)

// ============================================================================
// Child list mutations
// ============================================================================

// Append links nodes as a contiguous run at the end of parent's children,
// detaching each from its current parent first.
func (t *Txn) Append(parent node.Key, nodes ...node.Key) error {
	if err := t.check(); err != nil {
		return err
	}
	return t.fail("append", parent, t.splice(parent, t.ChildCount(parent), 0, nodes))
}

// Splice deletes deleteCount children of parent starting at index start and
// links insert in their place. Indexes are 0-based. Deleted nodes stay in
// the pending version, detached, until commit collects them.
//
// Selection points on deleted nodes, or inside them, are moved to the
// nearest surviving sibling. If the deletion empties parent and parent may
// not be empty, parent is removed as well.
func (t *Txn) Splice(parent node.Key, start, deleteCount int, insert []node.Key) error {
	if err := t.check(); err != nil {
		return err
	}
	return t.fail("splice", parent, t.splice(parent, start, deleteCount, insert))
}

func (t *Txn) splice(parent node.Key, start, deleteCount int, insert []node.Key) error {
	pe, err := t.Element(parent)
	if err != nil {
		return err
	}
	size := pe.ElementBase().Size()
	if start < 0 || start > size || deleteCount < 0 {
		return fmt.Errorf("%w: splice range [%d,+%d) outside %d children", ErrInvalidOperation, start, deleteCount, size)
	}
	if start+deleteCount > size {
		deleteCount = size - start
	}
	if err := t.validateInsert(parent, insert); err != nil {
		return err
	}

	insSet := make(map[node.Key]struct{}, len(insert))
	for _, k := range insert {
		insSet[k] = struct{}{}
	}

	orig := t.Children(parent)
	if len(orig) != size {
		return fmt.Errorf("%w: element %s walks %d children, size is %d", ErrStructuralInvariant, parent, len(orig), size)
	}
	deleted := make([]node.Key, 0, deleteCount)
	for _, k := range orig[start : start+deleteCount] {
		if _, kept := insSet[k]; !kept {
			deleted = append(deleted, k)
		}
	}

	// Boundaries skip nodes that are about to move into the inserted run.
	before := node.NoKey
	for i := start - 1; i >= 0; i-- {
		if _, moving := insSet[orig[i]]; !moving {
			before = orig[i]
			break
		}
	}
	after := node.NoKey
	for i := start + deleteCount; i < size; i++ {
		if _, moving := insSet[orig[i]]; !moving {
			after = orig[i]
			break
		}
	}

	t.shiftSplicePoints(parent, orig, start, deleteCount, insSet, len(insert))

	for _, k := range insert {
		n, _ := t.Get(k)
		if n.Parent() == parent {
			if err := t.unlink(k, false); err != nil {
				return err
			}
		} else if err := t.unlink(k, true); err != nil {
			return err
		}
	}
	for _, k := range deleted {
		h, err := t.header(k)
		if err != nil {
			return err
		}
		h.Detach()
		t.removed[k] = struct{}{}
	}

	if err := t.linkRun(parent, before, after, insert); err != nil {
		return err
	}

	newSize := 0
	for c := t.FirstChild(parent); c != node.NoKey; c = t.NextSibling(c) {
		newSize++
		if newSize > size+len(insert) {
			return fmt.Errorf("%w: element %s child list does not terminate", ErrStructuralInvariant, parent)
		}
	}
	w, err := t.element(parent)
	if err != nil {
		return err
	}
	w.ElementBase().SetSize(newSize)

	if len(deleted) > 0 {
		gone := make(map[node.Key]struct{}, len(deleted))
		for _, k := range deleted {
			gone[k] = struct{}{}
		}
		t.repairRemoved(gone, parent, before, after)
	}

	if newSize == 0 && parent != node.RootKey && !w.CanBeEmpty() {
		return t.removeNode(parent, false)
	}
	return nil
}

// validateInsert rejects runs that would corrupt the tree: self insertion,
// cycles, duplicates, the root, and leaves placed directly under the root.
func (t *Txn) validateInsert(parent node.Key, insert []node.Key) error {
	seen := make(map[node.Key]struct{}, len(insert))
	for _, k := range insert {
		n, err := t.Node(k)
		if err != nil {
			return err
		}
		switch {
		case k == parent:
			return fmt.Errorf("%w: cannot insert %s into itself", ErrInvalidOperation, k)
		case k == node.RootKey:
			return fmt.Errorf("%w: the root cannot be inserted", ErrInvalidOperation)
		case t.IsAncestor(k, parent):
			return fmt.Errorf("%w: inserting %s under its descendant %s creates a cycle", ErrInvalidOperation, k, parent)
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: %s appears twice in the inserted run", ErrInvalidOperation, k)
		}
		seen[k] = struct{}{}
		if parent == node.RootKey && !rootChildAllowed(n) {
			return fmt.Errorf("%w: %s %s cannot be a child of the root", ErrInvalidOperation, n.Type(), k)
		}
	}
	return nil
}

func rootChildAllowed(n node.Node) bool {
	if node.IsElement(n) {
		return true
	}
	_, ok := n.(node.DecoratorNode)
	return ok
}

// linkRun links run between before and after in parent. Either boundary may
// be NoKey, meaning the run starts or ends the list. The child count is not
// touched.
func (t *Txn) linkRun(parent, before, after node.Key, run []node.Key) error {
	pe, err := t.element(parent)
	if err != nil {
		return err
	}
	base := pe.ElementBase()

	prev := before
	for _, k := range run {
		h, err := t.header(k)
		if err != nil {
			return err
		}
		h.SetParent(parent)
		h.SetPrev(prev)
		if prev != node.NoKey {
			ph, err := t.header(prev)
			if err != nil {
				return err
			}
			ph.SetNext(k)
		} else {
			base.SetFirst(k)
		}
		delete(t.removed, k)
		prev = k
	}

	if prev != node.NoKey {
		ph, err := t.header(prev)
		if err != nil {
			return err
		}
		ph.SetNext(after)
	} else {
		base.SetFirst(after)
	}
	if after != node.NoKey {
		ah, err := t.header(after)
		if err != nil {
			return err
		}
		ah.SetPrev(prev)
	} else {
		base.SetLast(prev)
	}
	return nil
}

// unlink detaches k from its parent, fixing the neighbors and the parent's
// bounds and count. With shift set, child-index points on the parent after
// k move back by one.
func (t *Txn) unlink(k node.Key, shift bool) error {
	n, err := t.Node(k)
	if err != nil {
		return err
	}
	parent := n.Parent()
	if parent == node.NoKey {
		return nil
	}
	if !t.pending.Has(parent) {
		h, err := t.header(k)
		if err != nil {
			return err
		}
		h.Detach()
		return nil
	}

	if shift && t.sel != nil {
		idx, err := t.IndexWithinParent(k)
		if err != nil {
			return err
		}
		t.shiftPoints(parent, idx+1, -1)
	}

	pe, err := t.element(parent)
	if err != nil {
		return err
	}
	base := pe.ElementBase()
	prev, next := n.Prev(), n.Next()
	if prev != node.NoKey {
		h, err := t.header(prev)
		if err != nil {
			return err
		}
		h.SetNext(next)
	} else {
		base.SetFirst(next)
	}
	if next != node.NoKey {
		h, err := t.header(next)
		if err != nil {
			return err
		}
		h.SetPrev(prev)
	} else {
		base.SetLast(prev)
	}
	base.SetSize(base.Size() - 1)

	h, err := t.header(k)
	if err != nil {
		return err
	}
	h.Detach()
	return nil
}

// InsertBefore moves k to the slot immediately before target.
func (t *Txn) InsertBefore(target, k node.Key) error {
	if err := t.check(); err != nil {
		return err
	}
	return t.fail("insert before", target, t.insertAdjacent(target, k, false))
}

// InsertAfter moves k to the slot immediately after target.
func (t *Txn) InsertAfter(target, k node.Key) error {
	if err := t.check(); err != nil {
		return err
	}
	return t.fail("insert after", target, t.insertAdjacent(target, k, true))
}

func (t *Txn) insertAdjacent(target, k node.Key, after bool) error {
	if target == k {
		return fmt.Errorf("%w: cannot insert %s next to itself", ErrInvalidOperation, k)
	}
	if _, err := t.Node(target); err != nil {
		return err
	}
	parent, err := t.ParentOrErr(target)
	if err != nil {
		return err
	}
	if err := t.validateInsert(parent, []node.Key{k}); err != nil {
		return err
	}

	if err := t.unlink(k, true); err != nil {
		return err
	}

	tn, _ := t.Get(target)
	before, next := tn.Prev(), target
	if after {
		before, next = target, tn.Next()
	}
	if err := t.linkRun(parent, before, next, []node.Key{k}); err != nil {
		return err
	}
	pe, err := t.element(parent)
	if err != nil {
		return err
	}
	pe.ElementBase().SetSize(pe.ElementBase().Size() + 1)

	if t.sel != nil {
		idx, err := t.IndexWithinParent(k)
		if err != nil {
			return err
		}
		t.shiftPoints(parent, idx, 1)
	}
	return nil
}

// Remove detaches k. If its parent becomes empty, is not the root, may not
// be empty, and preserveEmptyParent is false, the parent is removed too,
// recursively. A root left empty gets the selection at its end.
func (t *Txn) Remove(k node.Key, preserveEmptyParent bool) error {
	if err := t.check(); err != nil {
		return err
	}
	if k == node.RootKey {
		return t.fail("remove", k, fmt.Errorf("%w: the root cannot be removed", ErrInvalidOperation))
	}
	if _, err := t.Node(k); err != nil {
		return t.fail("remove", k, err)
	}
	return t.fail("remove", k, t.removeNode(k, preserveEmptyParent))
}

func (t *Txn) removeNode(k node.Key, preserveEmptyParent bool) error {
	n, _ := t.Get(k)
	parent := n.Parent()
	t.removed[k] = struct{}{}
	if parent == node.NoKey || !t.pending.Has(parent) {
		return t.unlink(k, false)
	}

	prev, next := n.Prev(), n.Next()
	if err := t.unlink(k, true); err != nil {
		return err
	}
	t.repairRemoved(map[node.Key]struct{}{k: {}}, parent, prev, next)

	pe, err := t.Element(parent)
	if err != nil {
		return err
	}
	if !pe.ElementBase().IsEmpty() {
		return nil
	}
	if parent == node.RootKey {
		if t.sel != nil {
			end := selection.ElementPoint(node.RootKey, 0)
			t.sel.Anchor, t.sel.Focus = end, end
		}
		return nil
	}
	if !preserveEmptyParent && !pe.CanBeEmpty() {
		return t.removeNode(parent, false)
	}
	return nil
}

// Replace puts replacement in the exact slot k occupies and removes k. With
// includeChildren, k's children move to replacement, which must be an
// element. Selection points and the composition key on k move to the end
// of replacement.
func (t *Txn) Replace(k, replacement node.Key, includeChildren bool) error {
	if err := t.check(); err != nil {
		return err
	}
	return t.fail("replace", k, t.replace(k, replacement, includeChildren))
}

func (t *Txn) replace(k, replacement node.Key, includeChildren bool) error {
	if k == replacement {
		return fmt.Errorf("%w: cannot replace %s with itself", ErrInvalidOperation, k)
	}
	if k == node.RootKey {
		return fmt.Errorf("%w: the root cannot be replaced", ErrInvalidOperation)
	}
	if _, err := t.Node(k); err != nil {
		return err
	}
	parent, err := t.ParentOrErr(k)
	if err != nil {
		return err
	}
	if err := t.validateInsert(parent, []node.Key{replacement}); err != nil {
		return err
	}
	if includeChildren {
		if _, err := t.Element(replacement); err != nil {
			return err
		}
	}

	if err := t.unlink(replacement, true); err != nil {
		return err
	}
	n, _ := t.Get(k)
	prev, next := n.Prev(), n.Next()
	if err := t.linkRun(parent, prev, next, []node.Key{replacement}); err != nil {
		return err
	}
	h, err := t.header(k)
	if err != nil {
		return err
	}
	h.Detach()
	t.removed[k] = struct{}{}

	if includeChildren && t.ChildCount(k) > 0 {
		if err := t.splice(replacement, t.ChildCount(replacement), 0, t.Children(k)); err != nil {
			return err
		}
	}

	if t.composition == k {
		t.composition = replacement
	}
	if t.sel != nil {
		end := t.endPoint(replacement)
		for _, p := range t.sel.Points() {
			if p.Key == k || (!includeChildren && t.IsAncestor(k, p.Key)) {
				*p = end
			}
		}
	}
	return nil
}

// ============================================================================
// Selection maintenance
// ============================================================================

// endPoint returns the point at the end of k: after the last character of
// text, after the last child of an element, or after k in its parent for
// other leaves.
func (t *Txn) endPoint(k node.Key) selection.Point {
	n, ok := t.Get(k)
	if !ok {
		return selection.ElementPoint(node.RootKey, t.ChildCount(node.RootKey))
	}
	if tn, ok := node.AsText(n); ok {
		return selection.TextPoint(k, tn.TextBase().Size())
	}
	if e, ok := node.AsElement(n); ok {
		return selection.ElementPoint(k, e.ElementBase().Size())
	}
	if idx, err := t.IndexWithinParent(k); err == nil {
		return selection.ElementPoint(n.Parent(), idx+1)
	}
	return selection.ElementPoint(node.RootKey, t.ChildCount(node.RootKey))
}

// startPoint returns the point at the start of k.
func (t *Txn) startPoint(k node.Key) selection.Point {
	n, ok := t.Get(k)
	if !ok {
		return selection.ElementPoint(node.RootKey, 0)
	}
	if node.IsElement(n) {
		return selection.ElementPoint(k, 0)
	}
	if _, ok := node.AsText(n); ok {
		return selection.TextPoint(k, 0)
	}
	if idx, err := t.IndexWithinParent(k); err == nil {
		return selection.ElementPoint(n.Parent(), idx)
	}
	return selection.ElementPoint(node.RootKey, 0)
}

// repairRemoved re-anchors selection points that sit on, or inside, any
// node in gone. Points go to the end of prev if it exists, else to the
// start of next, else to parent at the index where the run was. The links
// of parent must already reflect the removal. Missing nodes are expected
// here and never reported.
func (t *Txn) repairRemoved(gone map[node.Key]struct{}, parent, prev, next node.Key) {
	if t.sel == nil {
		return
	}
	for _, p := range t.sel.Points() {
		if !t.insideAny(p.Key, gone) {
			continue
		}
		switch {
		case prev != node.NoKey && t.Parent(prev) == parent:
			*p = t.endPoint(prev)
		case next != node.NoKey && t.Parent(next) == parent:
			*p = t.startPoint(next)
		default:
			idx := 0
			if prev != node.NoKey {
				if i, err := t.IndexWithinParent(prev); err == nil {
					idx = i + 1
				}
			}
			*p = selection.ElementPoint(parent, idx)
		}
	}
}

// insideAny reports whether k or one of its ancestors is in set. Detached
// chains simply end; nothing here fails on missing keys.
func (t *Txn) insideAny(k node.Key, set map[node.Key]struct{}) bool {
	for cur := k; cur != node.NoKey; cur = t.Parent(cur) {
		if _, ok := set[cur]; ok {
			return true
		}
	}
	return false
}

// shiftPoints moves child-index points on parent with offset >= from by
// delta.
func (t *Txn) shiftPoints(parent node.Key, from, delta int) {
	if t.sel == nil {
		return
	}
	for _, p := range t.sel.Points() {
		if p.Key != parent || p.Kind != selection.ChildIndex || p.Offset < from {
			continue
		}
		p.Offset += delta
		if p.Offset < 0 {
			p.Offset = 0
		}
	}
}

// shiftSplicePoints remaps child-index points on parent from the original
// child list orig to the list a splice will produce.
func (t *Txn) shiftSplicePoints(parent node.Key, orig []node.Key, start, deleteCount int, insSet map[node.Key]struct{}, inserted int) {
	if t.sel == nil {
		return
	}
	movedBefore := func(end int) int {
		n := 0
		for _, k := range orig[:end] {
			if _, ok := insSet[k]; ok {
				n++
			}
		}
		return n
	}
	runStart := start - movedBefore(start)

	for _, p := range t.sel.Points() {
		if p.Key != parent || p.Kind != selection.ChildIndex {
			continue
		}
		o := p.Offset
		if o > len(orig) {
			o = len(orig)
		}
		switch {
		case o <= start:
			p.Offset = o - movedBefore(o)
		case o < start+deleteCount:
			p.Offset = runStart
		default:
			tail := 0
			for _, k := range orig[start+deleteCount : o] {
				if _, ok := insSet[k]; !ok {
					tail++
				}
			}
			p.Offset = runStart + inserted + tail
		}
	}
}
