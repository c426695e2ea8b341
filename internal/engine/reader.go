package engine

import (
	"fmt"
	"strings"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/selection"
	"github.com/dshills/inkwell/internal/engine/version"
)

// source is a key-to-node lookup; both committed and pending versions
// provide one.
type source interface {
	Get(node.Key) (node.Node, bool)
}

// Reader answers traversal queries over one version. Every method is a
// pure function of that version.
type Reader struct {
	src source
}

// NewReader returns a reader over a committed version.
func NewReader(s *version.State) Reader {
	return Reader{src: s}
}

// Get returns the record for k.
func (r Reader) Get(k node.Key) (node.Node, bool) {
	if k == node.NoKey {
		return nil, false
	}
	return r.src.Get(k)
}

// Node returns the record for k or ErrNodeNotFound.
func (r Reader) Node(k node.Key) (node.Node, error) {
	n, ok := r.Get(k)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, k)
	}
	return n, nil
}

// Element returns k as an element.
func (r Reader) Element(k node.Key) (node.ElementNode, error) {
	n, err := r.Node(k)
	if err != nil {
		return nil, err
	}
	e, ok := node.AsElement(n)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, not an element", ErrInvalidOperation, k, n.Type())
	}
	return e, nil
}

// Text returns k as a text node.
func (r Reader) Text(k node.Key) (*node.Text, error) {
	n, err := r.Node(k)
	if err != nil {
		return nil, err
	}
	t, ok := node.AsText(n)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, not text", ErrInvalidOperation, k, n.Type())
	}
	return t.TextBase(), nil
}

// Root returns the root element.
func (r Reader) Root() node.ElementNode {
	e, _ := r.Element(node.RootKey)
	return e
}

// Parent returns the parent key of k, or NoKey.
func (r Reader) Parent(k node.Key) node.Key {
	if n, ok := r.Get(k); ok {
		return n.Parent()
	}
	return node.NoKey
}

// ParentOrErr returns the parent key of k or ErrDetachedNode.
func (r Reader) ParentOrErr(k node.Key) (node.Key, error) {
	p := r.Parent(k)
	if p == node.NoKey {
		return node.NoKey, fmt.Errorf("%w: %s has no parent", ErrDetachedNode, k)
	}
	return p, nil
}

// NextSibling returns the next sibling of k, or NoKey.
func (r Reader) NextSibling(k node.Key) node.Key {
	if n, ok := r.Get(k); ok {
		return n.Next()
	}
	return node.NoKey
}

// PrevSibling returns the previous sibling of k, or NoKey.
func (r Reader) PrevSibling(k node.Key) node.Key {
	if n, ok := r.Get(k); ok {
		return n.Prev()
	}
	return node.NoKey
}

// FirstChild returns the first child of k, or NoKey for leaves and empty
// elements.
func (r Reader) FirstChild(k node.Key) node.Key {
	if e, err := r.Element(k); err == nil {
		return e.ElementBase().First()
	}
	return node.NoKey
}

// LastChild returns the last child of k, or NoKey.
func (r Reader) LastChild(k node.Key) node.Key {
	if e, err := r.Element(k); err == nil {
		return e.ElementBase().Last()
	}
	return node.NoKey
}

// ChildCount returns the cached child count of k, or 0 for leaves.
func (r Reader) ChildCount(k node.Key) int {
	if e, err := r.Element(k); err == nil {
		return e.ElementBase().Size()
	}
	return 0
}

// Children returns the child keys of k in order.
func (r Reader) Children(k node.Key) []node.Key {
	var out []node.Key
	for c := r.FirstChild(k); c != node.NoKey; c = r.NextSibling(c) {
		out = append(out, c)
	}
	return out
}

// ChildAt returns the child at index i, or NoKey when out of range.
func (r Reader) ChildAt(k node.Key, i int) node.Key {
	if i < 0 {
		return node.NoKey
	}
	c := r.FirstChild(k)
	for ; c != node.NoKey && i > 0; i-- {
		c = r.NextSibling(c)
	}
	return c
}

// IndexWithinParent returns the 0-based position of k among its parent's
// children. A detached node yields ErrDetachedNode; a node missing from its
// parent's list yields ErrStructuralInvariant.
func (r Reader) IndexWithinParent(k node.Key) (int, error) {
	p, err := r.ParentOrErr(k)
	if err != nil {
		return -1, err
	}
	i := 0
	for c := r.FirstChild(p); c != node.NoKey; c = r.NextSibling(c) {
		if c == k {
			return i, nil
		}
		i++
	}
	return -1, fmt.Errorf("%w: %s not among children of %s", ErrStructuralInvariant, k, p)
}

// Ancestors returns the parent chain of k from nearest to farthest.
func (r Reader) Ancestors(k node.Key) []node.Key {
	var out []node.Key
	for p := r.Parent(k); p != node.NoKey; p = r.Parent(p) {
		out = append(out, p)
	}
	return out
}

// IsAncestor reports whether anc is a proper ancestor of k.
func (r Reader) IsAncestor(anc, k node.Key) bool {
	for p := r.Parent(k); p != node.NoKey; p = r.Parent(p) {
		if p == anc {
			return true
		}
	}
	return false
}

// IsAttached reports whether k reaches the root through parent links.
func (r Reader) IsAttached(k node.Key) bool {
	for cur := k; ; {
		if cur == node.RootKey {
			return true
		}
		n, ok := r.Get(cur)
		if !ok || n.Parent() == node.NoKey {
			return false
		}
		cur = n.Parent()
	}
}

// chain returns k followed by its ancestors.
func (r Reader) chain(k node.Key) []node.Key {
	return append([]node.Key{k}, r.Ancestors(k)...)
}

// CommonAncestor returns the lowest node that is k's ancestor-or-self and
// o's ancestor-or-self.
func (r Reader) CommonAncestor(k, o node.Key) (node.Key, bool) {
	inK := make(map[node.Key]struct{})
	for _, c := range r.chain(k) {
		inK[c] = struct{}{}
	}
	for _, c := range r.chain(o) {
		if _, ok := inK[c]; ok {
			return c, true
		}
	}
	return node.NoKey, false
}

// IsBefore reports whether k precedes o in document order. An ancestor
// precedes its descendants; otherwise the children of the lowest common
// ancestor on each chain are compared by index.
func (r Reader) IsBefore(k, o node.Key) (bool, error) {
	if k == o {
		return false, nil
	}
	ck, co := r.chain(k), r.chain(o)
	pos := make(map[node.Key]int, len(ck))
	for i, c := range ck {
		pos[c] = i
	}
	for j, c := range co {
		i, ok := pos[c]
		if !ok {
			continue
		}
		switch {
		case c == k:
			return true, nil
		case c == o:
			return false, nil
		}
		ik, err := r.IndexWithinParent(ck[i-1])
		if err != nil {
			return false, err
		}
		io, err := r.IndexWithinParent(co[j-1])
		if err != nil {
			return false, err
		}
		return ik < io, nil
	}
	return false, fmt.Errorf("%w: %s and %s share no ancestor", ErrDetachedNode, k, o)
}

// FirstDescendant returns the deepest first descendant of k, or k itself.
func (r Reader) FirstDescendant(k node.Key) node.Key {
	for c := r.FirstChild(k); c != node.NoKey; c = r.FirstChild(c) {
		k = c
	}
	return k
}

// LastDescendant returns the deepest last descendant of k, or k itself.
func (r Reader) LastDescendant(k node.Key) node.Key {
	for c := r.LastChild(k); c != node.NoKey; c = r.LastChild(c) {
		k = c
	}
	return k
}

// nextInOrder returns the pre-order successor of k within the whole tree.
func (r Reader) nextInOrder(k node.Key) node.Key {
	if c := r.FirstChild(k); c != node.NoKey {
		return c
	}
	for cur := k; cur != node.NoKey; cur = r.Parent(cur) {
		if nx := r.NextSibling(cur); nx != node.NoKey {
			return nx
		}
	}
	return node.NoKey
}

// Descendants returns every descendant of k in depth-first pre-order.
func (r Reader) Descendants(k node.Key) []node.Key {
	var out []node.Key
	var walk func(node.Key)
	walk = func(p node.Key) {
		for c := r.FirstChild(p); c != node.NoKey; c = r.NextSibling(c) {
			out = append(out, c)
			walk(c)
		}
	}
	walk(k)
	return out
}

// NodesBetween returns the nodes from k to o inclusive in pre-order. The
// two may be given in either order.
func (r Reader) NodesBetween(k, o node.Key) ([]node.Key, error) {
	if k == o {
		return []node.Key{k}, nil
	}
	before, err := r.IsBefore(k, o)
	if err != nil {
		return nil, err
	}
	if !before {
		k, o = o, k
	}
	seen := make(map[node.Key]struct{})
	var out []node.Key
	for cur := k; cur != node.NoKey; cur = r.nextInOrder(cur) {
		if _, dup := seen[cur]; !dup {
			seen[cur] = struct{}{}
			out = append(out, cur)
		}
		if cur == o {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s not reachable from %s", ErrStructuralInvariant, o, k)
}

// TextContent returns the plain text of k. Block children of an element are
// separated by a blank line.
func (r Reader) TextContent(k node.Key) string {
	n, ok := r.Get(k)
	if !ok {
		return ""
	}
	switch v := n.(type) {
	case node.TextNode:
		return v.TextBase().Content()
	case *node.LineBreak:
		return "\n"
	case node.ElementNode:
		var b strings.Builder
		for c := v.ElementBase().First(); c != node.NoKey; c = r.NextSibling(c) {
			b.WriteString(r.TextContent(c))
			cn, _ := r.Get(c)
			if node.IsElement(cn) && !node.IsInline(cn) && cn.Next() != node.NoKey {
				b.WriteString("\n\n")
			}
		}
		return b.String()
	default:
		return ""
	}
}

// path returns the child indexes leading from the top of k's chain down to
// k, along with that top key.
func (r Reader) path(k node.Key) (node.Key, []int, error) {
	ch := r.chain(k)
	idx := make([]int, 0, len(ch)-1)
	for i := len(ch) - 2; i >= 0; i-- {
		n, err := r.IndexWithinParent(ch[i])
		if err != nil {
			return node.NoKey, nil, err
		}
		idx = append(idx, n)
	}
	return ch[len(ch)-1], idx, nil
}

// ComparePoints returns -1, 0 or 1 as a is before, at, or after b.
func (r Reader) ComparePoints(a, b selection.Point) (int, error) {
	if a.Key == b.Key {
		return compareInts(a.Offset, b.Offset), nil
	}
	ta, pa, err := r.path(a.Key)
	if err != nil {
		return 0, err
	}
	tb, pb, err := r.path(b.Key)
	if err != nil {
		return 0, err
	}
	if ta != tb {
		return 0, fmt.Errorf("%w: %s and %s are in different trees", ErrDetachedNode, a.Key, b.Key)
	}
	pa = append(pa, a.Offset)
	pb = append(pb, b.Offset)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if c := compareInts(pa[i], pb[i]); c != 0 {
			return c, nil
		}
	}
	return compareInts(len(pa), len(pb)), nil
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// IsBackward reports whether sel's focus precedes its anchor.
func (r Reader) IsBackward(sel *selection.Range) (bool, error) {
	c, err := r.ComparePoints(sel.Anchor, sel.Focus)
	return c > 0, err
}

// StartEnd returns sel's points ordered by document position.
func (r Reader) StartEnd(sel *selection.Range) (start, end selection.Point, err error) {
	back, err := r.IsBackward(sel)
	if err != nil {
		return selection.Point{}, selection.Point{}, err
	}
	if back {
		return sel.Focus, sel.Anchor, nil
	}
	return sel.Anchor, sel.Focus, nil
}

// resolvePoint maps a point to the node it sits in. Element points resolve
// to the descendant at their child index.
func (r Reader) resolvePoint(p selection.Point) node.Key {
	if p.Kind == selection.Character {
		return p.Key
	}
	size := r.ChildCount(p.Key)
	if size == 0 {
		return p.Key
	}
	if p.Offset >= size {
		return r.LastDescendant(r.LastChild(p.Key))
	}
	return r.FirstDescendant(r.ChildAt(p.Key, p.Offset))
}

// SelectedNodes returns the nodes between sel's start and end inclusive in
// document order.
func (r Reader) SelectedNodes(sel *selection.Range) ([]node.Key, error) {
	if sel == nil {
		return nil, nil
	}
	start, end, err := r.StartEnd(sel)
	if err != nil {
		return nil, err
	}
	return r.NodesBetween(r.resolvePoint(start), r.resolvePoint(end))
}

// Verify checks the child-list invariants of element k: the forward walk
// from First reaches Last in exactly Size steps, each child names k as
// parent, and the backward walk from Last is the exact reverse.
func (r Reader) Verify(k node.Key) error {
	e, err := r.Element(k)
	if err != nil {
		return err
	}
	base := e.ElementBase()
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: element %s: %s", ErrStructuralInvariant, k, fmt.Sprintf(format, args...))
	}

	var forward []node.Key
	prev := node.NoKey
	for c := base.First(); c != node.NoKey; {
		if len(forward) > base.Size() {
			return fail("forward walk exceeds size %d", base.Size())
		}
		n, ok := r.Get(c)
		if !ok {
			return fail("child %s missing", c)
		}
		if n.Parent() != k {
			return fail("child %s names parent %q", c, n.Parent())
		}
		if n.Prev() != prev {
			return fail("child %s prev is %q, want %q", c, n.Prev(), prev)
		}
		forward = append(forward, c)
		prev = c
		c = n.Next()
	}
	if len(forward) != base.Size() {
		return fail("walked %d children, size is %d", len(forward), base.Size())
	}
	if prev != base.Last() {
		return fail("forward walk ends at %q, last is %q", prev, base.Last())
	}

	i := len(forward) - 1
	for c := base.Last(); c != node.NoKey; c = r.PrevSibling(c) {
		if i < 0 || forward[i] != c {
			return fail("backward walk diverges at %s", c)
		}
		i--
	}
	if i != -1 {
		return fail("backward walk stopped early")
	}
	return nil
}

// VerifyTree verifies every element reachable from the root. Each child
// list is verified before it is walked.
func (r Reader) VerifyTree() error {
	var walk func(node.Key) error
	walk = func(k node.Key) error {
		if err := r.Verify(k); err != nil {
			return err
		}
		for c := r.FirstChild(k); c != node.NoKey; c = r.NextSibling(c) {
			if n, ok := r.Get(c); ok && node.IsElement(n) {
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(node.RootKey)
}

// Dump renders the subtree at k as an indented outline, one node per line.
func (r Reader) Dump(k node.Key) string {
	var b strings.Builder
	var walk func(node.Key, int)
	walk = func(c node.Key, depth int) {
		n, ok := r.Get(c)
		if !ok {
			return
		}
		b.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&b, "%s %s", n.Type(), n.Key())
		if t, ok := node.AsText(n); ok {
			fmt.Fprintf(&b, " %q", t.TextBase().Content())
		}
		b.WriteByte('\n')
		for ch := r.FirstChild(c); ch != node.NoKey; ch = r.NextSibling(ch) {
			walk(ch, depth+1)
		}
	}
	walk(k, 0)
	return b.String()
}
