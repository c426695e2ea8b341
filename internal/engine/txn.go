package engine

import (
	"errors"
	"fmt"

	"github.com/dshills/inkwell/internal/engine/dirty"
	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/selection"
	"github.com/dshills/inkwell/internal/engine/version"
	"github.com/dshills/inkwell/internal/logging"
)

// Txn is one open update. Reads through the embedded Reader observe the
// pending version, including this transaction's own writes.
//
// A Txn has a single writer and is not safe for concurrent use. After
// Commit or Abort every mutating method fails with ErrReadOnlyViolation.
type Txn struct {
	Reader

	editor  *Editor
	base    *version.State
	pending *version.Pending
	dirty   *dirty.Tracker
	log     *logging.Logger

	sel         *selection.Range
	composition node.Key
	removed     map[node.Key]struct{}
	tags        []string

	phase Phase
	err   error
}

func newTxn(e *Editor, base *version.State, composition node.Key) *Txn {
	p := version.NewPending(base)
	return &Txn{
		Reader:      Reader{src: p},
		editor:      e,
		base:        base,
		pending:     p,
		dirty:       dirty.NewTracker(),
		log:         e.log,
		sel:         base.Selection(),
		composition: composition,
		removed:     make(map[node.Key]struct{}),
		phase:       PhaseOpen,
	}
}

// Phase returns the transaction's lifecycle state.
func (t *Txn) Phase() Phase { return t.phase }

// Base returns the version the transaction started from.
func (t *Txn) Base() *version.State { return t.base }

// Err returns the structural error that poisoned the transaction, if any.
// A poisoned transaction aborts on Commit.
func (t *Txn) Err() error { return t.err }

// Tag attaches labels that are delivered with the commit's Update.
func (t *Txn) Tag(tags ...string) {
	t.tags = append(t.tags, tags...)
}

// Dirty returns a copy of the dirty marks accumulated so far.
func (t *Txn) Dirty() dirty.Set { return t.dirty.Set() }

// CompositionKey returns the key of the node holding in-flight IME input.
func (t *Txn) CompositionKey() node.Key { return t.composition }

// SetCompositionKey records the node holding in-flight IME input.
func (t *Txn) SetCompositionKey(k node.Key) error {
	if err := t.check(); err != nil {
		return err
	}
	t.composition = k
	return nil
}

func (t *Txn) check() error {
	if t.phase != PhaseOpen {
		return ErrReadOnlyViolation
	}
	return nil
}

// fail wraps err for op and poisons the transaction when err is structural.
func (t *Txn) fail(op string, k node.Key, err error) error {
	if err == nil {
		return nil
	}
	var oe *OperationError
	if !errors.As(err, &oe) {
		err = newOpError(op, k, err)
	}
	if IsStructural(err) && t.err == nil {
		t.err = err
		t.log.Error("transaction poisoned: %v", err)
	}
	return err
}

// Writable returns a mutable record for k, cloning it into the pending
// version on first use. Repeated calls in one transaction return the same
// record. The node and its ancestors are marked dirty.
func (t *Txn) Writable(k node.Key) (node.Node, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	n, err := t.writable(k)
	return n, t.fail("writable", k, err)
}

func (t *Txn) writable(k node.Key) (node.Node, error) {
	if !t.pending.Has(k) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, k)
	}
	cloned := !t.pending.Owned(k)
	n, err := t.pending.Writable(k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStructuralInvariant, err)
	}
	if cloned {
		if err := t.editor.registry.Check(n); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStructuralInvariant, err)
		}
	}
	t.markDirty(n)
	return n, nil
}

// header returns the writable link fields of k.
func (t *Txn) header(k node.Key) (*node.Header, error) {
	n, err := t.writable(k)
	if err != nil {
		return nil, err
	}
	return node.Links(n), nil
}

// element returns the writable element record of k.
func (t *Txn) element(k node.Key) (node.ElementNode, error) {
	n, err := t.writable(k)
	if err != nil {
		return nil, err
	}
	e, ok := node.AsElement(n)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, not an element", ErrInvalidOperation, k, n.Type())
	}
	return e, nil
}

// text returns the writable text record of k.
func (t *Txn) text(k node.Key) (*node.Text, error) {
	if _, err := t.Text(k); err != nil {
		return nil, err
	}
	n, err := t.writable(k)
	if err != nil {
		return nil, err
	}
	tn, _ := node.AsText(n)
	return tn.TextBase(), nil
}

// markDirty marks n intentionally dirty and its ancestors unintentionally,
// stopping at the first ancestor that is already dirty.
func (t *Txn) markDirty(n node.Node) {
	if node.IsElement(n) {
		t.dirty.MarkElement(n.Key(), true)
	} else {
		t.dirty.MarkLeaf(n.Key())
	}
	for p := n.Parent(); p != node.NoKey; p = t.Parent(p) {
		if t.dirty.IsDirty(p) {
			break
		}
		t.dirty.MarkElement(p, false)
	}
}

// Create registers a new detached node in the pending version and returns
// its fresh key. n must be an instance of the variant registered for its
// type tag.
func (t *Txn) Create(n node.Node) (node.Key, error) {
	if err := t.check(); err != nil {
		return node.NoKey, err
	}
	if n == nil {
		return node.NoKey, t.fail("create", node.NoKey, fmt.Errorf("%w: nil node", ErrInvalidOperation))
	}
	if n.Key() != node.NoKey {
		return node.NoKey, t.fail("create", n.Key(), fmt.Errorf("%w: node already has a key", ErrInvalidOperation))
	}
	k, err := t.createNode(n)
	return k, t.fail("create", node.NoKey, err)
}

func (t *Txn) createNode(n node.Node) (node.Key, error) {
	if err := t.editor.registry.Check(n); err != nil {
		return node.NoKey, fmt.Errorf("%w: %w", ErrStructuralInvariant, err)
	}

	h := node.Links(n)
	h.SetKey(node.NewKey())
	h.Detach()
	if e, ok := node.AsElement(n); ok {
		base := e.ElementBase()
		base.SetFirst(node.NoKey)
		base.SetLast(node.NoKey)
		base.SetSize(0)
	}
	t.pending.Insert(n)
	t.markDirty(n)
	return n.Key(), nil
}

// NewParagraph creates a detached paragraph.
func (t *Txn) NewParagraph() (node.Key, error) {
	return t.Create(node.NewParagraph())
}

// NewInline creates a detached inline element.
func (t *Txn) NewInline() (node.Key, error) {
	return t.Create(node.NewInline())
}

// NewText creates a detached text node.
func (t *Txn) NewText(content string) (node.Key, error) {
	return t.Create(node.NewText(t.editor.input(content)))
}

// NewLineBreak creates a detached line break.
func (t *Txn) NewLineBreak() (node.Key, error) {
	return t.Create(node.NewLineBreak())
}

// NewDecorator creates a detached decorator carrying payload.
func (t *Txn) NewDecorator(payload string, inline bool) (node.Key, error) {
	return t.Create(node.NewDecorator(payload, inline))
}

// Abort discards the pending version. The active version is unchanged.
// Aborting a closed transaction does nothing.
func (t *Txn) Abort() {
	if t.phase != PhaseOpen && t.phase != PhaseCommitting {
		return
	}
	t.abort(nil)
}

func (t *Txn) abort(cause error) {
	t.phase = PhaseAborted
	t.pending = nil
	t.Reader = Reader{src: t.base}
	t.editor.finish(t, nil)
	if cause != nil && IsStructural(cause) {
		t.log.Error("transaction aborted: %v", cause)
		return
	}
	if cause != nil {
		t.log.Warn("transaction aborted: %v", cause)
		return
	}
	t.log.Debug("transaction aborted")
}
