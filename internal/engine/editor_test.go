package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/inkwell/internal/config"
	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/selection"
	"github.com/dshills/inkwell/internal/engine/tracking"
	"github.com/dshills/inkwell/internal/engine/version"
)

// ============================================================================
// Helpers
// ============================================================================

func newTestEditor(opts ...Option) *Editor {
	return New(append([]Option{WithInvariantChecks()}, opts...)...)
}

func mustUpdate(t *testing.T, e *Editor, fn func(*Txn) error) *Update {
	t.Helper()
	u, err := e.Update(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return u
}

// begin opens a transaction, failing the test if it cannot.
func begin(t *testing.T, e *Editor) *Txn {
	t.Helper()
	tx, err := e.Begin()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tx
}

// paragraph creates a paragraph holding one text node per string and
// appends it to the root.
func paragraph(tx *Txn, texts ...string) (node.Key, []node.Key, error) {
	p, err := tx.NewParagraph()
	if err != nil {
		return node.NoKey, nil, err
	}
	var keys []node.Key
	for _, s := range texts {
		k, err := tx.NewText(s)
		if err != nil {
			return node.NoKey, nil, err
		}
		keys = append(keys, k)
	}
	if err := tx.Append(p, keys...); err != nil {
		return node.NoKey, nil, err
	}
	if err := tx.Append(node.RootKey, p); err != nil {
		return node.NoKey, nil, err
	}
	return p, keys, nil
}

// ============================================================================
// Transaction state machine
// ============================================================================

func TestNew(t *testing.T) {
	e := New()
	if e.Phase() != PhaseIdle {
		t.Errorf("expected idle, got %s", e.Phase())
	}
	s := e.State()
	if s.Len() != 1 {
		t.Errorf("expected only the root, got %d nodes", s.Len())
	}
	if s.Root() == nil {
		t.Fatal("expected a root")
	}
	if e.ID() == "" {
		t.Error("expected an editor ID")
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Namespace = "notes"
	cfg.MaxRevisions = 3
	cfg.NormalizeText = false

	e := New(WithConfig(cfg))
	if e.Namespace() != "notes" {
		t.Errorf("expected namespace notes, got %q", e.Namespace())
	}
	if e.normalizeText {
		t.Error("expected normalization disabled")
	}
	if e.maxRevisions != 3 {
		t.Errorf("expected 3 revisions, got %d", e.maxRevisions)
	}
}

func TestBeginTwice(t *testing.T) {
	e := New()
	tx, err := e.Begin()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Phase() != PhaseOpen {
		t.Errorf("expected open, got %s", e.Phase())
	}

	if _, err := e.Begin(); !errors.Is(err, ErrTransactionAlreadyOpen) {
		t.Errorf("expected ErrTransactionAlreadyOpen, got %v", err)
	}

	tx.Abort()
	if e.Phase() != PhaseIdle {
		t.Errorf("expected idle after abort, got %s", e.Phase())
	}
	if _, err := e.Begin(); err != nil {
		t.Errorf("expected begin after abort to succeed, got %v", err)
	}
}

func TestMutationOutsideTransaction(t *testing.T) {
	e := New()
	var p node.Key
	var saved *Txn
	mustUpdate(t, e, func(tx *Txn) error {
		saved = tx
		var err error
		p, _, err = paragraph(tx, "hello")
		return err
	})

	if saved.Phase() != PhaseCommitted {
		t.Errorf("expected committed, got %s", saved.Phase())
	}

	tests := []struct {
		name string
		fn   func() error
	}{
		{"append", func() error { return saved.Append(p) }},
		{"remove", func() error { return saved.Remove(p, false) }},
		{"indent", func() error { return saved.SetIndent(p, 1) }},
		{"select", func() error { return saved.Select(p) }},
		{"create", func() error { _, err := saved.NewParagraph(); return err }},
		{"writable", func() error { _, err := saved.Writable(p); return err }},
		{"commit", func() error { _, err := saved.Commit(); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrReadOnlyViolation) {
				t.Errorf("expected ErrReadOnlyViolation, got %v", err)
			}
		})
	}

	// Reads still work and see the committed version.
	if got := saved.TextContent(node.RootKey); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestUpdateAbortsOnError(t *testing.T) {
	e := New()
	before := e.State()
	boom := errors.New("boom")

	_, err := e.Update(func(tx *Txn) error {
		if _, _, err := paragraph(tx, "discarded"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if e.State() != before {
		t.Error("expected active version unchanged")
	}
	if e.Phase() != PhaseIdle {
		t.Errorf("expected idle, got %s", e.Phase())
	}
}

func TestUpdateAbortsOnPanic(t *testing.T) {
	e := New()
	before := e.State()

	func() {
		defer func() {
			if r := recover(); r != "bad" {
				t.Errorf("expected panic to be re-raised, got %v", r)
			}
		}()
		// The panic is re-raised, so Update never returns.
		_, _ = e.Update(func(tx *Txn) error {
			if _, _, err := paragraph(tx, "x"); err != nil {
				return err
			}
			panic("bad")
		})
	}()

	if e.State() != before {
		t.Error("expected active version unchanged")
	}
	if _, err := e.Begin(); err != nil {
		t.Errorf("expected a new transaction to open, got %v", err)
	}
}

func TestCommitAdvancesVersion(t *testing.T) {
	e := New()
	v0 := e.State()
	u := mustUpdate(t, e, func(tx *Txn) error {
		_, _, err := paragraph(tx, "a")
		return err
	})

	if u.Prev != v0 {
		t.Error("expected Prev to be the previous active version")
	}
	if u.State != e.State() {
		t.Error("expected State to be the new active version")
	}
	if u.State.ID() != v0.ID()+1 {
		t.Errorf("expected version %d, got %d", v0.ID()+1, u.State.ID())
	}
	if v0.Len() != 1 {
		t.Errorf("expected old version untouched with 1 node, got %d", v0.Len())
	}
}

// ============================================================================
// Copy-on-write
// ============================================================================

func TestCopyOnWriteIsolation(t *testing.T) {
	e := newTestEditor()
	var p node.Key
	var txt []node.Key
	mustUpdate(t, e, func(tx *Txn) error {
		var err error
		p, txt, err = paragraph(tx, "hello")
		return err
	})

	v1 := e.State()
	records := make(map[node.Key]node.Node)
	v1.Each(func(n node.Node) bool {
		records[n.Key()] = n
		return true
	})

	tx, err := e.Begin()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.SetText(txt[0], "bye"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.SetIndent(p, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	extra, err := tx.NewParagraph()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Append(node.RootKey, extra); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The committed version is untouched while the transaction is open.
	if got := NewReader(v1).TextContent(node.RootKey); got != "hello" {
		t.Errorf("expected committed text %q, got %q", "hello", got)
	}
	if got := tx.TextContent(txt[0]); got != "bye" {
		t.Errorf("expected pending text %q, got %q", "bye", got)
	}

	tx.Abort()

	if e.State() != v1 {
		t.Fatal("expected active version unchanged after abort")
	}
	if v1.Len() != len(records) {
		t.Errorf("expected %d nodes, got %d", len(records), v1.Len())
	}
	for k, want := range records {
		got, ok := v1.Get(k)
		if !ok {
			t.Errorf("node %s missing after abort", k)
			continue
		}
		if got != want {
			t.Errorf("node %s replaced after abort", k)
		}
	}
	if v1.Has(extra) {
		t.Error("node created in aborted transaction leaked")
	}
}

func TestSingleClonePerTransaction(t *testing.T) {
	e := New()
	var txt []node.Key
	mustUpdate(t, e, func(tx *Txn) error {
		var err error
		_, txt, err = paragraph(tx, "hello")
		return err
	})
	committed, _ := e.State().Get(txt[0])

	tx, err := e.Begin()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tx.Abort()

	w1, err := tx.Writable(txt[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w1 == committed {
		t.Fatal("expected a clone, got the committed record")
	}
	if err := tx.SetText(txt[0], "changed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w2, err := tx.Writable(txt[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w1 != w2 {
		t.Error("expected the same clone for repeated writes")
	}
	if got, _ := tx.Get(txt[0]); got != w1 {
		t.Error("expected reads to observe the clone")
	}
	if !tx.Dirty().Has(txt[0]) {
		t.Error("expected cloned node to be dirty")
	}
}

// brokenClone inherits Paragraph.Clone, which produces the wrong variant.
type brokenClone struct {
	node.Paragraph
}

func (*brokenClone) Type() node.Type { return "broken" }

// impostor claims the "broken" tag with a different Go type.
type impostor struct {
	node.Paragraph
}

func (*impostor) Type() node.Type { return "broken" }

func (i *impostor) Clone() node.Node {
	c := *i
	return &c
}

func TestStructuralErrorPoisonsTransaction(t *testing.T) {
	reg := node.NewRegistry()
	if err := reg.Register(&brokenClone{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := New(WithRegistry(reg))

	var b node.Key
	mustUpdate(t, e, func(tx *Txn) error {
		var err error
		if b, err = tx.Create(&brokenClone{}); err != nil {
			return err
		}
		return tx.Append(node.RootKey, b)
	})
	v1 := e.State()

	t.Run("bad clone", func(t *testing.T) {
		tx, err := e.Begin()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err = tx.SetIndent(b, 1)
		if !IsStructural(err) {
			t.Fatalf("expected structural error, got %v", err)
		}
		if tx.Err() == nil {
			t.Error("expected transaction to be poisoned")
		}
		if _, err := tx.Commit(); !IsStructural(err) {
			t.Errorf("expected commit to fail with structural error, got %v", err)
		}
		if tx.Phase() != PhaseAborted {
			t.Errorf("expected aborted, got %s", tx.Phase())
		}
		if e.State() != v1 {
			t.Error("expected active version unchanged")
		}
	})

	t.Run("variant mismatch on create", func(t *testing.T) {
		tx, err := e.Begin()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer tx.Abort()
		_, err = tx.Create(&impostor{})
		if !IsStructural(err) {
			t.Fatalf("expected structural error, got %v", err)
		}
		if !errors.Is(err, node.ErrVariantMismatch) {
			t.Errorf("expected ErrVariantMismatch in chain, got %v", err)
		}
		var oe *OperationError
		if !errors.As(err, &oe) || oe.Op != "create" {
			t.Errorf("expected create OperationError, got %v", err)
		}
	})
}

func TestInvalidOperationDoesNotPoison(t *testing.T) {
	e := New()
	tx, err := e.Begin()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Remove(node.RootKey, false); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
	if tx.Err() != nil {
		t.Errorf("expected no poison, got %v", tx.Err())
	}
	if _, err := tx.Commit(); err != nil {
		t.Errorf("expected commit to succeed, got %v", err)
	}
}

func TestVerifyOnCommitAbortsCorruptTree(t *testing.T) {
	r := node.NewRoot()
	p := node.NewParagraph()
	node.Links(p).SetKey("p")
	node.Links(p).SetParent(node.RootKey)
	r.SetFirst("p")
	r.SetLast("p")
	r.SetSize(2)
	corrupt := version.FromNodes(7, []node.Node{r, p}, nil)

	e := New(WithInitialState(corrupt), WithInvariantChecks())
	_, err := e.Update(func(tx *Txn) error {
		return tx.SetIndent("p", 1)
	})
	if !IsStructural(err) {
		t.Fatalf("expected structural error, got %v", err)
	}
	if e.State() != corrupt {
		t.Error("expected corrupt version to stay active rather than be replaced")
	}
}

// ============================================================================
// Listeners and retention
// ============================================================================

func TestListeners(t *testing.T) {
	e := New()
	var got []*Update
	unregister := e.OnUpdate(func(u *Update) { got = append(got, u) })

	u := mustUpdate(t, e, func(tx *Txn) error {
		tx.Tag("typing", "test")
		_, _, err := paragraph(tx, "a")
		return err
	})
	if len(got) != 1 || got[0] != u {
		t.Fatalf("expected one update delivered, got %d", len(got))
	}
	if diff := cmp.Diff([]string{"typing", "test"}, u.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	unregister()
	mustUpdate(t, e, func(tx *Txn) error {
		_, _, err := paragraph(tx, "b")
		return err
	})
	if len(got) != 1 {
		t.Errorf("expected no delivery after unregister, got %d", len(got))
	}
}

func TestAbortDoesNotNotify(t *testing.T) {
	e := New()
	calls := 0
	e.OnUpdate(func(*Update) { calls++ })

	tx := begin(t, e)
	if _, _, err := paragraph(tx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tx.Abort()
	if calls != 0 {
		t.Errorf("expected no notification, got %d", calls)
	}
}

func TestRetention(t *testing.T) {
	e := New(WithMaxRevisions(2))
	v0 := e.State().ID()

	var ids []version.ID
	for i := 0; i < 3; i++ {
		u := mustUpdate(t, e, func(tx *Txn) error {
			_, _, err := paragraph(tx, "x")
			return err
		})
		ids = append(ids, u.State.ID())
		if i == 0 {
			e.Pin("first")
		}
	}

	if _, err := e.Version(v0); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("expected initial version evicted, got %v", err)
	}
	if s, err := e.Version(ids[0]); err != nil || s.ID() != ids[0] {
		t.Errorf("expected pinned version %d, got %v", ids[0], err)
	}
	if s, err := e.Version(ids[2]); err != nil || s != e.State() {
		t.Errorf("expected latest version retained, got %v", err)
	}
	if len(e.Revisions()) != 2 {
		t.Errorf("expected 2 retained revisions, got %d", len(e.Revisions()))
	}

	pinned, err := e.Pinned("first")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pinned.ID() != ids[0] {
		t.Errorf("expected pinned ID %d, got %d", ids[0], pinned.ID())
	}
	if diff := cmp.Diff([]string{"first"}, e.PinNames()); diff != "" {
		t.Errorf("pin names mismatch (-want +got):\n%s", diff)
	}

	changes, err := e.Changes(ids[0], ids[2])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	added := 0
	for _, c := range changes {
		if c.Type == tracking.ChangeAdded {
			added++
		}
	}
	if added != 4 {
		t.Errorf("expected two paragraphs and two texts added, got %d", added)
	}

	if err := e.Unpin("first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.Version(ids[0]); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("expected unpinned version evicted, got %v", err)
	}
	if _, err := e.Changes(ids[0], ids[2]); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestSetState(t *testing.T) {
	e := New()
	mustUpdate(t, e, func(tx *Txn) error {
		_, _, err := paragraph(tx, "a")
		return err
	})

	var full bool
	e.OnUpdate(func(u *Update) { full = u.Full })

	replacement := version.Empty()
	if err := e.SetState(replacement); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !full {
		t.Error("expected a full-redraw update")
	}
	s := e.State()
	if s.Len() != 1 {
		t.Errorf("expected only the root, got %d nodes", s.Len())
	}
	if s.ID() <= 1 {
		t.Errorf("expected version IDs to keep increasing, got %d", s.ID())
	}

	tx := begin(t, e)
	defer tx.Abort()
	if err := e.SetState(version.Empty()); !errors.Is(err, ErrTransactionAlreadyOpen) {
		t.Errorf("expected ErrTransactionAlreadyOpen, got %v", err)
	}
}

func TestCompositionKeyCommitted(t *testing.T) {
	e := New()
	var txt []node.Key
	mustUpdate(t, e, func(tx *Txn) error {
		var err error
		if _, txt, err = paragraph(tx, "ime"); err != nil {
			return err
		}
		return tx.SetCompositionKey(txt[0])
	})
	if e.CompositionKey() != txt[0] {
		t.Errorf("expected composition key %s, got %s", txt[0], e.CompositionKey())
	}

	// Removing the composing node clears the key.
	mustUpdate(t, e, func(tx *Txn) error {
		return tx.Remove(txt[0], false)
	})
	if e.CompositionKey() != node.NoKey {
		t.Errorf("expected composition key cleared, got %s", e.CompositionKey())
	}
}

func TestSelectionCommitted(t *testing.T) {
	e := New()
	var txt []node.Key
	mustUpdate(t, e, func(tx *Txn) error {
		var err error
		if _, txt, err = paragraph(tx, "hello"); err != nil {
			return err
		}
		return tx.Select(txt[0], 1, 3)
	})

	want := selection.NewRange(selection.TextPoint(txt[0], 1), selection.TextPoint(txt[0], 3))
	if got := e.State().Selection(); !got.Equals(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}
