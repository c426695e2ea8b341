package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/dshills/inkwell/internal/config"
	"github.com/dshills/inkwell/internal/engine/dirty"
	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/tracking"
	"github.com/dshills/inkwell/internal/engine/version"
	"github.com/dshills/inkwell/internal/logging"
)

// Phase is the lifecycle state of the editor or of one transaction.
type Phase uint8

const (
	// PhaseIdle means no transaction is open; reads serve the active version.
	PhaseIdle Phase = iota
	// PhaseOpen means a pending version exists and mutations are allowed.
	PhaseOpen
	// PhaseCommitting means the pending version is being finalized.
	PhaseCommitting
	// PhaseCommitted means the transaction produced the active version.
	PhaseCommitted
	// PhaseAborted means the pending version was discarded.
	PhaseAborted
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOpen:
		return "open"
	case PhaseCommitting:
		return "committing"
	case PhaseCommitted:
		return "committed"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Update is what a commit hands to listeners.
type Update struct {
	// State is the new active version.
	State *version.State
	// Prev is the version that was active before the commit.
	Prev *version.State
	// DirtyElements maps touched elements to whether the element itself was
	// mutated (true) or only a descendant (false).
	DirtyElements map[node.Key]bool
	// DirtyLeaves holds touched non-element nodes.
	DirtyLeaves map[node.Key]struct{}
	// Removed lists the keys deleted from the mapping by this commit.
	Removed []node.Key
	// Full asks the renderer to rebuild everything.
	Full bool
	// Tags are caller-supplied labels attached to the transaction.
	Tags []string
}

// Dirty returns the dirty keys as a set.
func (u *Update) Dirty() dirty.Set {
	return dirty.Set{Elements: u.DirtyElements, Leaves: u.DirtyLeaves, Full: u.Full}
}

// Listener receives every committed update.
type Listener func(*Update)

type listenerEntry struct {
	id int
	fn Listener
}

// Editor owns the active version and the transaction state machine.
//
// Reads may be issued from any goroutine. Mutations go through a Txn; only
// one may be open at a time, and opening a second one is an error rather
// than a wait.
type Editor struct {
	mu sync.RWMutex

	id        string
	namespace string
	registry  *node.Registry
	log       *logging.Logger
	store     *tracking.Store

	current     *version.State
	txn         *Txn
	nextID      version.ID
	composition node.Key

	listeners      []listenerEntry
	nextListenerID int

	// Configuration
	maxRevisions     int
	normalizeText    bool
	verifyInvariants bool
	unicodeNFC       bool
}

// New creates an editor holding an empty root.
func New(opts ...Option) *Editor {
	def := config.Default()
	e := &Editor{
		id:            uuid.NewString(),
		namespace:     def.Namespace,
		registry:      node.NewRegistry(),
		log:           logging.Discard(),
		current:       version.Empty(),
		maxRevisions:  def.MaxRevisions,
		normalizeText: def.NormalizeText,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.log = e.log.WithComponent("engine").WithFields(map[string]any{
		"editor":    e.id,
		"namespace": e.namespace,
	})
	e.store = tracking.NewStore(e.maxRevisions)
	e.store.Add(e.current)
	e.nextID = e.current.ID() + 1
	return e
}

// input prepares caller-supplied text for storage.
func (e *Editor) input(s string) string {
	if e.unicodeNFC {
		return norm.NFC.String(s)
	}
	return s
}

// ID returns the editor instance ID.
func (e *Editor) ID() string { return e.id }

// Namespace returns the configured namespace.
func (e *Editor) Namespace() string { return e.namespace }

// Registry returns the variant registry.
func (e *Editor) Registry() *node.Registry { return e.registry }

// Logger returns the editor's logger.
func (e *Editor) Logger() *logging.Logger { return e.log }

// State returns the active version.
func (e *Editor) State() *version.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Reader returns a reader over the active version. The reader keeps seeing
// that version after later commits.
func (e *Editor) Reader() Reader {
	return NewReader(e.State())
}

// Phase reports whether a transaction is open.
func (e *Editor) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.txn == nil {
		return PhaseIdle
	}
	return e.txn.phase
}

// CompositionKey returns the committed composition key.
func (e *Editor) CompositionKey() node.Key {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.composition
}

// Begin opens a transaction on top of the active version.
func (e *Editor) Begin() (*Txn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.txn != nil {
		return nil, ErrTransactionAlreadyOpen
	}
	t := newTxn(e, e.current, e.composition)
	e.txn = t
	e.log.Debug("transaction opened on version %d", e.current.ID())
	return t, nil
}

// Update runs fn in a new transaction and commits it. The transaction is
// aborted if fn returns an error or panics; a panic is re-raised after the
// abort.
func (e *Editor) Update(fn func(*Txn) error) (*Update, error) {
	t, err := e.Begin()
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			t.Abort()
			panic(r)
		}
	}()

	if err := fn(t); err != nil {
		t.Abort()
		return nil, err
	}
	return t.Commit()
}

// SetState replaces the active version wholesale, e.g. after decoding an
// export. Listeners receive a full-redraw update.
func (e *Editor) SetState(s *version.State) error {
	e.mu.Lock()
	if e.txn != nil {
		e.mu.Unlock()
		return newOpError("set state", node.NoKey, ErrTransactionAlreadyOpen)
	}
	if s.ID() < e.nextID {
		s = version.FromState(e.nextID, s)
	}
	prev := e.current
	e.current = s
	e.nextID = s.ID() + 1
	e.composition = node.NoKey
	e.mu.Unlock()

	e.store.Add(s)
	e.log.Info("state replaced with version %d (%d nodes)", s.ID(), s.Len())
	e.notify(&Update{
		State:         s,
		Prev:          prev,
		DirtyElements: map[node.Key]bool{},
		DirtyLeaves:   map[node.Key]struct{}{},
		Full:          true,
	})
	return nil
}

// finish is called by a transaction leaving the open phase. A nil state
// means the transaction aborted.
func (e *Editor) finish(t *Txn, s *version.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.txn != t {
		return
	}
	e.txn = nil
	if s != nil {
		e.current = s
		e.nextID = s.ID() + 1
		e.composition = t.composition
	}
}

// peekNextID returns the ID the next commit will carry.
func (e *Editor) peekNextID() version.ID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nextID
}

// OnUpdate registers fn to run after every commit, in registration order.
// The returned function unregisters it.
func (e *Editor) OnUpdate(fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextListenerID++
	id := e.nextListenerID
	e.listeners = append(e.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

func (e *Editor) notify(u *Update) {
	e.mu.RLock()
	ls := make([]listenerEntry, len(e.listeners))
	copy(ls, e.listeners)
	e.mu.RUnlock()

	for _, l := range ls {
		l.fn(u)
	}
}

// ============================================================================
// Retention
// ============================================================================

// Version returns a retained committed version by ID.
func (e *Editor) Version(id version.ID) (*version.State, error) {
	if s, ok := e.store.Get(id); ok {
		return s, nil
	}
	return nil, newOpError("version", node.NoKey, ErrVersionNotFound)
}

// Revisions returns the retained window in commit order.
func (e *Editor) Revisions() []*tracking.Revision {
	return e.store.Revisions()
}

// Changes returns the records that differ between two retained versions.
func (e *Editor) Changes(from, to version.ID) ([]tracking.Change, error) {
	changes, err := e.store.Changes(from, to)
	if err != nil {
		return nil, newOpError("changes", node.NoKey, fmt.Errorf("%w: %w", ErrVersionNotFound, err))
	}
	return changes, nil
}

// Pin keeps the active version alive under name.
func (e *Editor) Pin(name string) *version.State {
	s := e.State()
	e.store.Pin(name, s)
	return s
}

// Pinned returns the version pinned under name.
func (e *Editor) Pinned(name string) (*version.State, error) {
	p, err := e.store.Pinned(name)
	if err != nil {
		return nil, err
	}
	return p.State(), nil
}

// Unpin releases a pin.
func (e *Editor) Unpin(name string) error {
	return e.store.Unpin(name)
}

// PinNames returns the pin names in sorted order.
func (e *Editor) PinNames() []string {
	return e.store.PinNames()
}
