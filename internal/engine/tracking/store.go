package tracking

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dshills/inkwell/internal/engine/version"
)

// DefaultMaxRevisions is the default retention window.
const DefaultMaxRevisions = 100

// Errors returned by the store.
var (
	// ErrPinNotFound is returned for an unknown pin name.
	ErrPinNotFound = errors.New("pin not found")

	// ErrRevisionNotFound is returned for a version outside the window
	// that no pin holds.
	ErrRevisionNotFound = errors.New("revision not found")
)

// Revision is a retained committed version.
type Revision struct {
	// Timestamp is when the version was committed.
	Timestamp time.Time

	state *version.State
}

// ID returns the version ID.
func (r *Revision) ID() version.ID { return r.state.ID() }

// State returns the retained version.
func (r *Revision) State() *version.State { return r.state }

// Pin is a named reference that keeps a version alive.
type Pin struct {
	Name      string
	Timestamp time.Time
	state     *version.State
}

// State returns the pinned version.
func (p *Pin) State() *version.State { return p.state }

// Age returns how long ago the pin was created.
func (p *Pin) Age() time.Duration { return time.Since(p.Timestamp) }

// Store is a bounded collection of versions. All operations are
// thread-safe.
type Store struct {
	mu         sync.RWMutex
	revisions  map[version.ID]*Revision
	pins       map[string]*Pin
	maxEntries int
}

// NewStore returns a store retaining at most maxEntries versions outside
// pins. Non-positive values select DefaultMaxRevisions.
func NewStore(maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxRevisions
	}
	return &Store{
		revisions:  make(map[version.ID]*Revision),
		pins:       make(map[string]*Pin),
		maxEntries: maxEntries,
	}
}

// Add retains s, evicting the oldest versions beyond the window.
func (st *Store) Add(s *version.State) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.revisions[s.ID()] = &Revision{Timestamp: time.Now(), state: s}
	st.cleanup()
}

// cleanup removes oldest revisions to stay within capacity (must hold lock).
func (st *Store) cleanup() {
	if len(st.revisions) <= st.maxEntries {
		return
	}
	ids := make([]version.ID, 0, len(st.revisions))
	for id := range st.revisions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids[:len(ids)-st.maxEntries] {
		delete(st.revisions, id)
	}
}

// Get returns the version with the given ID from the window or from a pin.
func (st *Store) Get(id version.ID) (*version.State, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if rev, ok := st.revisions[id]; ok {
		return rev.state, true
	}
	for _, p := range st.pins {
		if p.state.ID() == id {
			return p.state, true
		}
	}
	return nil, false
}

// Revisions returns the retained window in commit order.
func (st *Store) Revisions() []*Revision {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Revision, 0, len(st.revisions))
	for _, r := range st.revisions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of versions in the window.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.revisions)
}

// Pin keeps s alive under name, replacing any pin with the same name.
func (st *Store) Pin(name string, s *version.State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.pins[name] = &Pin{Name: name, Timestamp: time.Now(), state: s}
}

// Pinned returns the pin with the given name.
func (st *Store) Pinned(name string) (*Pin, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	p, ok := st.pins[name]
	if !ok {
		return nil, ErrPinNotFound
	}
	return p, nil
}

// Unpin drops a pin.
func (st *Store) Unpin(name string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.pins[name]; !ok {
		return ErrPinNotFound
	}
	delete(st.pins, name)
	return nil
}

// PinNames returns pin names sorted.
func (st *Store) PinNames() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	names := make([]string, 0, len(st.pins))
	for n := range st.pins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

