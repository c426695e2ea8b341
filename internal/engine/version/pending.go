package version

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/xiaq/persistent/hashmap"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/selection"
)

var (
	// ErrMissing is returned for a key absent from the pending mapping.
	ErrMissing = errors.New("key not present in version")

	// ErrBadClone is returned when a variant's Clone does not produce an
	// independent record of the same variant with the same key.
	ErrBadClone = errors.New("clone does not preserve node identity")
)

// Pending is the writable overlay of an open transaction.
type Pending struct {
	base  *State
	nodes hashmap.Map
	owned map[node.Key]struct{}
}

// NewPending starts an overlay on top of base.
func NewPending(base *State) *Pending {
	return &Pending{
		base:  base,
		nodes: base.nodes,
		owned: make(map[node.Key]struct{}),
	}
}

// Base returns the version the overlay started from.
func (p *Pending) Base() *State { return p.base }

// Get returns the latest record for k.
func (p *Pending) Get(k node.Key) (node.Node, bool) {
	return lookup(p.nodes, k)
}

// Has reports whether k is present.
func (p *Pending) Has(k node.Key) bool {
	_, ok := p.nodes.Index(k)
	return ok
}

// Owned reports whether the record for k already belongs to this
// transaction, either cloned or created in it.
func (p *Pending) Owned(k node.Key) bool {
	_, ok := p.owned[k]
	return ok
}

// OwnedCount returns how many keys this transaction owns.
func (p *Pending) OwnedCount() int { return len(p.owned) }

// Writable returns a record for k that may be mutated. The first call for a
// key clones the latest record; later calls return the same clone.
func (p *Pending) Writable(k node.Key) (node.Node, error) {
	cur, ok := lookup(p.nodes, k)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissing, k)
	}
	if _, done := p.owned[k]; done {
		return cur, nil
	}
	clone := cur.Clone()
	if err := checkClone(cur, clone); err != nil {
		return nil, err
	}
	p.nodes = p.nodes.Assoc(k, clone)
	p.owned[k] = struct{}{}
	return clone, nil
}

// Insert adds a record created in this transaction. The record is owned
// from the start and is never cloned again in this transaction.
func (p *Pending) Insert(n node.Node) {
	p.nodes = p.nodes.Assoc(n.Key(), n)
	p.owned[n.Key()] = struct{}{}
}

// Delete drops k from the mapping.
func (p *Pending) Delete(k node.Key) {
	p.nodes = p.nodes.Dissoc(k)
	delete(p.owned, k)
}

// Len returns the number of records.
func (p *Pending) Len() int { return p.nodes.Len() }

// Keys returns every key in sorted order.
func (p *Pending) Keys() []node.Key { return keys(p.nodes) }

// Freeze produces the immutable version. The overlay must not be used
// afterwards.
func (p *Pending) Freeze(id ID, sel *selection.Range) *State {
	s := &State{id: id, nodes: p.nodes, selection: sel.Clone()}
	p.owned = nil
	return s
}

func checkClone(orig, clone node.Node) error {
	switch {
	case clone == nil:
		return fmt.Errorf("%w: %T cloned to nil", ErrBadClone, orig)
	case reflect.TypeOf(clone) != reflect.TypeOf(orig):
		return fmt.Errorf("%w: %T cloned to %T", ErrBadClone, orig, clone)
	case clone.Type() != orig.Type() || clone.Key() != orig.Key():
		return fmt.Errorf("%w: %s/%s cloned to %s/%s", ErrBadClone, orig.Type(), orig.Key(), clone.Type(), clone.Key())
	case node.Links(clone) == node.Links(orig):
		return fmt.Errorf("%w: %T.Clone returned the receiver", ErrBadClone, orig)
	}
	return nil
}
