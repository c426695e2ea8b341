package tracking

import (
	"fmt"
	"sort"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/version"
)

// ChangeType categorizes a change to one record.
type ChangeType uint8

const (
	// ChangeAdded indicates the key exists only in the newer version.
	ChangeAdded ChangeType = iota

	// ChangeRemoved indicates the key exists only in the older version.
	ChangeRemoved

	// ChangeModified indicates the record was rewritten.
	ChangeModified
)

// String returns a human-readable representation of the change type.
func (ct ChangeType) String() string {
	switch ct {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeModified:
		return "modified"
	default:
		return "unknown"
	}
}

// Change describes what happened to one key between two versions.
type Change struct {
	Type ChangeType
	Key  node.Key

	// Old is the record in the older version (nil for additions).
	Old node.Node

	// New is the record in the newer version (nil for removals).
	New node.Node
}

// String returns a compact description such as "added 7 (text)".
func (c Change) String() string {
	n := c.New
	if n == nil {
		n = c.Old
	}
	return fmt.Sprintf("%s %s (%s)", c.Type, c.Key, n.Type())
}

// Diff returns the changes that turn older into newer, sorted by key. A
// record rewritten by a transaction counts as modified even if its fields
// ended up equal.
func Diff(older, newer *version.State) []Change {
	var out []Change
	newer.Each(func(n node.Node) bool {
		prev, ok := older.Get(n.Key())
		switch {
		case !ok:
			out = append(out, Change{Type: ChangeAdded, Key: n.Key(), New: n})
		case prev != n:
			out = append(out, Change{Type: ChangeModified, Key: n.Key(), Old: prev, New: n})
		}
		return true
	})
	older.Each(func(n node.Node) bool {
		if !newer.Has(n.Key()) {
			out = append(out, Change{Type: ChangeRemoved, Key: n.Key(), Old: n})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Changes returns the changes between two retained versions.
func (st *Store) Changes(from, to version.ID) ([]Change, error) {
	older, ok := st.Get(from)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRevisionNotFound, from)
	}
	newer, ok := st.Get(to)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRevisionNotFound, to)
	}
	return Diff(older, newer), nil
}
