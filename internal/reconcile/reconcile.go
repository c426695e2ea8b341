// Package reconcile keeps a renderer's views in step with an editor.
//
// A Reconciler listens for committed updates and, for each dirty key,
// calls the node.Binding registered for that key's variant: Create for a
// key it has no view for, Update for one it has. Views of keys that were
// removed or detached are dropped. A full update (after Editor.SetState)
// walks the whole new version instead of the dirty set.
//
// The reconciler only decides which binding calls to make. What a view is
// belongs to the binding.
package reconcile

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/inkwell/internal/engine"
	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/version"
	"github.com/dshills/inkwell/internal/logging"
)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// Reconciler maps node keys to renderer views.
type Reconciler struct {
	mu       sync.Mutex
	registry *node.Registry
	log      *logging.Logger
	views    map[node.Key]any

	// Stats (atomic so Stats does not need the lock)
	created atomic.Uint64
	updated atomic.Uint64
	dropped atomic.Uint64
	skipped atomic.Uint64
}

// New creates a reconciler that looks bindings up in reg.
func New(reg *node.Registry, opts ...Option) *Reconciler {
	r := &Reconciler{
		registry: reg,
		log:      logging.Discard(),
		views:    make(map[node.Key]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithComponent("reconcile")
	return r
}

// Attach subscribes r to e's updates and builds views for e's current
// version. The returned function unsubscribes.
func (r *Reconciler) Attach(e *engine.Editor) func() {
	cur := e.State()
	r.Apply(&engine.Update{State: cur, Prev: cur, Full: true})
	return e.OnUpdate(r.Apply)
}

// Apply brings the views in line with u.
func (r *Reconciler) Apply(u *engine.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.counts()
	if u.Full {
		r.rebuild(u)
	} else {
		rd := engine.NewReader(u.State)
		for _, k := range u.Dirty().Keys() {
			r.reconcile(rd, u.Prev, k)
		}
		for _, k := range u.Removed {
			r.drop(k)
		}
	}
	after := r.counts()
	r.log.Debug("version %d: %d created, %d updated, %d dropped, %d views",
		u.State.ID(), after[0]-before[0], after[1]-before[1], after[2]-before[2], len(r.views))
}

func (r *Reconciler) rebuild(u *engine.Update) {
	rd := engine.NewReader(u.State)
	for k := range r.views {
		if !rd.IsAttached(k) {
			r.drop(k)
		}
	}
	for _, k := range u.State.Keys() {
		r.reconcile(rd, u.Prev, k)
	}
}

// reconcile runs the binding for one key.
func (r *Reconciler) reconcile(rd engine.Reader, prev *version.State, k node.Key) {
	n, ok := rd.Get(k)
	if !ok || !rd.IsAttached(k) {
		r.drop(k)
		return
	}
	v, ok := r.registry.Lookup(n.Type())
	if !ok || v.Binding == nil {
		r.skipped.Add(1)
		return
	}

	view, exists := r.views[k]
	var old node.Node
	if prev != nil {
		old, _ = prev.Get(k)
	}
	switch {
	case !exists || old == nil:
		r.views[k] = v.Binding.Create(n)
		r.created.Add(1)
	case old != n:
		r.views[k] = v.Binding.Update(old, n, view)
		r.updated.Add(1)
	}
}

func (r *Reconciler) drop(k node.Key) {
	if _, ok := r.views[k]; ok {
		delete(r.views, k)
		r.dropped.Add(1)
	}
}

func (r *Reconciler) counts() [3]uint64 {
	return [3]uint64{r.created.Load(), r.updated.Load(), r.dropped.Load()}
}

// View returns the view held for k.
func (r *Reconciler) View(k node.Key) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[k]
	return v, ok
}

// Keys returns the keys that have a view, sorted.
func (r *Reconciler) Keys() []node.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]node.Key, 0, len(r.views))
	for k := range r.views {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of views held.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Stats holds cumulative binding call counts.
type Stats struct {
	Created uint64
	Updated uint64
	Dropped uint64
	// Skipped counts dirty keys whose variant has no binding.
	Skipped uint64
}

// Stats returns the counters accumulated since New.
func (r *Reconciler) Stats() Stats {
	return Stats{
		Created: r.created.Load(),
		Updated: r.updated.Load(),
		Dropped: r.dropped.Load(),
		Skipped: r.skipped.Load(),
	}
}
