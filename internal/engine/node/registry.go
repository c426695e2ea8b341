package node

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ErrVariantMismatch is returned when a node's Go type does not match the
// prototype registered for its type tag.
var ErrVariantMismatch = errors.New("node variant does not match registration")

// ErrUnknownType is returned for a type tag with no registration.
var ErrUnknownType = errors.New("unknown node type")

// Binding materializes nodes of one variant for a renderer. The engine
// never calls it; the reconcile layer does, once per dirty key per commit.
type Binding interface {
	// Create materializes n and returns the renderer's representation.
	Create(n Node) any
	// Update patches view, previously created for prev, to reflect next.
	// It returns the view to keep, which may be a new one.
	Update(prev, next Node, view any) any
}

// Variant is one registration in a Registry.
type Variant struct {
	Type    Type
	Binding Binding
	goType  reflect.Type
}

// New returns a fresh, unkeyed zero record of the variant.
func (v *Variant) New() Node {
	return reflect.New(v.goType.Elem()).Interface().(Node)
}

// Registry maps type tags to variants. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	variants map[Type]*Variant
}

// NewRegistry returns a registry holding the built-in variants.
func NewRegistry() *Registry {
	r := &Registry{variants: make(map[Type]*Variant)}
	for _, proto := range []Node{
		&Root{}, &Paragraph{}, &Inline{}, &Text{}, &LineBreak{}, &Decorator{},
	} {
		// Built-ins are distinct pointer types; registration cannot fail.
		_ = r.Register(proto, nil)
	}
	return r
}

// Register adds or replaces the variant whose tag is proto.Type(). Binding
// may be nil.
func (r *Registry) Register(proto Node, b Binding) error {
	t := reflect.TypeOf(proto)
	if t == nil || t.Kind() != reflect.Pointer {
		return fmt.Errorf("register %T: prototype must be a pointer", proto)
	}
	tag := proto.Type()
	if tag == "" {
		return fmt.Errorf("register %T: empty type tag", proto)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[tag] = &Variant{Type: tag, Binding: b, goType: t}
	return nil
}

// SetBinding attaches a renderer binding to a registered variant.
func (r *Registry) SetBinding(tag Type, b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.variants[tag]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, tag)
	}
	v.Binding = b
	return nil
}

// Lookup returns the variant registered for tag.
func (r *Registry) Lookup(tag Type) (*Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[tag]
	return v, ok
}

// Check verifies that n is an instance of the variant registered for its
// tag.
func (r *Registry) Check(n Node) error {
	v, ok := r.Lookup(n.Type())
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, n.Type())
	}
	if reflect.TypeOf(n) != v.goType {
		return fmt.Errorf("%w: %s registered as %v, got %T", ErrVariantMismatch, v.Type, v.goType, n)
	}
	return nil
}

// Types returns the registered tags in sorted order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.variants))
	for t := range r.variants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
