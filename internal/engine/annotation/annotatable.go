package annotation

import (
	"slices"
	"sync"
)

// Hooks let the owner of an Annotatable react to attachment changes.
type Hooks struct {
	// OnAttached is called after an annotation was attached.
	OnAttached func(a *Annotation)
	// OnDetached is called after an annotation was detached.
	OnDetached func(a *Annotation)
}

// Option configures an Annotatable.
type Option func(*Annotatable)

// WithHooks sets attachment hooks.
func WithHooks(h Hooks) Option {
	return func(x *Annotatable) {
		x.hooks = h
	}
}

// Annotatable is a deletable object that annotations can be attached to.
//
// The attached set has its own lock, so annotations may be attached from
// background goroutines while another goroutine takes snapshots.
type Annotatable struct {
	mu          sync.Mutex
	annotations []*Annotation
	deleted     bool

	hooks Hooks
	props registry
}

// NewAnnotatable creates an empty, live Annotatable.
func NewAnnotatable(opts ...Option) *Annotatable {
	x := &Annotatable{}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// AnnotationCount returns the number of attached annotations.
func (x *Annotatable) AnnotationCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.annotations)
}

// Annotations returns a snapshot of the attached annotations in attach
// order.
func (x *Annotatable) Annotations() []*Annotation {
	x.mu.Lock()
	defer x.mu.Unlock()
	return slices.Clone(x.annotations)
}

// IsDeleted reports whether the underlying content was destroyed.
func (x *Annotatable) IsDeleted() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.deleted
}

// SetDeleted sets the deleted flag. A deleted change is fired only when the
// value actually changes.
func (x *Annotatable) SetDeleted(deleted bool) {
	x.mu.Lock()
	old := x.deleted
	x.deleted = deleted
	x.mu.Unlock()

	if old != deleted {
		x.FirePropertyChange(PropDeleted, old, deleted)
	}
}

// AddPropertyListener registers l for property changes.
func (x *Annotatable) AddPropertyListener(l PropertyListener) *Subscription {
	return x.props.subscribe(l)
}

// FirePropertyChange notifies property listeners.
func (x *Annotatable) FirePropertyChange(name string, oldValue, newValue any) {
	x.props.fire(PropertyChange{Source: x, Name: name, OldValue: oldValue, NewValue: newValue})
}

func (x *Annotatable) addAnnotation(a *Annotation) {
	x.mu.Lock()
	if slices.Contains(x.annotations, a) {
		x.mu.Unlock()
		return
	}
	old := len(x.annotations)
	x.annotations = append(x.annotations, a)
	x.mu.Unlock()

	x.FirePropertyChange(PropAnnotationCount, old, old+1)
	if x.hooks.OnAttached != nil {
		x.hooks.OnAttached(a)
	}
}

// removeAnnotation fires nothing when a is not attached.
func (x *Annotatable) removeAnnotation(a *Annotation) {
	x.mu.Lock()
	i := slices.Index(x.annotations, a)
	if i < 0 {
		x.mu.Unlock()
		return
	}
	old := len(x.annotations)
	x.annotations = slices.Delete(x.annotations, i, i+1)
	x.mu.Unlock()

	x.FirePropertyChange(PropAnnotationCount, old, old-1)
	if x.hooks.OnDetached != nil {
		x.hooks.OnDetached(a)
	}
}
