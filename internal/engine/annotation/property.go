package annotation

import (
	"sync"
)

// Property names used in change notifications.
const (
	PropAnnotationCount  = "annotationCount"
	PropDeleted          = "deleted"
	PropMoveToFront      = "moveToFront"
	PropShortDescription = "shortDescription"
	PropLineNumber       = "lineNumber"
)

// PropertyChange describes a change of a named property.
type PropertyChange struct {
	// Source is the *Annotatable or *Annotation that changed.
	Source any

	// Name is one of the Prop constants.
	Name string

	// OldValue is the previous value. Nil for moveToFront.
	OldValue any

	// NewValue is the new value. Nil for moveToFront.
	NewValue any
}

// PropertyListener is called when a property changes.
type PropertyListener func(change PropertyChange)

// Subscription represents a registered property listener.
type Subscription struct {
	id  uint64
	reg *registry
}

// Unsubscribe removes the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.reg != nil {
		s.reg.unsubscribe(s.id)
	}
}

type entry struct {
	id       uint64
	listener PropertyListener
}

// registry holds property listeners in subscription order.
type registry struct {
	mu        sync.RWMutex
	listeners []entry
	nextID    uint64
}

func (r *registry) subscribe(l PropertyListener) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.listeners = append(r.listeners, entry{id: r.nextID, listener: l})
	return &Subscription{id: r.nextID, reg: r}
}

func (r *registry) unsubscribe(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.listeners {
		if e.id == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// fire delivers change without holding the lock.
func (r *registry) fire(change PropertyChange) {
	r.mu.RLock()
	listeners := make([]PropertyListener, len(r.listeners))
	for i, e := range r.listeners {
		listeners[i] = e.listener
	}
	r.mu.RUnlock()

	for _, l := range listeners {
		l(change)
	}
}
