package document

import (
	"runtime"
	"weak"
)

// Phase orders observers relative to each other.
type Phase uint8

const (
	// PhasePosition observers are notified before any listener.
	PhasePosition Phase = iota
	// PhaseListener is the default phase.
	PhaseListener
)

// ObserveOption configures a registration.
type ObserveOption func(*observer)

// WithPhase sets the phase an observer is notified in.
func WithPhase(p Phase) ObserveOption {
	return func(o *observer) {
		o.phase = p
	}
}

type observer struct {
	id    uint64
	phase Phase
	// deliver returns false once the observer's target has been collected.
	deliver func(Event) bool
}

// Subscription is returned by Observe and ObserveWeak.
type Subscription struct {
	id  uint64
	doc weak.Pointer[Document]
}

// Unsubscribe removes the observer. Safe to call more than once and after
// the document has been collected.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	if d := s.doc.Value(); d != nil {
		d.unsubscribe(s.id)
	}
}

// Observe registers l for every mutation. The document holds l strongly
// until the subscription is removed.
func (d *Document) Observe(l Listener, opts ...ObserveOption) *Subscription {
	return d.register(func(ev Event) bool {
		dispatch(l, ev)
		return true
	}, opts)
}

// ObserveWeak registers fn to be called with target for every mutation
// without keeping target reachable. When target is collected the
// registration is removed.
func ObserveWeak[T any](d *Document, target *T, fn func(*T, Event), opts ...ObserveOption) *Subscription {
	wp := weak.Make(target)
	sub := d.register(func(ev Event) bool {
		t := wp.Value()
		if t == nil {
			return false
		}
		fn(t, ev)
		return true
	}, opts)
	runtime.AddCleanup(target, func(s *Subscription) { s.Unsubscribe() }, sub)
	return sub
}

// ObserverCount returns the number of registered observers, including
// weak observers whose targets have not been pruned yet.
func (d *Document) ObserverCount() int {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	return len(d.observers)
}

func (d *Document) register(deliver func(Event) bool, opts []ObserveOption) *Subscription {
	o := observer{phase: PhaseListener, deliver: deliver}
	for _, opt := range opts {
		opt(&o)
	}

	d.obsMu.Lock()
	d.nextID++
	o.id = d.nextID
	d.observers = append(d.observers, o)
	d.obsMu.Unlock()

	return &Subscription{id: o.id, doc: weak.Make(d)}
}

func (d *Document) unsubscribe(id uint64) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()

	for i, o := range d.observers {
		if o.id == id {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			return
		}
	}
}

// fire delivers ev to position observers, then to listeners, in
// registration order within each phase.
func (d *Document) fire(ev Event) {
	d.obsMu.Lock()
	snapshot := make([]observer, 0, len(d.observers))
	for _, phase := range []Phase{PhasePosition, PhaseListener} {
		for _, o := range d.observers {
			if o.phase == phase {
				snapshot = append(snapshot, o)
			}
		}
	}
	d.obsMu.Unlock()

	d.notifying.Store(true)
	defer d.notifying.Store(false)

	var dead []uint64
	for _, o := range snapshot {
		if !o.deliver(ev) {
			dead = append(dead, o.id)
		}
	}

	if len(dead) > 0 {
		for _, id := range dead {
			d.unsubscribe(id)
		}
		d.logger.Debug("pruned %d collected observers", len(dead))
	}
}
