// Package annotation provides the attachment model for markers that hang off
// lines or other annotatable content.
//
// An Annotation is attached to at most one Annotatable at a time. Moving it
// to another Annotatable detaches it from the old one first, so listeners
// always see a count change on the old parent before the count change on the
// new one.
package annotation

import (
	"sync"
	"weak"

	"github.com/google/uuid"
)

// Annotation is a marker attachable to an Annotatable.
type Annotation struct {
	id   uuid.UUID
	kind string

	// opMu serializes Attach and Detach.
	opMu sync.Mutex

	mu          sync.Mutex
	description string
	parent      weak.Pointer[Annotatable]
	inDocument  bool

	props registry
}

// New creates a detached annotation.
func New(kind, description string) *Annotation {
	return &Annotation{
		id:          uuid.New(),
		kind:        kind,
		description: description,
	}
}

// ID returns the annotation's unique ID.
func (a *Annotation) ID() uuid.UUID {
	return a.id
}

// Kind returns the annotation kind, e.g. "breakpoint".
func (a *Annotation) Kind() string {
	return a.kind
}

// Description returns the short description.
func (a *Annotation) Description() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.description
}

// SetDescription changes the short description.
func (a *Annotation) SetDescription(desc string) {
	a.mu.Lock()
	old := a.description
	a.description = desc
	a.mu.Unlock()

	if old != desc {
		a.FirePropertyChange(PropShortDescription, old, desc)
	}
}

// Attached returns the current parent, or nil.
func (a *Annotation) Attached() *Annotatable {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.parent.Value()
}

// Attach attaches a to x, detaching it from its current parent first.
// Attaching to the current parent does nothing.
func (a *Annotation) Attach(x *Annotatable) {
	if x == nil {
		a.Detach()
		return
	}

	a.opMu.Lock()
	defer a.opMu.Unlock()

	cur := a.Attached()
	if cur == x {
		return
	}
	if cur != nil {
		a.detachFrom(cur)
	}

	a.mu.Lock()
	a.parent = weak.Make(x)
	a.mu.Unlock()
	x.addAnnotation(a)
}

// Detach detaches a from its parent. Does nothing when not attached.
func (a *Annotation) Detach() {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	if cur := a.Attached(); cur != nil {
		a.detachFrom(cur)
	}
}

func (a *Annotation) detachFrom(x *Annotatable) {
	a.mu.Lock()
	a.parent = weak.Pointer[Annotatable]{}
	a.mu.Unlock()
	x.removeAnnotation(a)
}

// MoveToFront asks views to show a above other annotations on its parent.
func (a *Annotation) MoveToFront() {
	a.FirePropertyChange(PropMoveToFront, nil, nil)
	if x := a.Attached(); x != nil {
		x.FirePropertyChange(PropMoveToFront, nil, nil)
	}
}

// InDocument reports whether a session has materialized a.
func (a *Annotation) InDocument() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inDocument
}

// SetInDocument sets the in-document flag.
func (a *Annotation) SetInDocument(in bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inDocument = in
}

// AddPropertyListener registers l for property changes of a.
func (a *Annotation) AddPropertyListener(l PropertyListener) *Subscription {
	return a.props.subscribe(l)
}

// FirePropertyChange notifies a's property listeners.
func (a *Annotation) FirePropertyChange(name string, oldValue, newValue any) {
	a.props.fire(PropertyChange{Source: a, Name: name, OldValue: oldValue, NewValue: newValue})
}
