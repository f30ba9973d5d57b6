package document

import (
	"fmt"
	"sync/atomic"
)

// RevisionID identifies the document state after a mutation.
type RevisionID uint64

var revisionCounter atomic.Uint64

// NewRevisionID returns a process-wide unique revision ID.
func NewRevisionID() RevisionID {
	return RevisionID(revisionCounter.Add(1))
}

// EventType distinguishes the two kinds of mutation notification.
type EventType uint8

const (
	// EventInsert reports that Text was inserted at Offset.
	EventInsert EventType = iota
	// EventRemove reports that Text was removed from Offset.
	EventRemove
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventInsert:
		return "insert"
	case EventRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event describes a single document mutation.
type Event struct {
	Type     EventType
	Offset   int
	Length   int
	Text     string // inserted or removed text
	Revision RevisionID
}

// End returns Offset+Length.
func (e Event) End() int {
	return e.Offset + e.Length
}

// String returns a short description of the event.
func (e Event) String() string {
	return fmt.Sprintf("%s(%d, %d)", e.Type, e.Offset, e.Length)
}

// Listener receives mutation notifications.
type Listener interface {
	InsertUpdate(ev Event)
	RemoveUpdate(ev Event)
}

// ListenerFunc adapts a function to Listener. The function receives both
// event types.
type ListenerFunc func(ev Event)

// InsertUpdate implements Listener.
func (f ListenerFunc) InsertUpdate(ev Event) { f(ev) }

// RemoveUpdate implements Listener.
func (f ListenerFunc) RemoveUpdate(ev Event) { f(ev) }

func dispatch(l Listener, ev Event) {
	if ev.Type == EventInsert {
		l.InsertUpdate(ev)
		return
	}
	l.RemoveUpdate(ev)
}
