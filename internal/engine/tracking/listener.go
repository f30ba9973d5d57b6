package tracking

import (
	"sync"
	"weak"

	"github.com/dshills/linekeeper/internal/engine/document"
	"github.com/dshills/linekeeper/internal/logging"
)

// LineSet is notified about line structure changes.
type LineSet interface {
	// LinesChanged reports that lines first..last were touched by cause.
	LinesChanged(first, last int, cause document.Event)
	// LinesMoved reports that lines from first on were renumbered and the
	// document now has lineCountAfter lines.
	LinesMoved(first, lineCountAfter int)
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithLineSet sets the initial view.
func WithLineSet(view LineSet) ListenerOption {
	return func(l *Listener) {
		l.view = view
	}
}

// WithLogger sets the listener's logger.
func WithLogger(logger *logging.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger.WithComponent("tracking")
		}
	}
}

// Listener turns document mutations into line structure changes. It drives
// a Translator and forwards normalized notifications to a LineSet.
//
// The listener holds the document weakly and is itself observed weakly, so
// its owner must keep it reachable.
type Listener struct {
	doc        weak.Pointer[document.Document]
	translator *Translator
	sub        *document.Subscription
	logger     *logging.Logger

	mu        sync.Mutex
	view      LineSet
	lineCount int
}

// NewListener creates a listener for doc that records line changes in
// translator.
func NewListener(doc *document.Document, translator *Translator, opts ...ListenerOption) *Listener {
	l := &Listener{
		doc:        weak.Make(doc),
		translator: translator,
		logger:     logging.Nop(),
		lineCount:  doc.LineCount(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.sub = document.ObserveWeak(doc, l, (*Listener).handle)
	return l
}

// Translator returns the translator the listener drives.
func (l *Listener) Translator() *Translator {
	return l.translator
}

// SetLineSet replaces the view. A nil view disables notifications.
func (l *Listener) SetLineSet(view LineSet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.view = view
}

// LineCount returns the line count observed after the last event.
func (l *Listener) LineCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lineCount
}

// Close stops observing the document and drops the view.
func (l *Listener) Close() {
	l.sub.Unsubscribe()
	l.SetLineSet(nil)
}

func (l *Listener) handle(ev document.Event) {
	doc := l.doc.Value()
	if doc == nil {
		return
	}

	count := doc.LineCount()
	line := doc.LineIndex(ev.Offset)

	l.mu.Lock()
	delta := count - l.lineCount
	l.lineCount = count
	view := l.view
	l.mu.Unlock()

	switch {
	case delta > 0:
		l.translator.InsertLines(line, delta)
	case delta < 0:
		l.translator.DeleteLines(line, -delta)
	}
	if delta != 0 {
		l.logger.Debug("%s at line %d: delta %d, translator %s", ev.Type, line, delta, l.translator)
	}

	if view == nil {
		return
	}
	l.notify(func() { view.LinesChanged(line, line, ev) })
	if delta != 0 {
		l.notify(func() { view.LinesMoved(line, count) })
	}
}

func (l *Listener) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("line set panicked: %v", r)
		}
	}()
	fn()
}
