// Package lines provides Line handles that keep their identity while the
// document around them changes.
//
// A Set hands out at most one Line per current line number. Each Line
// follows its content with a forward-bias position, is renumbered when lines
// are inserted or removed above it, and is marked deleted when its line is
// merged into the previous one. Annotations attached to a Line are notified
// of every renumbering.
package lines

import (
	"errors"
	"sort"
	"sync"
	"weak"

	"github.com/dshills/linekeeper/internal/engine/annotation"
	"github.com/dshills/linekeeper/internal/engine/document"
	"github.com/dshills/linekeeper/internal/engine/position"
	"github.com/dshills/linekeeper/internal/engine/tracking"
	"github.com/dshills/linekeeper/internal/logging"
)

// Errors returned by Set.
var (
	ErrLineOutOfRange   = document.ErrLineOutOfRange
	ErrDocumentReleased = errors.New("document released")
	ErrLineDeleted      = errors.New("line deleted")
)

// Option configures a Set.
type Option func(*Set)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Set) {
		if l != nil {
			s.logger = l.WithComponent("lines")
		}
	}
}

// Set is the line-set view of a document. It implements tracking.LineSet.
type Set struct {
	doc        weak.Pointer[document.Document]
	translator *tracking.Translator
	logger     *logging.Logger

	mu         sync.Mutex
	lines      map[int]*Line
	byOriginal map[int]*Line
}

var _ tracking.LineSet = (*Set)(nil)

// NewSet creates a view of doc. Original line numbers are resolved through
// translator.
func NewSet(doc *document.Document, translator *tracking.Translator, opts ...Option) *Set {
	s := &Set{
		doc:        weak.Make(doc),
		translator: translator,
		logger:     logging.Nop(),
		lines:      make(map[int]*Line),
		byOriginal: make(map[int]*Line),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the handle for current line n, creating it if needed.
func (s *Set) Current(n int) (*Line, error) {
	doc := s.doc.Value()
	if doc == nil {
		return nil, ErrDocumentReleased
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.lines[n]; ok {
		return l, nil
	}
	start, err := doc.LineStart(n)
	if err != nil {
		return nil, ErrLineOutOfRange
	}

	// The lower half of a split maps to the same original line as the
	// upper half, which already owns it.
	original := s.translator.Convert(n, false)
	if _, owned := s.byOriginal[original]; owned {
		original = tracking.Unresolved
	}

	l := &Line{
		set:       s,
		pos:       position.NewForward(doc, start),
		number:    n,
		original:  original,
		prevStart: start,
	}
	l.Annotatable = annotation.NewAnnotatable(annotation.WithHooks(annotation.Hooks{
		OnAttached: func(a *annotation.Annotation) { a.SetInDocument(true) },
		OnDetached: func(a *annotation.Annotation) { a.SetInDocument(false) },
	}))
	s.lines[n] = l
	if original != tracking.Unresolved {
		s.byOriginal[original] = l
	}
	return l, nil
}

// Original returns the handle for the line that was number n when the
// translator was created.
func (s *Set) Original(n int) (*Line, error) {
	cur := s.CurrentLine(n)
	if cur == tracking.Unresolved {
		return nil, ErrLineDeleted
	}
	return s.Current(cur)
}

// OriginalNumber returns l's original line number, or tracking.Unresolved
// for lines inserted after the baseline.
func (s *Set) OriginalNumber(l *Line) int {
	if l.IsDeleted() {
		return tracking.Unresolved
	}
	return l.original
}

// OriginalLine returns the original number of current line n. A live
// handle's own identity wins over the translator.
func (s *Set) OriginalLine(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.lines[n]; ok {
		return l.original
	}
	original := s.translator.Convert(n, false)
	if _, owned := s.byOriginal[original]; owned {
		return tracking.Unresolved
	}
	return original
}

// CurrentLine returns the current number of original line n, or
// tracking.Unresolved if that line is gone.
func (s *Set) CurrentLine(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.byOriginal[n]; ok {
		return l.number
	}
	cur := s.translator.Convert(n, true)
	if cur == tracking.Unresolved {
		return tracking.Unresolved
	}
	if l, ok := s.lines[cur]; ok && l.original != n {
		return tracking.Unresolved
	}
	return cur
}

// forgetLocked drops a deleted handle from the original index.
func (s *Set) forgetLocked(l *Line) {
	if s.byOriginal[l.original] == l {
		delete(s.byOriginal, l.original)
	}
}

// Lines returns the live handles ordered by line number.
func (s *Set) Lines() []*Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Line, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].number < out[j].number })
	return out
}

// Len returns the number of live handles.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// LinesChanged implements tracking.LineSet. On a removal, handles whose line
// start was inside the removed range lost their line and are marked deleted.
func (s *Set) LinesChanged(first, last int, cause document.Event) {
	doc := s.doc.Value()
	if doc == nil {
		return
	}

	var deleted []*Line
	s.mu.Lock()
	if cause.Type == document.EventRemove {
		for n, l := range s.lines {
			if l.prevStart > cause.Offset && l.prevStart <= cause.End() {
				deleted = append(deleted, l)
				delete(s.lines, n)
				s.forgetLocked(l)
			}
		}
	}
	for _, l := range s.lines {
		l.prevStart = lineStartOf(doc, l.pos.Offset())
	}
	s.mu.Unlock()

	for _, l := range deleted {
		s.logger.Debug("line %d deleted by %s", l.Number(), cause)
		l.SetDeleted(true)
	}
}

// LinesMoved implements tracking.LineSet. Handles at or after first are
// renumbered from their positions.
func (s *Set) LinesMoved(first, lineCountAfter int) {
	doc := s.doc.Value()
	if doc == nil {
		return
	}

	type move struct {
		line     *Line
		old, new int
	}
	var moves []move
	var collided []*Line

	s.mu.Lock()
	handles := make([]*Line, 0, len(s.lines))
	for _, l := range s.lines {
		handles = append(handles, l)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].number < handles[j].number })

	lines := make(map[int]*Line, len(handles))
	for _, l := range handles {
		n := l.number
		if n >= first {
			n = min(doc.LineIndex(l.pos.Offset()), lineCountAfter-1)
		}
		if _, taken := lines[n]; taken {
			collided = append(collided, l)
			s.forgetLocked(l)
			continue
		}
		if n != l.number {
			moves = append(moves, move{l, l.number, n})
			l.number = n
		}
		lines[n] = l
	}
	s.lines = lines
	s.mu.Unlock()

	for _, l := range collided {
		l.SetDeleted(true)
	}
	for _, m := range moves {
		m.line.FirePropertyChange(annotation.PropLineNumber, m.old, m.new)
		for _, a := range m.line.Annotations() {
			a.FirePropertyChange(annotation.PropLineNumber, m.old, m.new)
		}
	}
	if len(moves) > 0 {
		s.logger.Debug("renumbered %d lines from %d", len(moves), first)
	}
}

func lineStartOf(doc *document.Document, offset int) int {
	start, _ := doc.LineStart(doc.LineIndex(offset))
	return start
}
