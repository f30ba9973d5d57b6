package document

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dshills/linekeeper/internal/logging"
)

// Errors returned by document operations.
var (
	ErrOffsetOutOfRange       = errors.New("offset out of range")
	ErrRangeInvalid           = errors.New("invalid range")
	ErrLineOutOfRange         = errors.New("line out of range")
	ErrMutationInNotification = errors.New("document mutated during notification")
)

// Document is a mutable text with a line root element and an ordered
// mutation channel.
type Document struct {
	mu         sync.RWMutex
	text       string
	lineStarts []int // lineStarts[i] is the offset line i begins at
	revision   RevisionID

	obsMu     sync.Mutex
	observers []observer
	nextID    uint64
	notifying atomic.Bool

	guard  func() error
	logger *logging.Logger
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger used for debug output.
func WithLogger(l *logging.Logger) Option {
	return func(d *Document) {
		if l != nil {
			d.logger = l.WithComponent("document")
		}
	}
}

// WithWriteGuard sets a check run before every mutation. A non-nil error
// refuses the mutation and is returned unchanged.
func WithWriteGuard(guard func() error) Option {
	return func(d *Document) {
		d.guard = guard
	}
}

// New creates an empty document.
func New(opts ...Option) *Document {
	d := &Document{
		lineStarts: []int{0},
		revision:   NewRevisionID(),
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewFromString creates a document with initial content. No events are
// fired for the initial content.
func NewFromString(s string, opts ...Option) *Document {
	d := New(opts...)
	d.text = s
	d.lineStarts = computeLineStarts(s)
	return d
}

func computeLineStarts(s string) []int {
	starts := make([]int, 1, strings.Count(s, "\n")+1)
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// Read operations

// Text returns the full content.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Len returns the content length in bytes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.text)
}

// TextRange returns the text in [start, end).
func (d *Document) TextRange(start, end int) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if start < 0 || start > end || end > len(d.text) {
		return "", ErrRangeInvalid
	}
	return d.text[start:end], nil
}

// Revision returns the revision of the current content.
func (d *Document) Revision() RevisionID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

// LineCount returns the number of children of the line root element. An
// empty document has one line; a trailing newline starts a new, empty line.
func (d *Document) LineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.lineStarts)
}

// LineIndex returns the line containing offset. Offsets outside the
// document are clamped.
func (d *Document) LineIndex(offset int) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lineIndexLocked(offset)
}

func (d *Document) lineIndexLocked(offset int) int {
	if offset <= 0 {
		return 0
	}
	if offset > len(d.text) {
		offset = len(d.text)
	}
	return sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > offset
	}) - 1
}

// LineStart returns the offset line begins at.
func (d *Document) LineStart(line int) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if line < 0 || line >= len(d.lineStarts) {
		return 0, ErrLineOutOfRange
	}
	return d.lineStarts[line], nil
}

// LineEnd returns the offset just before line's terminating newline, or
// the document length for the last line.
func (d *Document) LineEnd(line int) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if line < 0 || line >= len(d.lineStarts) {
		return 0, ErrLineOutOfRange
	}
	return d.lineEndLocked(line), nil
}

func (d *Document) lineEndLocked(line int) int {
	if line+1 < len(d.lineStarts) {
		return d.lineStarts[line+1] - 1
	}
	return len(d.text)
}

// LineText returns the text of line without its newline.
func (d *Document) LineText(line int) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if line < 0 || line >= len(d.lineStarts) {
		return "", ErrLineOutOfRange
	}
	return d.text[d.lineStarts[line]:d.lineEndLocked(line)], nil
}

// Write operations

// Insert inserts text at offset and notifies observers.
func (d *Document) Insert(offset int, text string) error {
	if text == "" {
		return nil
	}
	if d.notifying.Load() {
		return ErrMutationInNotification
	}
	if err := d.checkGuard(); err != nil {
		return err
	}

	d.mu.Lock()
	if offset < 0 || offset > len(d.text) {
		d.mu.Unlock()
		return ErrOffsetOutOfRange
	}
	d.insertLocked(offset, text)
	rev := NewRevisionID()
	d.revision = rev
	d.mu.Unlock()

	d.logger.Debug("insert %d bytes at %d", len(text), offset)
	d.fire(Event{Type: EventInsert, Offset: offset, Length: len(text), Text: text, Revision: rev})
	return nil
}

// Remove removes length bytes at offset and notifies observers.
func (d *Document) Remove(offset, length int) error {
	if length == 0 {
		return nil
	}
	if d.notifying.Load() {
		return ErrMutationInNotification
	}
	if err := d.checkGuard(); err != nil {
		return err
	}

	d.mu.Lock()
	if offset < 0 || length < 0 || offset+length > len(d.text) {
		d.mu.Unlock()
		return ErrRangeInvalid
	}
	removed := d.text[offset : offset+length]
	d.removeLocked(offset, length)
	rev := NewRevisionID()
	d.revision = rev
	d.mu.Unlock()

	d.logger.Debug("remove %d bytes at %d", length, offset)
	d.fire(Event{Type: EventRemove, Offset: offset, Length: length, Text: removed, Revision: rev})
	return nil
}

func (d *Document) checkGuard() error {
	if d.guard == nil {
		return nil
	}
	return d.guard()
}

// Replace removes length bytes at offset and inserts text in their place.
// Observers see a remove event followed by an insert event.
func (d *Document) Replace(offset, length int, text string) error {
	if err := d.Remove(offset, length); err != nil {
		return err
	}
	return d.Insert(offset, text)
}

func (d *Document) insertLocked(offset int, text string) {
	line := d.lineIndexLocked(offset)
	n := len(text)

	for i := line + 1; i < len(d.lineStarts); i++ {
		d.lineStarts[i] += n
	}

	var added []int
	for i := 0; i < n; i++ {
		if text[i] == '\n' {
			added = append(added, offset+i+1)
		}
	}
	if len(added) > 0 {
		tail := append(added, d.lineStarts[line+1:]...)
		d.lineStarts = append(d.lineStarts[:line+1], tail...)
	}

	d.text = d.text[:offset] + text + d.text[offset:]
}

func (d *Document) removeLocked(offset, length int) {
	end := offset + length
	kept := d.lineStarts[:0]
	for _, s := range d.lineStarts {
		switch {
		case s <= offset:
			kept = append(kept, s)
		case s <= end:
			// the newline before s was removed
		default:
			kept = append(kept, s-length)
		}
	}
	d.lineStarts = kept
	d.text = d.text[:offset] + d.text[end:]
}
