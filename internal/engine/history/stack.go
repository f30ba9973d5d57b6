package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/dshills/linekeeper/internal/logging"
)

// DefaultLimit is the default maximum number of undo entries.
const DefaultLimit = 1000

// ModificationHandler is told when the document leaves or returns to the
// savepoint.
type ModificationHandler interface {
	// NotifyModified is called before the document leaves the savepoint.
	// A non-nil error vetoes the change.
	NotifyModified() error
	// NotifyUnmodified is called when the document is back at the
	// savepoint.
	NotifyUnmodified()
}

// OperationInfo provides read-only info about an undo entry.
type OperationInfo struct {
	Description string
	Timestamp   time.Time
	Significant bool
}

// undoEntry wraps an edit with metadata.
type undoEntry struct {
	edit      *SavepointWrapper
	timestamp time.Time
}

func (e *undoEntry) info() OperationInfo {
	return OperationInfo{
		Description: e.edit.Description(),
		Timestamp:   e.timestamp,
		Significant: e.edit.IsSignificant(),
	}
}

// savepoint is the state after edit, or the start of history when edit is
// nil. It is unreachable when valid is false.
type savepoint struct {
	edit  *SavepointWrapper
	valid bool
}

// Option configures a History.
type Option func(*History)

// WithLimit sets the maximum number of undo entries.
func WithLimit(limit int) Option {
	return func(h *History) {
		if limit > 0 {
			h.limit = limit
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(h *History) {
		if l != nil {
			h.logger = l.WithComponent("history")
		}
	}
}

// WithModificationHandler sets the handler told about savepoint crossings.
func WithModificationHandler(m ModificationHandler) Option {
	return func(h *History) {
		h.handler = m
	}
}

// History manages undo/redo stacks and the savepoint. It implements
// SavepointManager for the wrappers it creates.
//
// The lock is never held while an edit or the modification handler runs.
// Undo and Redo are not re-entrant.
type History struct {
	mu sync.Mutex

	undoStack []*undoEntry
	redoStack []*undoEntry

	// Grouping state
	group      *CompoundEdit
	groupDepth int

	// capture collects edits made by Save actions.
	capture *CompoundEdit

	savepoint savepoint
	busy      bool
	limit     int

	handler ModificationHandler
	logger  *logging.Logger
}

var _ SavepointManager = (*History)(nil)

// New creates a history. The initial, empty state is the savepoint.
func New(opts ...Option) *History {
	h := &History{
		limit:     DefaultLimit,
		savepoint: savepoint{valid: true},
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add records an applied edit. While a group or Save is open the edit is
// added to it; otherwise it is merged with the last entry or pushed. The
// redo stack is discarded.
func (h *History) Add(e Edit) error {
	h.mu.Lock()
	if h.busy {
		h.mu.Unlock()
		return ErrHistoryBusy
	}
	if h.capture != nil {
		h.capture.AddEdit(e)
		h.mu.Unlock()
		return nil
	}
	if h.group != nil {
		h.group.AddEdit(e)
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	return h.push(e)
}

func (h *History) push(e Edit) error {
	h.mu.Lock()
	wasAt := h.atSavepointLocked(h.undoTopLocked())
	var top *undoEntry
	if n := len(h.undoStack); n > 0 {
		top = h.undoStack[n-1]
	}
	h.mu.Unlock()

	if wasAt && h.handler != nil {
		if err := h.handler.NotifyModified(); err != nil {
			e.Die()
			return fmt.Errorf("%w: %w", ErrModificationVetoed, err)
		}
	}

	w := Wrap(e, h)
	absorbed := top != nil && top.edit.AddEdit(w)
	replaced := !absorbed && top != nil && w.ReplaceEdit(top.edit)

	h.mu.Lock()
	dead := h.redoStack
	h.redoStack = nil
	switch {
	case absorbed:
		top.timestamp = time.Now()
	case replaced:
		top.edit = w
		top.timestamp = time.Now()
	default:
		h.undoStack = append(h.undoStack, &undoEntry{edit: w, timestamp: time.Now()})
	}
	dead = append(dead, h.trimLocked()...)
	h.mu.Unlock()

	killAll(dead)
	h.logger.Debug("recorded %q (absorbed=%v replaced=%v)", e.Description(), absorbed, replaced)
	return nil
}

// trimLocked drops the oldest entries beyond the limit and returns them.
// Trimming past the savepoint moves it to the new start of history, and
// trimming the start makes it unreachable.
func (h *History) trimLocked() []*undoEntry {
	excess := len(h.undoStack) - h.limit
	if excess <= 0 {
		return nil
	}
	trimmed := h.undoStack[:excess:excess]
	h.undoStack = h.undoStack[excess:]

	for _, e := range trimmed {
		switch {
		case !h.savepoint.valid:
		case h.savepoint.edit == nil:
			h.savepoint.valid = false
		case h.savepoint.edit == e.edit:
			h.savepoint.edit = nil
		}
	}
	return trimmed
}

func killAll(entries []*undoEntry) {
	for i := len(entries) - 1; i >= 0; i-- {
		entries[i].edit.Die()
	}
}

// Undo undoes the last entry. The entry moves to the redo stack only if the
// undo succeeds.
func (h *History) Undo() error {
	h.mu.Lock()
	if h.busy || h.group != nil || h.capture != nil {
		h.mu.Unlock()
		return ErrHistoryBusy
	}
	if len(h.undoStack) == 0 {
		h.mu.Unlock()
		return ErrNothingToUndo
	}
	entry := h.undoStack[len(h.undoStack)-1]
	h.busy = true
	h.mu.Unlock()

	err := entry.edit.Undo()

	h.mu.Lock()
	h.busy = false
	if err == nil {
		h.undoStack = h.undoStack[:len(h.undoStack)-1]
		h.redoStack = append(h.redoStack, entry)
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.Warn("undo %q failed: %v", entry.edit.Description(), err)
		return fmt.Errorf("undo %q: %w", entry.edit.Description(), err)
	}
	h.logger.Debug("undo %q", entry.edit.Description())
	return nil
}

// Redo redoes the last undone entry. The entry moves to the undo stack only
// if the redo succeeds.
func (h *History) Redo() error {
	h.mu.Lock()
	if h.busy || h.group != nil || h.capture != nil {
		h.mu.Unlock()
		return ErrHistoryBusy
	}
	if len(h.redoStack) == 0 {
		h.mu.Unlock()
		return ErrNothingToRedo
	}
	entry := h.redoStack[len(h.redoStack)-1]
	h.busy = true
	h.mu.Unlock()

	err := entry.edit.Redo()

	h.mu.Lock()
	h.busy = false
	if err == nil {
		h.redoStack = h.redoStack[:len(h.redoStack)-1]
		h.undoStack = append(h.undoStack, entry)
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.Warn("redo %q failed: %v", entry.edit.Description(), err)
		return fmt.Errorf("redo %q: %w", entry.edit.Description(), err)
	}
	h.logger.Debug("redo %q", entry.edit.Description())
	return nil
}

// CanUndo returns true if undo is available.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.undoStack)
	return n > 0 && h.undoStack[n-1].edit.CanUndo()
}

// CanRedo returns true if redo is available.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.redoStack)
	return n > 0 && h.redoStack[n-1].edit.CanRedo()
}

// UndoCount returns the number of undo entries.
func (h *History) UndoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack)
}

// RedoCount returns the number of redo entries.
func (h *History) RedoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack)
}

// Clear kills all entries. The current state becomes the start of history
// and stays the savepoint if it was one.
func (h *History) Clear() {
	h.mu.Lock()
	at := h.atSavepointLocked(h.undoTopLocked())
	dead := append(h.undoStack, h.redoStack...)
	h.undoStack = nil
	h.redoStack = nil
	h.group = nil
	h.groupDepth = 0
	h.savepoint = savepoint{valid: at}
	h.mu.Unlock()

	killAll(dead)
}

// UndoInfo returns info about the undo entries, oldest first.
func (h *History) UndoInfo() []OperationInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]OperationInfo, len(h.undoStack))
	for i, entry := range h.undoStack {
		result[i] = entry.info()
	}
	return result
}

// RedoInfo returns info about the redo entries, oldest undo first.
func (h *History) RedoInfo() []OperationInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]OperationInfo, len(h.redoStack))
	for i, entry := range h.redoStack {
		result[i] = entry.info()
	}
	return result
}

// PeekUndo returns info about the next undo entry.
func (h *History) PeekUndo() (OperationInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undoStack) == 0 {
		return OperationInfo{}, false
	}
	return h.undoStack[len(h.undoStack)-1].info(), true
}

// PeekRedo returns info about the next redo entry.
func (h *History) PeekRedo() (OperationInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.redoStack) == 0 {
		return OperationInfo{}, false
	}
	return h.redoStack[len(h.redoStack)-1].info(), true
}

// SetLimit changes the maximum number of undo entries. Excess entries are
// trimmed oldest first.
func (h *History) SetLimit(limit int) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	h.mu.Lock()
	h.limit = limit
	dead := h.trimLocked()
	h.mu.Unlock()

	killAll(dead)
}

// Limit returns the maximum number of undo entries.
func (h *History) Limit() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.limit
}

func (h *History) undoTopLocked() *SavepointWrapper {
	if n := len(h.undoStack); n > 0 {
		return h.undoStack[n-1].edit
	}
	return nil
}
