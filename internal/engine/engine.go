package engine

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/linekeeper/internal/engine/annotation"
	"github.com/dshills/linekeeper/internal/engine/document"
	"github.com/dshills/linekeeper/internal/engine/history"
	"github.com/dshills/linekeeper/internal/engine/lines"
	"github.com/dshills/linekeeper/internal/engine/position"
	"github.com/dshills/linekeeper/internal/engine/tracking"
	"github.com/dshills/linekeeper/internal/logging"
)

// Engine is an editing session over one document. It records every
// mutation for undo, keeps line handles and their annotations in step with
// the text, and maps line numbers back to the content it was created with.
//
// Engine methods are safe for concurrent use. Transaction and Save run
// their function without holding the engine lock so that it may call back
// into the engine.
type Engine struct {
	mu sync.Mutex

	// Core components
	doc        *document.Document
	translator *tracking.Translator
	listener   *tracking.Listener
	lines      *lines.Set
	history    *history.History
	recorder   *document.Subscription

	// Configuration
	maxUndoEntries int
	mergeTyping    bool
	readOnly       bool
	initContent    string
	rootLogger     *logging.Logger

	logger    *logging.Logger
	sessionID uuid.UUID
	closed    bool

	// replaying is positive while undo or redo mutate the document.
	replaying atomic.Int32

	recMu     sync.Mutex
	recordErr error
}

var _ history.ModificationHandler = (*Engine)(nil)

// New creates a new Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxUndoEntries: DefaultMaxUndoEntries,
		mergeTyping:    true,
		rootLogger:     logging.Nop(),
		sessionID:      uuid.New(),
	}

	// Apply options to get configuration
	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.rootLogger.WithComponent("engine").WithField("session", e.sessionID.String()[:8])

	e.doc = document.NewFromString(e.initContent,
		document.WithLogger(e.rootLogger),
		document.WithWriteGuard(e.guardWrite),
	)
	e.translator = tracking.NewTranslator()
	e.lines = lines.NewSet(e.doc, e.translator, lines.WithLogger(e.rootLogger))
	e.listener = tracking.NewListener(e.doc, e.translator,
		tracking.WithLineSet(e.lines),
		tracking.WithLogger(e.rootLogger),
	)
	e.history = history.New(
		history.WithLimit(e.maxUndoEntries),
		history.WithLogger(e.rootLogger),
		history.WithModificationHandler(e),
	)
	e.recorder = e.doc.Observe(document.ListenerFunc(e.record))

	e.logger.Debug("session started: %d bytes, %d lines", e.doc.Len(), e.doc.LineCount())
	return e
}

// ============================================================================
// Components
// ============================================================================

// SessionID returns the unique id of this session.
func (e *Engine) SessionID() uuid.UUID {
	return e.sessionID
}

// Document returns the underlying document. Mutations made on it directly
// are recorded for undo like those made through the engine.
func (e *Engine) Document() *document.Document {
	return e.doc
}

// History returns the undo history.
func (e *Engine) History() *history.History {
	return e.history
}

// Lines returns the line handle set.
func (e *Engine) Lines() *lines.Set {
	return e.lines
}

// Translator returns the line number translator.
func (e *Engine) Translator() *tracking.Translator {
	return e.translator
}

// IsReadOnly returns true if the engine is read-only.
func (e *Engine) IsReadOnly() bool {
	return e.readOnly
}

// ============================================================================
// Read Operations
// ============================================================================

// Text returns the full document content.
func (e *Engine) Text() string {
	return e.doc.Text()
}

// TextRange returns text in [start, end).
func (e *Engine) TextRange(start, end int) (string, error) {
	return e.doc.TextRange(start, end)
}

// Len returns the document length in bytes.
func (e *Engine) Len() int {
	return e.doc.Len()
}

// LineCount returns the number of lines.
func (e *Engine) LineCount() int {
	return e.doc.LineCount()
}

// LineText returns the text of a line without its newline.
func (e *Engine) LineText(line int) (string, error) {
	return e.doc.LineText(line)
}

// ============================================================================
// Write Operations
// ============================================================================

// Insert inserts text at the given offset.
func (e *Engine) Insert(offset int, text string) error {
	return e.write(func() error {
		return e.doc.Insert(offset, text)
	})
}

// Remove removes length bytes starting at offset.
func (e *Engine) Remove(offset, length int) error {
	return e.write(func() error {
		return e.doc.Remove(offset, length)
	})
}

// Replace replaces length bytes at offset with text as a single undo step.
func (e *Engine) Replace(offset, length int, text string) error {
	if err := e.checkWritable(); err != nil {
		return err
	}
	return e.history.Transaction("Replace", func() error {
		return e.write(func() error {
			if err := e.doc.Remove(offset, length); err != nil {
				return err
			}
			return e.doc.Insert(offset, text)
		})
	})
}

// write runs a document mutation under the engine lock and reports a
// failure to record it.
func (e *Engine) write(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.readOnly {
		return ErrReadOnly
	}

	e.takeRecordErr()
	if err := fn(); err != nil {
		return err
	}
	return e.takeRecordErr()
}

func (e *Engine) checkWritable() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.readOnly {
		return ErrReadOnly
	}
	return nil
}

// guardWrite refuses document mutations in a read-only session, including
// writes made through Document directly.
func (e *Engine) guardWrite() error {
	if e.readOnly {
		return ErrReadOnly
	}
	return nil
}

// record turns a document event into an undoable edit.
func (e *Engine) record(ev document.Event) {
	if e.replaying.Load() > 0 {
		return
	}
	if err := e.history.Add(newTextEdit(e, ev)); err != nil {
		e.logger.Warn("record %s: %v", ev, err)
		e.recMu.Lock()
		e.recordErr = errors.Join(e.recordErr, err)
		e.recMu.Unlock()
	}
}

func (e *Engine) takeRecordErr() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	err := e.recordErr
	e.recordErr = nil
	return err
}

// replay runs fn with recording suppressed.
func (e *Engine) replay(fn func(doc *document.Document) error) error {
	e.replaying.Add(1)
	defer e.replaying.Add(-1)
	return fn(e.doc)
}

// ============================================================================
// Undo/Redo
// ============================================================================

// Undo undoes the last undo step.
func (e *Engine) Undo() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.history.Undo()
}

// Redo redoes the last undone step.
func (e *Engine) Redo() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.history.Redo()
}

// CanUndo returns true if undo is available.
func (e *Engine) CanUndo() bool {
	return e.history.CanUndo()
}

// CanRedo returns true if redo is available.
func (e *Engine) CanRedo() bool {
	return e.history.CanRedo()
}

// UndoCount returns the number of undo steps.
func (e *Engine) UndoCount() int {
	return e.history.UndoCount()
}

// RedoCount returns the number of redo steps.
func (e *Engine) RedoCount() int {
	return e.history.RedoCount()
}

// BeginGroup starts an undo group. Edits until the matching EndGroup form
// one undo step.
func (e *Engine) BeginGroup(name string) {
	e.history.BeginGroup(name)
}

// EndGroup ends an undo group.
func (e *Engine) EndGroup() error {
	return e.history.EndGroup()
}

// Transaction runs fn as one undo step. If fn fails, its edits are undone.
func (e *Engine) Transaction(name string, fn func() error) error {
	if err := e.checkWritable(); err != nil {
		return err
	}
	return e.history.Transaction(name, fn)
}

// ============================================================================
// Savepoint
// ============================================================================

// Save runs actions, folds the edits they make into the last undo step,
// and marks the result as the saved state. actions may be nil.
func (e *Engine) Save(actions func() error) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := e.history.Save(actions); err != nil {
		return err
	}
	e.logger.Info("saved at revision %d", e.doc.Revision())
	return nil
}

// IsModified reports whether the document differs from the saved state.
func (e *Engine) IsModified() bool {
	return e.history.IsModified()
}

// NotifyModified implements history.ModificationHandler. A read-only
// session vetoes leaving the saved state.
func (e *Engine) NotifyModified() error {
	if e.readOnly {
		return ErrReadOnly
	}
	e.logger.Debug("document modified")
	return nil
}

// NotifyUnmodified implements history.ModificationHandler.
func (e *Engine) NotifyUnmodified() {
	e.logger.Debug("document unmodified")
}

// ============================================================================
// Lines, Positions and Annotations
// ============================================================================

// Line returns the handle for current line n.
func (e *Engine) Line(n int) (*lines.Line, error) {
	return e.lines.Current(n)
}

// Annotate attaches a new annotation to current line n.
func (e *Engine) Annotate(line int, kind, description string) (*annotation.Annotation, error) {
	l, err := e.lines.Current(line)
	if err != nil {
		return nil, err
	}
	a := annotation.New(kind, description)
	a.Attach(l.Annotatable)
	e.logger.Debug("annotated line %d: %s", line, kind)
	return a, nil
}

// AnnotationLine returns the current line number of the line a is attached
// to, or -1 if a is detached or its line was deleted.
func (e *Engine) AnnotationLine(a *annotation.Annotation) int {
	parent := a.Attached()
	if parent == nil || parent.IsDeleted() {
		return -1
	}
	for _, l := range e.lines.Lines() {
		if l.Annotatable == parent {
			return l.Number()
		}
	}
	return -1
}

// NewPosition creates a position at offset that follows the text.
func (e *Engine) NewPosition(offset int, bias position.Bias) *position.Position {
	if bias == position.BiasForward {
		return position.NewForward(e.doc, offset)
	}
	return position.New(e.doc, offset)
}

// OriginalLine returns the line number current line n had when the session
// started, or tracking.Unresolved if it was inserted since.
func (e *Engine) OriginalLine(n int) int {
	return e.lines.OriginalLine(n)
}

// CurrentLine returns the current number of original line n, or
// tracking.Unresolved if it was deleted.
func (e *Engine) CurrentLine(n int) int {
	return e.lines.CurrentLine(n)
}

// ============================================================================
// Lifecycle
// ============================================================================

// Close ends the session. The document stays readable; further edits
// return ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.recorder.Unsubscribe()
	e.listener.Close()
	e.history.Clear()
	e.logger.Debug("session closed")
	return nil
}
