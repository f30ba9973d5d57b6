package history

import (
	"fmt"
	"time"
)

// IsAtSavepoint reports whether the current state is the savepoint.
func (h *History) IsAtSavepoint() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.atSavepointLocked(h.undoTopLocked())
}

// IsModified reports whether the current state differs from the savepoint.
func (h *History) IsModified() bool {
	return !h.IsAtSavepoint()
}

// atSavepointLocked reports whether the state with undoTop on top of the
// undo stack is the savepoint.
func (h *History) atSavepointLocked(undoTop *SavepointWrapper) bool {
	return h.savepoint.valid && h.savepoint.edit == undoTop
}

// MarkSavepoint makes the current state the savepoint.
func (h *History) MarkSavepoint() {
	h.mu.Lock()
	h.savepoint = savepoint{edit: h.undoTopLocked(), valid: true}
	h.mu.Unlock()

	h.logger.Debug("savepoint marked")
	if h.handler != nil {
		h.handler.NotifyUnmodified()
	}
}

// Save runs actions, folds the edits they record into the last entry, and
// marks the savepoint. If actions fails, its edits are undone and the
// savepoint is left alone.
func (h *History) Save(actions func() error) error {
	h.mu.Lock()
	if h.busy || h.capture != nil {
		h.mu.Unlock()
		return ErrHistoryBusy
	}
	h.capture = NewCompoundEdit("save actions")
	h.mu.Unlock()

	var err error
	if actions != nil {
		err = actions()
	}

	h.mu.Lock()
	c := h.capture
	h.capture = nil
	h.mu.Unlock()
	c.End()

	if err != nil {
		if c.CanUndo() && c.Len() > 0 {
			if uerr := c.Undo(); uerr != nil {
				err = fmt.Errorf("%w (rollback failed: %w)", err, uerr)
			}
		}
		c.Die()
		return fmt.Errorf("save: %w", err)
	}

	if c.Len() > 0 {
		h.MergeSaveActionsToLastEdit(c)
	}
	h.MarkSavepoint()
	return nil
}

// MergeSaveActionsToLastEdit implements SavepointManager. The last entry's
// edit and actions become one compound edit; with no entry to merge into,
// actions is pushed as its own entry.
func (h *History) MergeSaveActionsToLastEdit(actions Edit) {
	h.mu.Lock()
	if n := len(h.undoStack); n > 0 {
		top := h.undoStack[n-1].edit
		h.mu.Unlock()

		merged := NewCompoundEdit(top.Description())
		merged.AddEdit(top.Delegate())
		merged.AddEdit(actions)
		merged.End()
		top.SetDelegate(merged)
		return
	}

	dead := h.redoStack
	h.redoStack = nil
	h.undoStack = append(h.undoStack, &undoEntry{edit: Wrap(actions, h), timestamp: time.Now()})
	dead = append(dead, h.trimLocked()...)
	h.mu.Unlock()

	killAll(dead)
}

// BeforeUndoAtSavepoint implements SavepointManager.
func (h *History) BeforeUndoAtSavepoint(*SavepointWrapper) error {
	return h.notifyModified()
}

// AfterUndoCheck implements SavepointManager.
func (h *History) AfterUndoCheck(w *SavepointWrapper) {
	h.mu.Lock()
	var below *SavepointWrapper
	for i := len(h.undoStack) - 1; i >= 0; i-- {
		if h.undoStack[i].edit == w {
			if i > 0 {
				below = h.undoStack[i-1].edit
			}
			break
		}
	}
	back := h.atSavepointLocked(below)
	h.mu.Unlock()

	if back {
		h.notifyUnmodified()
	}
}

// DelegateUndoFailedAtSavepoint implements SavepointManager. The document
// did not leave the savepoint after all.
func (h *History) DelegateUndoFailedAtSavepoint(*SavepointWrapper) {
	h.notifyUnmodified()
}

// BeforeRedoAtSavepoint implements SavepointManager.
func (h *History) BeforeRedoAtSavepoint(*SavepointWrapper) error {
	return h.notifyModified()
}

// AfterRedoCheck implements SavepointManager.
func (h *History) AfterRedoCheck(w *SavepointWrapper) {
	h.mu.Lock()
	back := h.atSavepointLocked(w)
	h.mu.Unlock()

	if back {
		h.notifyUnmodified()
	}
}

// DelegateRedoFailedAtSavepoint implements SavepointManager.
func (h *History) DelegateRedoFailedAtSavepoint(*SavepointWrapper) {
	h.notifyUnmodified()
}

// CheckReplaceSavepointEdit implements SavepointManager. If replaced was
// the savepoint edit, w takes over.
func (h *History) CheckReplaceSavepointEdit(replaced Edit, w *SavepointWrapper) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.savepoint.edit != nil && Edit(h.savepoint.edit) == replaced {
		h.savepoint.edit = w
	}
}

// NotifyWrapEditDie implements SavepointManager. A dying savepoint edit
// makes the savepoint unreachable.
func (h *History) NotifyWrapEditDie(w *SavepointWrapper) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.savepoint.edit == w {
		h.savepoint.valid = false
	}
}

func (h *History) notifyModified() error {
	if h.handler == nil {
		return nil
	}
	if err := h.handler.NotifyModified(); err != nil {
		return fmt.Errorf("%w: %w", ErrModificationVetoed, err)
	}
	return nil
}

func (h *History) notifyUnmodified() {
	if h.handler != nil {
		h.handler.NotifyUnmodified()
	}
}
