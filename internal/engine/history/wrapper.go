package history

// SavepointManager keeps track of the savepoint for SavepointWrapper.
// Every hook is called synchronously and must not undo or redo.
type SavepointManager interface {
	// IsAtSavepoint reports whether the history sits exactly at the
	// savepoint.
	IsAtSavepoint() bool

	// BeforeUndoAtSavepoint is called before w is undone away from the
	// savepoint. A non-nil error vetoes the undo.
	BeforeUndoAtSavepoint(w *SavepointWrapper) error
	// AfterUndoCheck is called after w was undone.
	AfterUndoCheck(w *SavepointWrapper)
	// DelegateUndoFailedAtSavepoint is called when undoing w at the
	// savepoint failed.
	DelegateUndoFailedAtSavepoint(w *SavepointWrapper)

	// BeforeRedoAtSavepoint is called before w is redone away from the
	// savepoint. A non-nil error vetoes the redo.
	BeforeRedoAtSavepoint(w *SavepointWrapper) error
	// AfterRedoCheck is called after w was redone.
	AfterRedoCheck(w *SavepointWrapper)
	// DelegateRedoFailedAtSavepoint is called when redoing w at the
	// savepoint failed.
	DelegateRedoFailedAtSavepoint(w *SavepointWrapper)

	// MergeSaveActionsToLastEdit folds edits made while saving into the
	// last edit.
	MergeSaveActionsToLastEdit(actions Edit)
	// CheckReplaceSavepointEdit is called after w replaced replaced.
	CheckReplaceSavepointEdit(replaced Edit, w *SavepointWrapper)
	// NotifyWrapEditDie is called after w died.
	NotifyWrapEditDie(w *SavepointWrapper)
}

// SavepointWrapper wraps every edit stored in a history so the savepoint
// manager sees undo and redo crossing the savepoint.
type SavepointWrapper struct {
	delegate Edit
	manager  SavepointManager
}

// Wrap wraps e for manager.
func Wrap(e Edit, manager SavepointManager) *SavepointWrapper {
	return &SavepointWrapper{delegate: e, manager: manager}
}

// Delegate returns the wrapped edit.
func (w *SavepointWrapper) Delegate() Edit { return w.delegate }

// SetDelegate replaces the wrapped edit.
func (w *SavepointWrapper) SetDelegate(e Edit) { w.delegate = e }

// Undo undoes the delegate.
func (w *SavepointWrapper) Undo() error {
	atSavepoint := w.manager.IsAtSavepoint()
	if atSavepoint {
		if err := w.manager.BeforeUndoAtSavepoint(w); err != nil {
			return err
		}
	}
	if err := w.delegate.Undo(); err != nil {
		if atSavepoint {
			w.manager.DelegateUndoFailedAtSavepoint(w)
		}
		return err
	}
	w.manager.AfterUndoCheck(w)
	return nil
}

// Redo redoes the delegate.
func (w *SavepointWrapper) Redo() error {
	atSavepoint := w.manager.IsAtSavepoint()
	if atSavepoint {
		if err := w.manager.BeforeRedoAtSavepoint(w); err != nil {
			return err
		}
	}
	if err := w.delegate.Redo(); err != nil {
		if atSavepoint {
			w.manager.DelegateRedoFailedAtSavepoint(w)
		}
		return err
	}
	w.manager.AfterRedoCheck(w)
	return nil
}

// CanUndo delegates.
func (w *SavepointWrapper) CanUndo() bool { return w.delegate.CanUndo() }

// CanRedo delegates.
func (w *SavepointWrapper) CanRedo() bool { return w.delegate.CanRedo() }

// AddEdit lets the delegate absorb e. Nothing is absorbed while the history
// is at the savepoint.
func (w *SavepointWrapper) AddEdit(e Edit) bool {
	if w.manager.IsAtSavepoint() {
		return false
	}
	return w.delegate.AddEdit(unwrap(e))
}

// ReplaceEdit lets the delegate replace e. Nothing is replaced while the
// history is at the savepoint.
func (w *SavepointWrapper) ReplaceEdit(e Edit) bool {
	if w.manager.IsAtSavepoint() {
		return false
	}
	if !w.delegate.ReplaceEdit(unwrap(e)) {
		return false
	}
	w.manager.CheckReplaceSavepointEdit(e, w)
	return true
}

// Die kills the delegate and tells the manager.
func (w *SavepointWrapper) Die() {
	w.delegate.Die()
	w.manager.NotifyWrapEditDie(w)
}

// IsSignificant delegates.
func (w *SavepointWrapper) IsSignificant() bool { return w.delegate.IsSignificant() }

// Description delegates.
func (w *SavepointWrapper) Description() string { return w.delegate.Description() }

func unwrap(e Edit) Edit {
	if w, ok := e.(*SavepointWrapper); ok {
		return w.delegate
	}
	return e
}
