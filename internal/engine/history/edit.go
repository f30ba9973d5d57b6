package history

import (
	"errors"
)

// Common errors for history operations.
var (
	ErrCannotUndo         = errors.New("cannot undo")
	ErrCannotRedo         = errors.New("cannot redo")
	ErrNothingToUndo      = errors.New("nothing to undo")
	ErrNothingToRedo      = errors.New("nothing to redo")
	ErrHistoryBusy        = errors.New("history busy")
	ErrModificationVetoed = errors.New("modification vetoed")
)

// Edit is an undoable change. Edits are recorded after they were applied,
// so a new edit starts out done.
type Edit interface {
	// Undo reverts the edit. Returns ErrCannotUndo if CanUndo is false.
	Undo() error

	// Redo reapplies the edit. Returns ErrCannotRedo if CanRedo is false.
	Redo() error

	CanUndo() bool
	CanRedo() bool

	// Die releases the edit. A dead edit can be neither undone nor redone.
	Die()

	// AddEdit lets the edit absorb e. Returns false if it does not.
	AddEdit(e Edit) bool

	// ReplaceEdit lets the edit take the place of e. Returns false if it
	// does not.
	ReplaceEdit(e Edit) bool

	// IsSignificant reports whether the edit deserves its own undo step.
	IsSignificant() bool

	// Description returns a human-readable description.
	Description() string
}

// Status is the lifecycle state of an edit.
type Status uint8

const (
	// StatusDone means the edit is applied and can be undone.
	StatusDone Status = iota
	// StatusUndone means the edit was undone and can be redone.
	StatusUndone
	// StatusInProgress means a compound edit is still collecting children.
	StatusInProgress
	// StatusDead means the edit was released.
	StatusDead
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusUndone:
		return "undone"
	case StatusInProgress:
		return "in progress"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// BaseEdit implements the bookkeeping part of Edit. Embed it and override
// Undo and Redo; the zero value is done.
type BaseEdit struct {
	status Status
}

// Status returns the current status.
func (b *BaseEdit) Status() Status { return b.status }

// SetStatus sets the status. Used by embedding types after a successful
// undo or redo.
func (b *BaseEdit) SetStatus(s Status) { b.status = s }

// CanUndo reports whether the edit is done.
func (b *BaseEdit) CanUndo() bool { return b.status == StatusDone }

// CanRedo reports whether the edit is undone.
func (b *BaseEdit) CanRedo() bool { return b.status == StatusUndone }

// Undo flips the status to undone.
func (b *BaseEdit) Undo() error {
	if !b.CanUndo() {
		return ErrCannotUndo
	}
	b.status = StatusUndone
	return nil
}

// Redo flips the status to done.
func (b *BaseEdit) Redo() error {
	if !b.CanRedo() {
		return ErrCannotRedo
	}
	b.status = StatusDone
	return nil
}

// Die marks the edit dead.
func (b *BaseEdit) Die() { b.status = StatusDead }

// AddEdit absorbs nothing.
func (b *BaseEdit) AddEdit(Edit) bool { return false }

// ReplaceEdit replaces nothing.
func (b *BaseEdit) ReplaceEdit(Edit) bool { return false }

// IsSignificant returns true.
func (b *BaseEdit) IsSignificant() bool { return true }

// Description returns an empty string.
func (b *BaseEdit) Description() string { return "" }

// FuncEdit is an Edit backed by a pair of functions.
type FuncEdit struct {
	BaseEdit
	name string
	undo func() error
	redo func() error
}

// NewFuncEdit creates a done edit that calls undo and redo.
func NewFuncEdit(name string, undo, redo func() error) *FuncEdit {
	return &FuncEdit{name: name, undo: undo, redo: redo}
}

// Undo calls the undo function and marks the edit undone on success.
func (e *FuncEdit) Undo() error {
	if !e.CanUndo() {
		return ErrCannotUndo
	}
	if e.undo != nil {
		if err := e.undo(); err != nil {
			return err
		}
	}
	e.SetStatus(StatusUndone)
	return nil
}

// Redo calls the redo function and marks the edit done on success.
func (e *FuncEdit) Redo() error {
	if !e.CanRedo() {
		return ErrCannotRedo
	}
	if e.redo != nil {
		if err := e.redo(); err != nil {
			return err
		}
	}
	e.SetStatus(StatusDone)
	return nil
}

// Description returns the edit's name.
func (e *FuncEdit) Description() string { return e.name }
