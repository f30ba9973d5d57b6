package engine

import (
	"errors"

	"github.com/dshills/linekeeper/internal/engine/document"
	"github.com/dshills/linekeeper/internal/engine/history"
	"github.com/dshills/linekeeper/internal/engine/lines"
)

// Errors returned by engine operations.
var (
	// ErrReadOnly indicates an operation was attempted on a read-only engine.
	ErrReadOnly = errors.New("engine is read-only")

	// ErrClosed indicates an operation on a closed engine.
	ErrClosed = errors.New("engine is closed")

	// ErrOffsetOutOfRange indicates an offset is outside the document.
	ErrOffsetOutOfRange = document.ErrOffsetOutOfRange

	// ErrRangeInvalid indicates an invalid range (e.g., negative length).
	ErrRangeInvalid = document.ErrRangeInvalid

	// ErrLineOutOfRange indicates a line number outside the document.
	ErrLineOutOfRange = document.ErrLineOutOfRange

	// ErrLineDeleted indicates an original line that no longer exists.
	ErrLineDeleted = lines.ErrLineDeleted

	// ErrNothingToUndo indicates the undo stack is empty.
	ErrNothingToUndo = history.ErrNothingToUndo

	// ErrNothingToRedo indicates the redo stack is empty.
	ErrNothingToRedo = history.ErrNothingToRedo
)
