package history

import (
	"fmt"
)

// BeginGroup starts an edit group. Edits added while grouping form a single
// undo entry. Nested calls are counted; only the outermost name is used.
func (h *History) BeginGroup(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.groupDepth++
	if h.groupDepth == 1 {
		h.group = NewCompoundEdit(name)
	}
}

// EndGroup closes one level of grouping. Closing the outermost level pushes
// the group as one entry; an empty group is dropped.
func (h *History) EndGroup() error {
	h.mu.Lock()
	if h.groupDepth == 0 {
		h.mu.Unlock()
		return nil
	}
	h.groupDepth--
	if h.groupDepth > 0 {
		h.mu.Unlock()
		return nil
	}
	g := h.group
	h.group = nil
	h.mu.Unlock()

	g.End()
	if g.Len() == 0 {
		return nil
	}
	return h.push(g)
}

// CancelGroup drops the open group without recording it. Its edits remain
// applied to the document.
func (h *History) CancelGroup() {
	h.mu.Lock()
	g := h.group
	h.group = nil
	h.groupDepth = 0
	h.mu.Unlock()

	if g != nil {
		g.Die()
	}
}

// rollbackGroup undoes and drops the open group.
func (h *History) rollbackGroup() error {
	h.mu.Lock()
	g := h.group
	h.group = nil
	h.groupDepth = 0
	h.mu.Unlock()

	if g == nil {
		return nil
	}
	g.End()
	defer g.Die()
	if g.Len() == 0 {
		return nil
	}
	return g.Undo()
}

// IsGrouping returns true if a group is open.
func (h *History) IsGrouping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.groupDepth > 0
}

// GroupScope provides a convenient way to group edits using defer.
// Usage:
//
//	func doComplexEdit(h *history.History) {
//	    defer h.GroupScope("Complex Edit").End()
//	    // ... multiple edits ...
//	}
type GroupScope struct {
	history *History
	active  bool
}

// GroupScope starts a new group scope.
func (h *History) GroupScope(name string) *GroupScope {
	h.BeginGroup(name)
	return &GroupScope{
		history: h,
		active:  true,
	}
}

// End ends the group scope. Only the first call has effect.
func (g *GroupScope) End() error {
	if !g.active {
		return nil
	}
	g.active = false
	return g.history.EndGroup()
}

// Cancel cancels the group scope without recording it.
func (g *GroupScope) Cancel() {
	if g.active {
		g.history.CancelGroup()
		g.active = false
	}
}

// Transaction runs fn within a group. If fn fails, the edits it made are
// undone and nothing is recorded.
func (h *History) Transaction(name string, fn func() error) error {
	h.BeginGroup(name)

	if err := fn(); err != nil {
		if rerr := h.rollbackGroup(); rerr != nil {
			h.logger.Error("rollback of %q failed: %v", name, rerr)
			return fmt.Errorf("%w (rollback failed: %w)", err, rerr)
		}
		return err
	}

	return h.EndGroup()
}

// Checkpoint represents a point in history that can be returned to.
type Checkpoint struct {
	undoDepth int
}

// CreateCheckpoint creates a checkpoint at the current history position.
func (h *History) CreateCheckpoint() Checkpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Checkpoint{undoDepth: len(h.undoStack)}
}

// UndoToCheckpoint undoes all entries since the checkpoint.
func (h *History) UndoToCheckpoint(cp Checkpoint) error {
	for h.UndoCount() > cp.undoDepth {
		if err := h.Undo(); err != nil {
			return err
		}
	}
	return nil
}

// RedoToCheckpoint redoes entries until the checkpoint depth is reached or
// the redo stack is empty.
func (h *History) RedoToCheckpoint(cp Checkpoint) error {
	for h.UndoCount() < cp.undoDepth && h.RedoCount() > 0 {
		if err := h.Redo(); err != nil {
			return err
		}
	}
	return nil
}
