package history

import (
	"errors"
	"fmt"
	"slices"
)

// CompoundEdit groups child edits into one undo step.
//
// A failing child never leaves the compound half applied: children that
// were already processed are restored before the error is returned, and the
// compound keeps its status. CompoundEdit is not safe for concurrent use.
type CompoundEdit struct {
	name   string
	status Status
	edits  []Edit
}

// NewCompoundEdit creates an in-progress compound edit.
func NewCompoundEdit(name string) *CompoundEdit {
	return &CompoundEdit{name: name, status: StatusInProgress}
}

// Status returns the current status.
func (c *CompoundEdit) Status() Status { return c.status }

// IsInProgress reports whether children can still be added.
func (c *CompoundEdit) IsInProgress() bool { return c.status == StatusInProgress }

// AddEdit adds e while the compound is in progress. The last child may
// absorb e; otherwise e may replace the last child; otherwise e is
// appended.
func (c *CompoundEdit) AddEdit(e Edit) bool {
	if c.status != StatusInProgress {
		return false
	}
	if len(c.edits) == 0 {
		c.edits = append(c.edits, e)
		return true
	}

	last := c.edits[len(c.edits)-1]
	switch {
	case last.AddEdit(e):
	case e.ReplaceEdit(last):
		c.edits[len(c.edits)-1] = e
	default:
		c.edits = append(c.edits, e)
	}
	return true
}

// ReplaceEdit replaces nothing.
func (c *CompoundEdit) ReplaceEdit(Edit) bool { return false }

// End stops collecting children.
func (c *CompoundEdit) End() {
	if c.status == StatusInProgress {
		c.status = StatusDone
	}
	c.edits = slices.Clip(c.edits)
}

// CanUndo reports whether the compound is done.
func (c *CompoundEdit) CanUndo() bool { return c.status == StatusDone }

// CanRedo reports whether the compound is undone.
func (c *CompoundEdit) CanRedo() bool { return c.status == StatusUndone }

// Undo undoes the children in reverse order. If child i fails, the
// children after i are redone and the error is returned.
func (c *CompoundEdit) Undo() error {
	if !c.CanUndo() {
		return ErrCannotUndo
	}

	for i := len(c.edits) - 1; i >= 0; i-- {
		if err := c.edits[i].Undo(); err != nil {
			var repair []error
			for j := i + 1; j < len(c.edits); j++ {
				if rerr := c.edits[j].Redo(); rerr != nil {
					repair = append(repair, rerr)
				}
			}
			return withRepair(err, repair)
		}
	}

	c.status = StatusUndone
	return nil
}

// Redo redoes the children in order. If child i fails, the children
// before i are undone again and the error is returned.
func (c *CompoundEdit) Redo() error {
	if !c.CanRedo() {
		return ErrCannotRedo
	}

	for i, e := range c.edits {
		if err := e.Redo(); err != nil {
			var repair []error
			for j := i - 1; j >= 0; j-- {
				if rerr := c.edits[j].Undo(); rerr != nil {
					repair = append(repair, rerr)
				}
			}
			return withRepair(err, repair)
		}
	}

	c.status = StatusDone
	return nil
}

func withRepair(err error, repair []error) error {
	if len(repair) == 0 {
		return err
	}
	return fmt.Errorf("%w (repair failed: %w)", err, errors.Join(repair...))
}

// Die marks the compound dead and kills its children in reverse order.
func (c *CompoundEdit) Die() {
	c.status = StatusDead
	for i := len(c.edits) - 1; i >= 0; i-- {
		c.edits[i].Die()
	}
}

// IsSignificant reports whether any child is significant.
func (c *CompoundEdit) IsSignificant() bool {
	for _, e := range c.edits {
		if e.IsSignificant() {
			return true
		}
	}
	return false
}

// Description returns the compound's name, the description of its only
// child, or a count of its children.
func (c *CompoundEdit) Description() string {
	if c.name != "" {
		return c.name
	}
	if len(c.edits) == 1 {
		return c.edits[0].Description()
	}
	return fmt.Sprintf("%d operations", len(c.edits))
}

// Edits returns a copy of the children.
func (c *CompoundEdit) Edits() []Edit {
	return slices.Clone(c.edits)
}

// LastEdit returns the last child, or nil.
func (c *CompoundEdit) LastEdit() Edit {
	if len(c.edits) == 0 {
		return nil
	}
	return c.edits[len(c.edits)-1]
}

// Len returns the number of children.
func (c *CompoundEdit) Len() int {
	return len(c.edits)
}
