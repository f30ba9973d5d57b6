// Package history provides undo/redo with savepoint tracking.
//
// # Edits
//
// An Edit is recorded after it was applied to the document. BaseEdit holds
// the status bookkeeping for leaf edits, and FuncEdit builds an edit from a
// pair of functions.
//
// A CompoundEdit collects child edits into one undo step. When a child
// fails during undo or redo, the children already processed are restored
// and the compound keeps its status, so a failed undo never leaves half a
// step applied.
//
// # History Stack
//
// History wraps every entry in a SavepointWrapper:
//
//	h := history.New(history.WithLimit(500))
//
//	h.Add(edit)
//	h.MarkSavepoint()
//
//	h.Undo() // leaves the savepoint, the modification handler is told
//	h.Redo() // back at the savepoint
//
// While history sits at the savepoint the top entry absorbs nothing, so
// "undo to the saved state" stays well defined.
//
// # Grouping
//
// Multiple edits can be grouped as a single undo entry:
//
//	h.BeginGroup("Find and Replace")
//	// ... multiple edits ...
//	h.EndGroup()
//
// Transaction undoes the partial group when its function fails.
package history
