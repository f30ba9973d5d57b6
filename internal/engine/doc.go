// Package engine provides the editing session for linekeeper.
//
// The engine package serves as the main facade. It owns one document and
// wires it to the components that follow its changes:
//
//   - document: text storage with line structure and ordered notification
//   - position: offsets that move with the text
//   - tracking: the current/original line number translator and the
//     listener that feeds it
//   - lines: line handles that keep their identity across edits
//   - annotation: annotations attached to line handles
//   - history: undo/redo with savepoint tracking
//
// # Basic Usage
//
//	e := engine.New(engine.WithContent("Hello, World!"))
//
//	e.Replace(7, 5, "Go") // "Hello, Go!"
//	e.Undo()              // "Hello, World!"
//
// Every mutation of the document is recorded for undo, including those
// made on Document directly. Consecutive typing and deleting coalesce into
// one step unless WithMergeTyping(false) is given.
//
// # Savepoint
//
// Save marks the current state as saved. Edits made by the save actions
// join the last undo step, so undoing once returns to the state before both:
//
//	e.Save(func() error {
//	    return e.Insert(e.Len(), "\n") // ensure final newline
//	})
//	e.IsModified() // false
//
// # Lines and Annotations
//
// Annotations stay on their line while lines are inserted or removed above
// it:
//
//	a, _ := e.Annotate(10, "breakpoint", "")
//	e.Insert(0, "// header\n")
//	e.AnnotationLine(a) // 11
//	e.OriginalLine(11)  // 10
//
// Reload applies a line-wise diff, so annotations on unchanged lines
// survive a reload from disk.
//
// # Read-Only Mode
//
// A read-only engine rejects write operations with ErrReadOnly.
package engine
