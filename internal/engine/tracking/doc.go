// Package tracking keeps line identity stable while a document changes.
//
// A Translator maps between the original line numbering, captured when the
// translator was created, and the current numbering. A Listener observes a
// document, converts each mutation into whole-line inserts or deletes on the
// Translator, and reports the change to a LineSet view.
//
// # Usage
//
//	tr := tracking.NewTranslator()
//	l := tracking.NewListener(doc, tr, tracking.WithLineSet(view))
//
//	// Later, find where original line 10 is now
//	cur := tr.Convert(10, true)
//	if cur == tracking.Unresolved {
//	    // the line was deleted
//	}
//
// Lines inserted after the baseline have no original index, and deleted
// original lines have no current index. Both resolve to Unresolved.
//
// # Thread Safety
//
// Translator reads take a read lock and may run from any goroutine. The
// Listener is the single writer and runs on the document's notification
// path.
package tracking
