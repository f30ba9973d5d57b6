// Package document provides the host text document that the line tracking
// and undo engines observe.
//
// A Document stores its text together with a line root element: the byte
// offset at which every line starts. Each mutation is reported exactly once,
// synchronously and in order, to registered observers as an insert or remove
// Event.
//
// # Observers
//
// Observers run in two phases. Position observers (PhasePosition) are
// updated first so that ordinary listeners (PhaseListener) always see
// positions that already reflect the edit.
//
// ObserveWeak registers an observer without keeping it alive: once the
// target is garbage collected its subscription is dropped. Subscriptions
// hold only a weak reference back to the document, so observers never pin
// the document either.
//
// # Concurrency
//
// Reads are safe from any goroutine. Mutations must come from a single
// logical writer; a mutation attempted while observers are being notified
// returns ErrMutationInNotification.
package document
