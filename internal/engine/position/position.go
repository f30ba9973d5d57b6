// Package position provides document offsets that follow edits.
//
// A Position is registered weakly with its document: it is updated in the
// document's position phase, before ordinary listeners run, and it is
// dropped from the document once it is no longer referenced.
package position

import (
	"sync/atomic"

	"github.com/dshills/linekeeper/internal/engine/document"
)

// Bias decides where a position goes when text is inserted exactly at it.
type Bias uint8

const (
	// BiasBackward positions stay behind an insertion at their offset.
	BiasBackward Bias = iota
	// BiasForward positions move to the end of an insertion at their offset.
	BiasForward
)

// String returns the bias name.
func (b Bias) String() string {
	if b == BiasForward {
		return "forward"
	}
	return "backward"
}

// Position is an offset into a document that is adjusted as the document
// changes.
type Position struct {
	offset atomic.Int64
	bias   Bias
}

// New creates a backward-bias position at offset. Offsets outside the
// document are clamped.
func New(doc *document.Document, offset int) *Position {
	return newPosition(doc, offset, BiasBackward)
}

// NewForward creates a forward-bias position at offset.
func NewForward(doc *document.Document, offset int) *Position {
	return newPosition(doc, offset, BiasForward)
}

func newPosition(doc *document.Document, offset int, bias Bias) *Position {
	offset = max(0, min(offset, doc.Len()))
	p := &Position{bias: bias}
	p.offset.Store(int64(offset))
	document.ObserveWeak(doc, p, (*Position).update, document.WithPhase(document.PhasePosition))
	return p
}

// Offset returns the current offset.
func (p *Position) Offset() int {
	return int(p.offset.Load())
}

// Bias returns the position's bias.
func (p *Position) Bias() Bias {
	return p.bias
}

func (p *Position) update(ev document.Event) {
	p.offset.Store(int64(Transform(p.Offset(), ev, p.bias)))
}

// Transform returns offset adjusted for ev.
//
// An insertion before offset shifts it by the inserted length. An insertion
// at offset shifts it only for forward bias. A removal before offset pulls it
// back, never past the removal start.
func Transform(offset int, ev document.Event, bias Bias) int {
	switch ev.Type {
	case document.EventInsert:
		if ev.Offset < offset || (ev.Offset == offset && bias == BiasForward) {
			return offset + ev.Length
		}
	case document.EventRemove:
		if ev.Offset < offset {
			return offset - min(ev.Length, offset-ev.Offset)
		}
	}
	return offset
}
