package lines

import (
	"github.com/dshills/linekeeper/internal/engine/annotation"
	"github.com/dshills/linekeeper/internal/engine/position"
)

// Line is a handle on a logical line. Annotations attach to it directly.
type Line struct {
	*annotation.Annotatable

	set *Set
	pos *position.Position

	// original is fixed when the handle is created.
	original int

	// guarded by set.mu
	number    int
	prevStart int
}

// Number returns the current line number.
func (l *Line) Number() int {
	l.set.mu.Lock()
	defer l.set.mu.Unlock()
	return l.number
}

// Offset returns the offset the line's content is tracked at.
func (l *Line) Offset() int {
	return l.pos.Offset()
}

// Text returns the line's text without its newline.
func (l *Line) Text() (string, error) {
	if l.IsDeleted() {
		return "", ErrLineDeleted
	}
	doc := l.set.doc.Value()
	if doc == nil {
		return "", ErrDocumentReleased
	}
	return doc.LineText(l.Number())
}
