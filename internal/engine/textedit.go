package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dshills/linekeeper/internal/engine/document"
	"github.com/dshills/linekeeper/internal/engine/history"
)

// textEdit is a document mutation recorded after the fact. Undo applies the
// inverse mutation; both directions run with recording suppressed.
type textEdit struct {
	history.BaseEdit

	eng      *Engine
	typ      document.EventType
	offset   int
	text     string
	merge    bool
	backward bool
}

func newTextEdit(e *Engine, ev document.Event) *textEdit {
	return &textEdit{
		eng:    e,
		typ:    ev.Type,
		offset: ev.Offset,
		text:   ev.Text,
		merge:  e.mergeTyping,
	}
}

// Undo reverts the mutation.
func (t *textEdit) Undo() error {
	if !t.CanUndo() {
		return history.ErrCannotUndo
	}
	err := t.eng.replay(func(doc *document.Document) error {
		if t.typ == document.EventInsert {
			return doc.Remove(t.offset, len(t.text))
		}
		return doc.Insert(t.offset, t.text)
	})
	if err != nil {
		return err
	}
	t.SetStatus(history.StatusUndone)
	return nil
}

// Redo reapplies the mutation.
func (t *textEdit) Redo() error {
	if !t.CanRedo() {
		return history.ErrCannotRedo
	}
	err := t.eng.replay(func(doc *document.Document) error {
		if t.typ == document.EventInsert {
			return doc.Insert(t.offset, t.text)
		}
		return doc.Remove(t.offset, len(t.text))
	})
	if err != nil {
		return err
	}
	t.SetStatus(history.StatusDone)
	return nil
}

// AddEdit absorbs a following keystroke: typing right after an insert, or
// a backspace or forward delete next to a removal. Line breaks end a run.
func (t *textEdit) AddEdit(e history.Edit) bool {
	o, ok := e.(*textEdit)
	if !ok || !t.merge || !t.CanUndo() || !o.CanUndo() || o.typ != t.typ {
		return false
	}
	if strings.Contains(o.text, "\n") || strings.Contains(t.text, "\n") {
		return false
	}

	switch t.typ {
	case document.EventInsert:
		if o.offset != t.offset+len(t.text) {
			return false
		}
		t.text += o.text
	case document.EventRemove:
		switch {
		case o.offset+len(o.text) == t.offset && (t.backward || utf8.RuneCountInString(t.text) == 1):
			t.offset = o.offset
			t.text = o.text + t.text
			t.backward = true
		case o.offset == t.offset && !t.backward:
			t.text += o.text
		default:
			return false
		}
	}
	o.Die()
	return true
}

// Description returns a human-readable description.
func (t *textEdit) Description() string {
	n := utf8.RuneCountInString(t.text)
	if t.typ == document.EventInsert {
		if n == 1 {
			switch t.text {
			case "\n":
				return "Insert newline"
			case "\t":
				return "Insert tab"
			}
			return fmt.Sprintf("Type '%s'", t.text)
		}
		if n <= 20 {
			return fmt.Sprintf("Insert \"%s\"", t.text)
		}
		return fmt.Sprintf("Insert %d characters", n)
	}

	if n == 1 {
		return "Delete"
	}
	if t.backward {
		return fmt.Sprintf("Backspace %d characters", n)
	}
	return fmt.Sprintf("Delete %d characters", n)
}
