package engine

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/linekeeper/internal/config"
	"github.com/dshills/linekeeper/internal/engine/annotation"
	"github.com/dshills/linekeeper/internal/engine/position"
	"github.com/dshills/linekeeper/internal/engine/tracking"
)

func TestNew(t *testing.T) {
	e := New()
	if e.Text() != "" {
		t.Errorf("Text() = %q, want empty", e.Text())
	}
	if e.LineCount() != 1 {
		t.Errorf("LineCount() = %d, want 1", e.LineCount())
	}
	if e.IsModified() {
		t.Error("new engine should not be modified")
	}
	if e.CanUndo() || e.CanRedo() {
		t.Error("new engine should have no history")
	}
}

func TestNewWithContent(t *testing.T) {
	e := New(WithContent("hello\nworld"))
	if e.Len() != 11 {
		t.Errorf("Len() = %d, want 11", e.Len())
	}
	if e.LineCount() != 2 {
		t.Errorf("LineCount() = %d, want 2", e.LineCount())
	}
	if got, _ := e.LineText(1); got != "world" {
		t.Errorf("LineText(1) = %q, want world", got)
	}
	if _, err := e.LineText(2); !errors.Is(err, ErrLineOutOfRange) {
		t.Errorf("LineText(2) error = %v, want ErrLineOutOfRange", err)
	}
	if e.CanUndo() {
		t.Error("initial content should not be undoable")
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.History.MaxEntries = 2
	cfg.History.MergeTyping = false
	cfg.Document.ReadOnly = true

	e := New(WithConfig(cfg))
	if !e.IsReadOnly() {
		t.Error("engine should be read-only")
	}
	if e.History().Limit() != 2 {
		t.Errorf("Limit() = %d, want 2", e.History().Limit())
	}
	if e.mergeTyping {
		t.Error("mergeTyping should be false")
	}
}

func TestInsertRemove(t *testing.T) {
	e := New(WithContent("hello"))

	if err := e.Insert(5, " world"); err != nil {
		t.Fatalf("Insert error = %v", err)
	}
	if e.Text() != "hello world" {
		t.Errorf("Text() = %q, want 'hello world'", e.Text())
	}
	if err := e.Remove(0, 6); err != nil {
		t.Fatalf("Remove error = %v", err)
	}
	if e.Text() != "world" {
		t.Errorf("Text() = %q, want world", e.Text())
	}

	if err := e.Insert(99, "x"); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("Insert out of range error = %v, want ErrOffsetOutOfRange", err)
	}
	if err := e.Remove(0, -1); !errors.Is(err, ErrRangeInvalid) {
		t.Errorf("Remove negative error = %v, want ErrRangeInvalid", err)
	}
	if e.UndoCount() != 2 {
		t.Errorf("UndoCount() = %d, want 2", e.UndoCount())
	}
}

func TestUndoRedo(t *testing.T) {
	e := New(WithMergeTyping(false))
	e.Insert(0, "Hello")
	e.Insert(5, " World")

	if err := e.Undo(); err != nil {
		t.Fatalf("Undo error = %v", err)
	}
	if e.Text() != "Hello" {
		t.Errorf("after undo Text() = %q, want Hello", e.Text())
	}
	if err := e.Undo(); err != nil {
		t.Fatalf("Undo error = %v", err)
	}
	if e.Text() != "" {
		t.Errorf("after undo Text() = %q, want empty", e.Text())
	}
	if err := e.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("Undo on empty error = %v, want ErrNothingToUndo", err)
	}

	if err := e.Redo(); err != nil {
		t.Fatalf("Redo error = %v", err)
	}
	if e.Text() != "Hello" {
		t.Errorf("after redo Text() = %q, want Hello", e.Text())
	}
	if e.RedoCount() != 1 {
		t.Errorf("RedoCount() = %d, want 1", e.RedoCount())
	}

	// A new edit discards the redo stack.
	e.Insert(0, ">")
	if e.CanRedo() {
		t.Error("CanRedo() should be false after a new edit")
	}
	if err := e.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Errorf("Redo error = %v, want ErrNothingToRedo", err)
	}
}

func TestReplaceIsOneStep(t *testing.T) {
	e := New(WithContent("Hello, World!"))

	if err := e.Replace(7, 5, "Go"); err != nil {
		t.Fatalf("Replace error = %v", err)
	}
	if e.Text() != "Hello, Go!" {
		t.Errorf("Text() = %q, want 'Hello, Go!'", e.Text())
	}
	if e.UndoCount() != 1 {
		t.Fatalf("UndoCount() = %d, want 1", e.UndoCount())
	}
	if info, _ := e.History().PeekUndo(); info.Description != "Replace" {
		t.Errorf("Description = %q, want Replace", info.Description)
	}

	e.Undo()
	if e.Text() != "Hello, World!" {
		t.Errorf("after undo Text() = %q", e.Text())
	}
	e.Redo()
	if e.Text() != "Hello, Go!" {
		t.Errorf("after redo Text() = %q", e.Text())
	}
}

func TestReplaceInvalidRecordsNothing(t *testing.T) {
	e := New(WithContent("abc"))
	if err := e.Replace(2, 5, "x"); !errors.Is(err, ErrRangeInvalid) {
		t.Errorf("Replace error = %v, want ErrRangeInvalid", err)
	}
	if e.Text() != "abc" || e.UndoCount() != 0 {
		t.Errorf("Text() = %q, UndoCount() = %d; want unchanged", e.Text(), e.UndoCount())
	}
}

func TestTypingCoalesces(t *testing.T) {
	tests := []struct {
		name  string
		merge bool
		keys  []string
		steps int
		desc  string
	}{
		{"run merges", true, []string{"a", "b", "c"}, 1, `Insert "abc"`},
		{"merging off", false, []string{"a", "b", "c"}, 3, "Type 'c'"},
		{"newline ends run", true, []string{"a", "\n", "b"}, 3, "Type 'b'"},
		{"tab", true, []string{"\t"}, 1, "Insert tab"},
		{"newline", true, []string{"\n"}, 1, "Insert newline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(WithMergeTyping(tt.merge))
			for _, k := range tt.keys {
				if err := e.Insert(e.Len(), k); err != nil {
					t.Fatalf("Insert error = %v", err)
				}
			}
			if e.UndoCount() != tt.steps {
				t.Errorf("UndoCount() = %d, want %d", e.UndoCount(), tt.steps)
			}
			if info, _ := e.History().PeekUndo(); info.Description != tt.desc {
				t.Errorf("Description = %q, want %q", info.Description, tt.desc)
			}
		})
	}
}

func TestTypingElsewhereStartsNewStep(t *testing.T) {
	e := New(WithContent("xyz"))
	e.Insert(3, "a")
	e.Insert(0, "b")
	if e.UndoCount() != 2 {
		t.Errorf("UndoCount() = %d, want 2", e.UndoCount())
	}
}

func TestDeletesCoalesce(t *testing.T) {
	t.Run("backspace", func(t *testing.T) {
		e := New(WithContent("abcd"))
		e.Remove(3, 1)
		e.Remove(2, 1)
		e.Remove(1, 1)
		if e.Text() != "a" {
			t.Fatalf("Text() = %q, want a", e.Text())
		}
		if e.UndoCount() != 1 {
			t.Fatalf("UndoCount() = %d, want 1", e.UndoCount())
		}
		if info, _ := e.History().PeekUndo(); info.Description != "Backspace 3 characters" {
			t.Errorf("Description = %q", info.Description)
		}
		e.Undo()
		if e.Text() != "abcd" {
			t.Errorf("after undo Text() = %q, want abcd", e.Text())
		}
	})

	t.Run("forward delete", func(t *testing.T) {
		e := New(WithContent("abcd"))
		e.Remove(1, 1)
		e.Remove(1, 1)
		if e.UndoCount() != 1 {
			t.Fatalf("UndoCount() = %d, want 1", e.UndoCount())
		}
		if info, _ := e.History().PeekUndo(); info.Description != "Delete 2 characters" {
			t.Errorf("Description = %q", info.Description)
		}
		e.Undo()
		if e.Text() != "abcd" {
			t.Errorf("after undo Text() = %q, want abcd", e.Text())
		}
	})

	t.Run("line join ends run", func(t *testing.T) {
		e := New(WithContent("a\nb"))
		e.Remove(2, 1)
		e.Remove(1, 1)
		if e.UndoCount() != 2 {
			t.Errorf("UndoCount() = %d, want 2", e.UndoCount())
		}
	})
}

func TestGroup(t *testing.T) {
	e := New()
	e.BeginGroup("format")
	e.Insert(0, "fn")
	e.Insert(2, " main()\n")
	if err := e.EndGroup(); err != nil {
		t.Fatalf("EndGroup error = %v", err)
	}

	if e.UndoCount() != 1 {
		t.Fatalf("UndoCount() = %d, want 1", e.UndoCount())
	}
	if info, _ := e.History().PeekUndo(); info.Description != "format" {
		t.Errorf("Description = %q, want format", info.Description)
	}
	e.Undo()
	if e.Text() != "" {
		t.Errorf("after undo Text() = %q, want empty", e.Text())
	}
}

func TestTransactionRollsBack(t *testing.T) {
	e := New(WithContent("keep"))
	boom := errors.New("boom")

	err := e.Transaction("fail", func() error {
		if err := e.Insert(0, "x\n"); err != nil {
			return err
		}
		if err := e.Remove(2, 2); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction error = %v, want boom", err)
	}
	if e.Text() != "keep" {
		t.Errorf("Text() = %q, want keep", e.Text())
	}
	if e.UndoCount() != 0 || e.IsModified() {
		t.Errorf("UndoCount() = %d, IsModified() = %v; want 0, false", e.UndoCount(), e.IsModified())
	}
}

func TestSavepoint(t *testing.T) {
	e := New()
	steps := []struct {
		name     string
		do       func() error
		modified bool
	}{
		{"insert", func() error { return e.Insert(0, "abc") }, true},
		{"save", func() error { return e.Save(nil) }, false},
		{"type at savepoint", func() error { return e.Insert(3, "d") }, true},
		{"undo to savepoint", e.Undo, false},
		{"undo past savepoint", e.Undo, true},
		{"redo to savepoint", e.Redo, false},
		{"redo past savepoint", e.Redo, true},
	}

	for _, s := range steps {
		if err := s.do(); err != nil {
			t.Fatalf("%s: error = %v", s.name, err)
		}
		if e.IsModified() != s.modified {
			t.Errorf("%s: IsModified() = %v, want %v", s.name, e.IsModified(), s.modified)
		}
	}

	// Typing after the savepoint did not merge into the saved step.
	if e.UndoCount() != 2 {
		t.Errorf("UndoCount() = %d, want 2", e.UndoCount())
	}
}

func TestSaveActionsJoinLastStep(t *testing.T) {
	e := New()
	e.Insert(0, "abc")

	err := e.Save(func() error {
		return e.Insert(e.Len(), "\n")
	})
	if err != nil {
		t.Fatalf("Save error = %v", err)
	}
	if e.Text() != "abc\n" {
		t.Errorf("Text() = %q, want 'abc\\n'", e.Text())
	}
	if e.UndoCount() != 1 {
		t.Errorf("UndoCount() = %d, want 1", e.UndoCount())
	}
	if e.IsModified() {
		t.Error("IsModified() should be false after save")
	}

	e.Undo()
	if e.Text() != "" {
		t.Errorf("after undo Text() = %q, want empty", e.Text())
	}
	if !e.IsModified() {
		t.Error("IsModified() should be true after undo")
	}
}

func TestSaveActionsFailure(t *testing.T) {
	e := New()
	e.Insert(0, "abc")
	boom := errors.New("disk full")

	err := e.Save(func() error {
		e.Insert(e.Len(), "\n")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Save error = %v, want disk full", err)
	}
	if e.Text() != "abc" {
		t.Errorf("Text() = %q, want abc", e.Text())
	}
	if !e.IsModified() {
		t.Error("failed save should leave the document modified")
	}
}

func TestReadOnly(t *testing.T) {
	e := New(WithContent("fixed"), WithReadOnly())

	if err := e.Insert(0, "x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Insert error = %v, want ErrReadOnly", err)
	}
	if err := e.Remove(0, 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Remove error = %v, want ErrReadOnly", err)
	}
	if err := e.Replace(0, 1, "x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Replace error = %v, want ErrReadOnly", err)
	}
	if _, err := e.Reload("other"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Reload error = %v, want ErrReadOnly", err)
	}
	if err := e.Transaction("t", func() error { return nil }); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Transaction error = %v, want ErrReadOnly", err)
	}
	if e.Text() != "fixed" {
		t.Errorf("Text() = %q, want fixed", e.Text())
	}
	if err := e.NotifyModified(); !errors.Is(err, ErrReadOnly) {
		t.Errorf("NotifyModified() = %v, want ErrReadOnly", err)
	}
}

func TestReadOnlyRefusesDirectDocumentWrites(t *testing.T) {
	e := New(WithContent("abc"), WithReadOnly())
	doc := e.Document()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"insert", func() error { return doc.Insert(0, "x") }},
		{"remove", func() error { return doc.Remove(0, 1) }},
		{"replace", func() error { return doc.Replace(0, 1, "x") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrReadOnly) {
				t.Errorf("error = %v, want ErrReadOnly", err)
			}
			if e.Text() != "abc" {
				t.Errorf("Text() = %q, want abc", e.Text())
			}
			if e.IsModified() {
				t.Error("IsModified() = true after refused write")
			}
			if e.UndoCount() != 0 {
				t.Errorf("UndoCount() = %d, want 0", e.UndoCount())
			}
		})
	}
}

func TestDirectDocumentEditsAreRecorded(t *testing.T) {
	e := New(WithContent("abc"))
	if err := e.Document().Insert(0, "x"); err != nil {
		t.Fatalf("Insert error = %v", err)
	}
	if e.UndoCount() != 1 {
		t.Fatalf("UndoCount() = %d, want 1", e.UndoCount())
	}
	e.Undo()
	if e.Text() != "abc" {
		t.Errorf("after undo Text() = %q, want abc", e.Text())
	}
}

func TestAnnotationFollowsLine(t *testing.T) {
	e := New(WithContent("a\nb\nc\n"))

	a, err := e.Annotate(2, "breakpoint", "stop here")
	if err != nil {
		t.Fatalf("Annotate error = %v", err)
	}
	if !a.InDocument() {
		t.Error("annotation should be in the document")
	}

	var moves []string
	a.AddPropertyListener(func(c annotation.PropertyChange) {
		if c.Name == annotation.PropLineNumber {
			moves = append(moves, strings.Repeat("+", c.NewValue.(int)))
		}
	})

	e.Insert(0, "x\n")
	if got := e.AnnotationLine(a); got != 3 {
		t.Errorf("AnnotationLine after insert = %d, want 3", got)
	}
	e.Undo()
	if got := e.AnnotationLine(a); got != 2 {
		t.Errorf("AnnotationLine after undo = %d, want 2", got)
	}
	if len(moves) != 2 || moves[0] != "+++" || moves[1] != "++" {
		t.Errorf("line number changes = %v, want [+++ ++]", moves)
	}

	if _, err := e.Annotate(9, "x", ""); !errors.Is(err, ErrLineOutOfRange) {
		t.Errorf("Annotate out of range error = %v, want ErrLineOutOfRange", err)
	}
}

func TestAnnotationLineDeleted(t *testing.T) {
	e := New(WithContent("a\nb\nc"))
	a, _ := e.Annotate(1, "note", "")

	// Joining b into a deletes line 1.
	e.Remove(1, 1)
	if got := e.AnnotationLine(a); got != -1 {
		t.Errorf("AnnotationLine = %d, want -1", got)
	}

	a.Detach()
	if got := e.AnnotationLine(a); got != -1 {
		t.Errorf("AnnotationLine detached = %d, want -1", got)
	}
}

func TestOriginalLine(t *testing.T) {
	e := New(WithContent("a\nb\nc"))
	e.Insert(0, "x\n")

	tests := []struct {
		current int
		want    int
	}{
		{0, tracking.Unresolved},
		{1, 0},
		{2, 1},
		{3, 2},
	}
	for _, tt := range tests {
		if got := e.OriginalLine(tt.current); got != tt.want {
			t.Errorf("OriginalLine(%d) = %d, want %d", tt.current, got, tt.want)
		}
	}
	if got := e.CurrentLine(2); got != 3 {
		t.Errorf("CurrentLine(2) = %d, want 3", got)
	}

	e.Remove(2, 2) // drops original line a
	if got := e.CurrentLine(0); got != tracking.Unresolved {
		t.Errorf("CurrentLine(0) after delete = %d, want Unresolved", got)
	}
}

func TestNewPosition(t *testing.T) {
	e := New(WithContent("abc"))
	back := e.NewPosition(1, position.BiasBackward)
	fwd := e.NewPosition(1, position.BiasForward)

	e.Insert(1, "xx")
	if back.Offset() != 1 {
		t.Errorf("backward Offset() = %d, want 1", back.Offset())
	}
	if fwd.Offset() != 3 {
		t.Errorf("forward Offset() = %d, want 3", fwd.Offset())
	}

	e.Undo()
	if back.Offset() != 1 || fwd.Offset() != 1 {
		t.Errorf("after undo offsets = %d, %d; want 1, 1", back.Offset(), fwd.Offset())
	}
}

func TestReload(t *testing.T) {
	e := New(WithContent("a\nb\nc\n"))
	lineC, _ := e.Line(2)
	a, _ := e.Annotate(2, "note", "on c")

	stats, err := e.Reload("a\nc\nd\n")
	if err != nil {
		t.Fatalf("Reload error = %v", err)
	}
	if e.Text() != "a\nc\nd\n" {
		t.Fatalf("Text() = %q", e.Text())
	}
	if stats.LinesInserted != 1 || stats.LinesRemoved != 1 {
		t.Errorf("stats = %+v, want +1 -1", stats)
	}
	if lineC.IsDeleted() || lineC.Number() != 1 {
		t.Errorf("line c: deleted=%v number=%d; want live at 1", lineC.IsDeleted(), lineC.Number())
	}
	if got := e.AnnotationLine(a); got != 1 {
		t.Errorf("AnnotationLine = %d, want 1", got)
	}
	if e.UndoCount() != 1 {
		t.Errorf("UndoCount() = %d, want 1", e.UndoCount())
	}

	e.Undo()
	if e.Text() != "a\nb\nc\n" {
		t.Errorf("after undo Text() = %q", e.Text())
	}
	if got := e.AnnotationLine(a); got != 2 {
		t.Errorf("AnnotationLine after undo = %d, want 2", got)
	}
}

func TestReloadUnchanged(t *testing.T) {
	e := New(WithContent("same\n"))
	stats, err := e.Reload("same\n")
	if err != nil {
		t.Fatalf("Reload error = %v", err)
	}
	if stats != (ReloadStats{}) || e.UndoCount() != 0 {
		t.Errorf("stats = %+v, UndoCount() = %d; want no change", stats, e.UndoCount())
	}
}

func TestClose(t *testing.T) {
	e := New(WithContent("abc"))
	e.Insert(0, "x")

	if err := e.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}
	if err := e.Insert(0, "y"); !errors.Is(err, ErrClosed) {
		t.Errorf("Insert after Close = %v, want ErrClosed", err)
	}
	if err := e.Undo(); !errors.Is(err, ErrClosed) {
		t.Errorf("Undo after Close = %v, want ErrClosed", err)
	}
	if err := e.Save(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Save after Close = %v, want ErrClosed", err)
	}
	if e.Text() != "xabc" {
		t.Errorf("Text() = %q, want xabc", e.Text())
	}
}

func TestSessionID(t *testing.T) {
	a, b := New(), New()
	if a.SessionID() == b.SessionID() {
		t.Error("sessions should have distinct ids")
	}
}

func TestConcurrentEdits(t *testing.T) {
	e := New(WithMergeTyping(false))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Insert(0, "x")
			_ = e.Text()
			_ = e.LineCount()
		}()
	}
	wg.Wait()

	if e.Len() != 20 {
		t.Errorf("Len() = %d, want 20", e.Len())
	}
	if e.UndoCount() != 20 {
		t.Errorf("UndoCount() = %d, want 20", e.UndoCount())
	}
}
