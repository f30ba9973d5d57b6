package script

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/linekeeper/internal/engine"
	"github.com/dshills/linekeeper/internal/logging"
)

func newRunner(t *testing.T, content string, opts ...Option) (*Runner, *engine.Engine) {
	t.Helper()
	e := engine.New(engine.WithContent(content))
	r := NewRunner(e, opts...)
	t.Cleanup(r.Close)
	return r, e
}

func run(t *testing.T, r *Runner, code string) {
	t.Helper()
	if err := r.RunString(context.Background(), code, "test"); err != nil {
		t.Fatalf("RunString error = %v", err)
	}
}

func TestEditing(t *testing.T) {
	r, e := newRunner(t, "b\n")
	run(t, r, `
		assert(doc.insert(0, "a\n"))
		assert(doc.replace(2, 1, "B"))
		assert(doc.line_count() == 3)
		assert(doc.line_text(1) == "B")
		assert(doc.remove(0, 2))
	`)
	if e.Text() != "B\n" {
		t.Errorf("Text() = %q, want 'B\\n'", e.Text())
	}
}

func TestErrorsReturnNilAndMessage(t *testing.T) {
	r, _ := newRunner(t, "abc")
	run(t, r, `
		local ok, msg = doc.insert(99, "x")
		assert(ok == nil, "insert out of range should fail")
		assert(string.find(msg, "out of range"), msg)

		local text, err = doc.line_text(5)
		assert(text == nil and err ~= nil)

		ok, msg = doc.undo()
		assert(ok == nil and string.find(msg, "nothing to undo"), msg)
	`)
}

func TestUndoRedoAndSave(t *testing.T) {
	r, e := newRunner(t, "")
	run(t, r, `
		doc.insert(0, "hello")
		assert(doc.modified())
		assert(doc.save(function()
			doc.insert(5, "\n")
		end))
		assert(not doc.modified())
		assert(doc.text() == "hello\n")
		assert(doc.can_undo())
		assert(doc.undo())
		assert(doc.text() == "")
		assert(doc.can_redo())
		assert(doc.redo())
		assert(not doc.modified())
	`)
	if e.UndoCount() != 1 {
		t.Errorf("UndoCount() = %d, want 1", e.UndoCount())
	}
}

func TestSaveActionErrorRollsBack(t *testing.T) {
	r, e := newRunner(t, "x")
	run(t, r, `
		doc.insert(1, "y")
		local ok, msg = doc.save(function()
			doc.insert(0, "z")
			error("cannot write")
		end)
		assert(ok == nil and string.find(msg, "cannot write"), msg)
		assert(doc.text() == "xy")
		assert(doc.modified())
	`)
	if e.Text() != "xy" {
		t.Errorf("Text() = %q, want xy", e.Text())
	}
}

func TestGroupsAndTransactions(t *testing.T) {
	r, e := newRunner(t, "")
	run(t, r, `
		doc.begin_group("header")
		doc.insert(0, "a\n")
		doc.insert(2, "b\n")
		assert(doc.end_group())

		local ok = doc.transaction("abort", function()
			doc.insert(0, "zzz\n")
			return false
		end)
		assert(ok == nil)
		assert(doc.text() == "a\nb\n")

		assert(doc.transaction("commit", function()
			doc.insert(4, "c\n")
		end))
	`)
	if e.UndoCount() != 2 {
		t.Errorf("UndoCount() = %d, want 2", e.UndoCount())
	}
}

func TestPositionsAndAnnotations(t *testing.T) {
	r, _ := newRunner(t, "one\ntwo\nthree\n")
	run(t, r, `
		local p = doc.position(4)
		local f = doc.position(4, "forward")
		local a = doc.annotate(1, "todo", "fix two")
		doc.insert(4, "new\n")
		assert(doc.position_offset(p) == 4)
		assert(doc.position_offset(f) == 8)
		assert(doc.annotation_line(a) == 2)
		assert(doc.original_line(1) == nil)
		assert(doc.original_line(2) == 1)

		-- joining line 2 into line 1 deletes it
		doc.remove(7, 1)
		assert(doc.annotation_line(a) == nil)
	`)
}

func TestReload(t *testing.T) {
	r, e := newRunner(t, "a\nb\nc\n")
	run(t, r, `
		local a = doc.annotate(2, "note")
		local ins, rem = doc.reload("a\nc\n")
		assert(ins == 0 and rem == 1)
		assert(doc.annotation_line(a) == 1)
	`)
	if e.Text() != "a\nc\n" {
		t.Errorf("Text() = %q", e.Text())
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf})
	r, _ := newRunner(t, "", WithLogger(logger))
	run(t, r, `
		doc.log("hello from lua")
		doc.log("careful", "warn")
	`)
	out := buf.String()
	if !strings.Contains(out, "hello from lua") || !strings.Contains(out, "careful") {
		t.Errorf("log output = %q", out)
	}
	if !strings.Contains(out, "WARN") {
		t.Errorf("log output = %q, want a WARN line", out)
	}
}

func TestSandbox(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"os", `os.exit(1)`},
		{"io", `io.open("/etc/passwd")`},
		{"dofile", `dofile("/etc/passwd")`},
		{"loadstring", `loadstring("return 1")()`},
		{"require", `require("os")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newRunner(t, "")
			if err := r.RunString(context.Background(), tt.code, tt.name); err == nil {
				t.Errorf("%s should not be available", tt.name)
			}
		})
	}

	t.Run("safe libraries", func(t *testing.T) {
		r, _ := newRunner(t, "")
		run(t, r, `
			assert(string.upper("a") == "A")
			assert(math.max(1, 2) == 2)
			assert(table.concat({"x", "y"}) == "xy")
		`)
	})
}

func TestCompileError(t *testing.T) {
	r, _ := newRunner(t, "")
	err := r.RunString(context.Background(), "doc.insert(", "broken.lua")
	if err == nil || !strings.Contains(err.Error(), "compile broken.lua") {
		t.Errorf("RunString error = %v, want compile error", err)
	}
}

func TestTimeout(t *testing.T) {
	r, _ := newRunner(t, "", WithTimeout(50*time.Millisecond))

	start := time.Now()
	err := r.RunString(context.Background(), "while true do end", "loop")
	if !IsTimeout(err) {
		t.Fatalf("RunString error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}

	// The state is usable after a timeout.
	run(t, r, `assert(doc.text() == "")`)
}

func TestContextCancel(t *testing.T) {
	r, _ := newRunner(t, "", WithTimeout(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RunString(ctx, "while true do end", "loop")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunString error = %v, want context.Canceled", err)
	}
}

func TestRunFile(t *testing.T) {
	r, e := newRunner(t, "")
	path := filepath.Join(t.TempDir(), "edit.lua")
	if err := os.WriteFile(path, []byte(`doc.insert(0, "from file")`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := r.RunFile(context.Background(), path); err != nil {
		t.Fatalf("RunFile error = %v", err)
	}
	if e.Text() != "from file" {
		t.Errorf("Text() = %q, want 'from file'", e.Text())
	}
	if err := r.RunFile(context.Background(), path+".missing"); err == nil {
		t.Error("RunFile on missing file should fail")
	}
}

func TestClosedRunner(t *testing.T) {
	e := engine.New()
	r := NewRunner(e)
	r.Close()
	r.Close()

	if err := r.RunString(context.Background(), "", "x"); !errors.Is(err, ErrRunnerClosed) {
		t.Errorf("RunString error = %v, want ErrRunnerClosed", err)
	}
}
