package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/linekeeper/internal/config"
	"github.com/dshills/linekeeper/internal/engine"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestApp(t *testing.T, opts Options) *Application {
	t.Helper()
	if opts.LogOutput == nil {
		opts.LogOutput = io.Discard
	}
	app, err := New(opts)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	t.Cleanup(app.Shutdown)
	return app
}

func TestRunScripts(t *testing.T) {
	dir := t.TempDir()
	content := writeFile(t, dir, "doc.txt", "one\ntwo\n")
	first := writeFile(t, dir, "a.lua", `doc.insert(0, "zero\n")`)
	second := writeFile(t, dir, "b.lua", `assert(doc.original_line(2) == 1)`)

	var out bytes.Buffer
	app := newTestApp(t, Options{
		ContentPath: content,
		Scripts:     []string{first, second},
		Output:      &out,
	})

	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if out.String() != "zero\none\ntwo\n" {
		t.Errorf("output = %q", out.String())
	}
	if !app.IsRunning() {
		t.Error("IsRunning() should be true after Run")
	}
	if err := app.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunScriptFailure(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.lua", `error("broken")`)

	app := newTestApp(t, Options{Scripts: []string{bad}, Output: io.Discard})
	err := app.Run(context.Background())

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("Run error = %v, want *OperationError", err)
	}
	if opErr.Op != "run" || opErr.Target != bad {
		t.Errorf("OperationError = %+v", opErr)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("Error() = %q, want script message", err.Error())
	}
}

func TestRunWithoutScripts(t *testing.T) {
	app := newTestApp(t, Options{Output: io.Discard})
	for i := 0; i < 2; i++ {
		if err := app.Run(context.Background()); !errors.Is(err, ErrNoScripts) {
			t.Errorf("Run #%d error = %v, want ErrNoScripts", i+1, err)
		}
	}
	if app.IsRunning() {
		t.Error("IsRunning() should be false when there was nothing to run")
	}
}

func TestOptionsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "lk.toml", "[log]\nlevel = \"error\"\n[history]\nmax_entries = 3\n")

	app := newTestApp(t, Options{
		ConfigPath: cfgPath,
		LogLevel:   "debug",
		ReadOnly:   true,
		Watch:      true,
	})

	cfg := app.Config()
	if cfg.Log.Level != "debug" || !cfg.Document.ReadOnly || !cfg.Script.Watch {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.History.MaxEntries != 3 {
		t.Errorf("MaxEntries = %d, want 3", cfg.History.MaxEntries)
	}
	if !app.Engine().IsReadOnly() {
		t.Error("engine should be read-only")
	}
	if err := app.Engine().Insert(0, "x"); !errors.Is(err, engine.ErrReadOnly) {
		t.Errorf("Insert error = %v, want ErrReadOnly", err)
	}
}

func TestInitErrors(t *testing.T) {
	dir := t.TempDir()
	badCfg := writeFile(t, dir, "bad.yaml", "history: [")

	tests := []struct {
		name      string
		opts      Options
		component string
	}{
		{"config parse", Options{ConfigPath: badCfg}, "config"},
		{"log level", Options{LogLevel: "chatty"}, "config"},
		{"content is a directory", Options{ContentPath: dir}, "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.LogOutput = io.Discard
			_, err := New(tt.opts)
			var initErr *InitError
			if !errors.As(err, &initErr) {
				t.Fatalf("New error = %v, want *InitError", err)
			}
			if initErr.Component != tt.component {
				t.Errorf("Component = %q, want %q", initErr.Component, tt.component)
			}
		})
	}

	t.Run("parse error is reachable", func(t *testing.T) {
		_, err := New(Options{ConfigPath: badCfg, LogOutput: io.Discard})
		var perr *config.ParseError
		if !errors.As(err, &perr) {
			t.Errorf("New error = %v, want *config.ParseError inside", err)
		}
	})
}

func TestMissingContentStartsEmpty(t *testing.T) {
	app := newTestApp(t, Options{ContentPath: filepath.Join(t.TempDir(), "new.txt")})
	if app.Engine().Text() != "" {
		t.Errorf("Text() = %q, want empty", app.Engine().Text())
	}
}

func TestWatchReloadsContent(t *testing.T) {
	dir := t.TempDir()
	content := writeFile(t, dir, "doc.txt", "a\nb\nc\n")
	cfgPath := writeFile(t, dir, "lk.toml", "[script]\ndebounce_ms = 20\n")
	annotate := writeFile(t, dir, "mark.lua", `mark = doc.annotate(2, "note", "on c")`)

	app := newTestApp(t, Options{
		ConfigPath:  cfgPath,
		ContentPath: content,
		Scripts:     []string{annotate},
		Watch:       true,
		Output:      io.Discard,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	// Give the watcher time to start before changing the file.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "doc.txt", "a\nc\n")

	deadline := time.Now().Add(3 * time.Second)
	for (app.Engine().Text() != "a\nc\n" || app.Engine().IsModified()) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := app.Engine().Text(); got != "a\nc\n" {
		t.Fatalf("Text() = %q after reload", got)
	}
	if app.Engine().IsModified() {
		t.Error("reloaded content should be the saved state")
	}

	l, err := app.Engine().Line(1)
	if err != nil {
		t.Fatalf("Line(1) error = %v", err)
	}
	if l.AnnotationCount() != 1 {
		t.Errorf("line c annotations = %d, want 1", l.AnnotationCount())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
