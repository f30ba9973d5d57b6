// Package app provides the main application structure and coordination.
//
// An Application loads the configuration, builds the editing engine over
// the content file and runs Lua scripts against it. In watch mode it reruns
// a script when it changes and reloads the content when the file changes on
// disk, so annotations made by scripts follow their lines across reloads.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dshills/linekeeper/internal/config"
	"github.com/dshills/linekeeper/internal/engine"
	"github.com/dshills/linekeeper/internal/logging"
	"github.com/dshills/linekeeper/internal/script"
)

// Application is the central coordinator for all linekeeper components.
type Application struct {
	opts Options

	cfg    *config.Config
	logger *logging.Logger
	engine *engine.Engine
	runner *script.Runner

	running      atomic.Bool
	shutdownOnce sync.Once
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// ContentPath is the file the document is loaded from. A missing file
	// starts an empty document.
	ContentPath string

	// Scripts are Lua files run in order.
	Scripts []string

	// LogLevel overrides the configured level when non-empty.
	LogLevel string

	// Watch reruns scripts and reloads content when the files change.
	Watch bool

	// ReadOnly opens the content read-only.
	ReadOnly bool

	// Output receives the document text after each run. Defaults to os.Stdout.
	Output io.Writer

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	app := &Application{opts: opts}
	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Configuration
	cfg := config.Default()
	if app.opts.ConfigPath != "" {
		loaded, err := config.Load(app.opts.ConfigPath)
		if err != nil {
			return &InitError{Component: "config", Err: err}
		}
		cfg = loaded
	}
	if app.opts.LogLevel != "" {
		cfg.Log.Level = app.opts.LogLevel
	}
	if app.opts.Watch {
		cfg.Script.Watch = true
	}
	if app.opts.ReadOnly {
		cfg.Document.ReadOnly = true
	}
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.cfg = cfg

	// 2. Logging
	app.logger = logging.New(logging.Config{
		Level:  cfg.LogLevel(),
		Output: app.opts.LogOutput,
		Prefix: cfg.Log.Prefix,
	})

	// 3. Engine
	content, err := app.readContent()
	if err != nil {
		return &InitError{Component: "content", Err: err}
	}
	app.engine = engine.New(
		engine.WithContent(content),
		engine.WithConfig(cfg),
		engine.WithLogger(app.logger),
	)

	// 4. Scripting
	app.runner = script.NewRunner(app.engine,
		script.WithTimeout(cfg.ScriptTimeout()),
		script.WithLogger(app.logger),
	)

	app.logger.Debug("initialized: %d lines, %d scripts", app.engine.LineCount(), len(app.opts.Scripts))
	return nil
}

func (app *Application) readContent() (string, error) {
	if app.opts.ContentPath == "" {
		return "", nil
	}
	data, err := os.ReadFile(app.opts.ContentPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// Run runs the scripts and writes the resulting text. In watch mode it then
// keeps running until ctx is done.
func (app *Application) Run(ctx context.Context) error {
	if len(app.opts.Scripts) == 0 {
		return ErrNoScripts
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	for _, path := range app.opts.Scripts {
		if err := app.runScript(ctx, path); err != nil {
			return err
		}
	}
	app.writeOutput()

	if !app.cfg.Script.Watch {
		return nil
	}
	return app.watch(ctx)
}

func (app *Application) runScript(ctx context.Context, path string) error {
	if err := app.runner.RunFile(ctx, path); err != nil {
		return &OperationError{Op: "run", Target: path, Err: err}
	}
	app.logger.Info("ran %s: modified=%v undo=%d", filepath.Base(path), app.engine.IsModified(), app.engine.UndoCount())
	return nil
}

// reloadContent brings the document in line with the content file, which
// then is the saved state.
func (app *Application) reloadContent() error {
	content, err := app.readContent()
	if err != nil {
		return &OperationError{Op: "reload", Target: app.opts.ContentPath, Err: err}
	}
	stats, err := app.engine.Reload(content)
	if err != nil {
		return &OperationError{Op: "reload", Target: app.opts.ContentPath, Err: err}
	}
	if err := app.engine.Save(nil); err != nil {
		return &OperationError{Op: "reload", Target: app.opts.ContentPath, Err: err}
	}
	app.logger.Info("reloaded %s: +%d -%d lines", filepath.Base(app.opts.ContentPath), stats.LinesInserted, stats.LinesRemoved)
	return nil
}

// watch reruns changed scripts and reloads changed content until ctx is
// done. Failures are logged and do not stop watching.
func (app *Application) watch(ctx context.Context) error {
	w, err := config.NewWatcher(app.cfg.Debounce(), config.WithWatcherLogger(app.logger))
	if err != nil {
		return &InitError{Component: "watcher", Err: err}
	}
	defer w.Close()

	for _, path := range app.opts.Scripts {
		if err := w.Watch(path); err != nil {
			return &OperationError{Op: "watch", Target: path, Err: err}
		}
	}
	var contentAbs string
	if app.opts.ContentPath != "" {
		if err := w.Watch(app.opts.ContentPath); err != nil {
			return &OperationError{Op: "watch", Target: app.opts.ContentPath, Err: err}
		}
		contentAbs, _ = filepath.Abs(app.opts.ContentPath)
	}

	changes := make(chan string, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- w.Run(ctx, func(path string) {
			select {
			case changes <- path:
			case <-ctx.Done():
			}
		})
	}()

	app.logger.Info("watching %d files", len(w.WatchedFiles()))
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errc:
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("watch: %w", err)

		case path := <-changes:
			var err error
			if path == contentAbs {
				err = app.reloadContent()
			} else {
				err = app.runScript(ctx, path)
			}
			if err != nil {
				app.logger.Error("%v", err)
				continue
			}
			app.writeOutput()
		}
	}
}

func (app *Application) writeOutput() {
	if _, err := io.WriteString(app.opts.Output, app.engine.Text()); err != nil {
		app.logger.Warn("write output: %v", err)
	}
}

// Shutdown releases the runner and closes the engine. Safe to call more
// than once.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(func() {
		app.runner.Close()
		app.engine.Close()
		app.logger.Debug("shutdown complete")
	})
}

// IsRunning returns true if Run has been called.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the effective configuration.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Engine returns the editing engine.
func (app *Application) Engine() *engine.Engine {
	return app.engine
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}
