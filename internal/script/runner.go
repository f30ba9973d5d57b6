package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/linekeeper/internal/engine"
	"github.com/dshills/linekeeper/internal/logging"
)

// DefaultTimeout bounds one script run.
const DefaultTimeout = 5 * time.Second

// Runner executes Lua scripts against one engine.
//
// gopher-lua's LState is not goroutine-safe; Runner serializes runs with a
// mutex.
type Runner struct {
	mu sync.Mutex

	L       *lua.LState
	eng     *engine.Engine
	logger  *logging.Logger
	timeout time.Duration
	closed  bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout sets the time limit of one run. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger. doc.log writes to it.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l.WithComponent("script")
		}
	}
}

// NewRunner creates a sandboxed Lua state bound to eng.
func NewRunner(eng *engine.Engine, opts ...Option) *Runner {
	r := &Runner{
		eng:     eng,
		logger:  logging.Nop(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(r.L)
	r.L.SetGlobal("doc", r.docTable())
	return r
}

// openSafeLibraries opens only safe Lua standard libraries and removes the
// base functions that load code from disk or strings.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// RunString runs code. name identifies the chunk in error messages.
func (r *Runner) RunString(ctx context.Context, code, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRunnerClosed
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	fn, err := r.L.Load(strings.NewReader(code), name)
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}

	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	start := time.Now()
	err = r.doWithRecovery(func() error {
		r.L.Push(fn)
		return r.L.PCall(0, lua.MultRet, nil)
	})
	r.L.SetTop(0)

	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("run %s: %w", name, cerr)
		}
		return fmt.Errorf("run %s: %w", name, err)
	}
	r.logger.Debug("ran %s in %v", name, time.Since(start))
	return nil
}

// RunFile runs the script at path.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return r.RunString(ctx, string(code), path)
}

// doWithRecovery executes a function with panic recovery.
func (r *Runner) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("lua panic: %v", rec)
		}
	}()
	return fn()
}

// Close releases the Lua state.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.L.Close()
}

// IsTimeout reports whether err ended a run because its time ran out.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
