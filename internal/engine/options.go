package engine

import (
	"github.com/dshills/linekeeper/internal/config"
	"github.com/dshills/linekeeper/internal/engine/history"
	"github.com/dshills/linekeeper/internal/logging"
)

// Default configuration values.
const (
	DefaultMaxUndoEntries = history.DefaultLimit
)

// Option configures an Engine during creation.
type Option func(*Engine)

// WithContent sets the initial content of the engine.
func WithContent(content string) Option {
	return func(e *Engine) {
		e.initContent = content
	}
}

// WithMaxUndoEntries sets the maximum number of undo history entries.
func WithMaxUndoEntries(max int) Option {
	return func(e *Engine) {
		if max > 0 {
			e.maxUndoEntries = max
		}
	}
}

// WithMergeTyping sets whether consecutive typing and deleting coalesce
// into one undo step.
func WithMergeTyping(merge bool) Option {
	return func(e *Engine) {
		e.mergeTyping = merge
	}
}

// WithReadOnly creates a read-only engine.
// Write operations will return ErrReadOnly.
func WithReadOnly() Option {
	return func(e *Engine) {
		e.readOnly = true
	}
}

// WithLogger sets the logger shared by the engine's components.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.rootLogger = l
		}
	}
}

// WithConfig applies the history and document settings of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		if cfg == nil {
			return
		}
		if cfg.History.MaxEntries > 0 {
			e.maxUndoEntries = cfg.History.MaxEntries
		}
		e.mergeTyping = cfg.History.MergeTyping
		e.readOnly = cfg.Document.ReadOnly
	}
}
