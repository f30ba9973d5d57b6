package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/linekeeper/internal/logging"
)

// Config holds the settings of an editing session.
type Config struct {
	Log      LogConfig      `toml:"log" yaml:"log"`
	History  HistoryConfig  `toml:"history" yaml:"history"`
	Document DocumentConfig `toml:"document" yaml:"document"`
	Script   ScriptConfig   `toml:"script" yaml:"script"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level  string `toml:"level" yaml:"level"`
	Prefix string `toml:"prefix" yaml:"prefix"`
}

// HistoryConfig configures undo history.
type HistoryConfig struct {
	// MaxEntries caps the undo stack.
	MaxEntries int `toml:"max_entries" yaml:"max_entries"`
	// MergeTyping coalesces consecutive typing into one undo step.
	MergeTyping bool `toml:"merge_typing" yaml:"merge_typing"`
}

// DocumentConfig configures the document.
type DocumentConfig struct {
	ReadOnly bool `toml:"read_only" yaml:"read_only"`
}

// ScriptConfig configures script execution.
type ScriptConfig struct {
	// TimeoutMS bounds one script run. Zero means no limit.
	TimeoutMS int `toml:"timeout_ms" yaml:"timeout_ms"`
	// Watch reruns the script when it changes on disk.
	Watch bool `toml:"watch" yaml:"watch"`
	// DebounceMS is the delay before a change is reported.
	DebounceMS int `toml:"debounce_ms" yaml:"debounce_ms"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Prefix: "linekeeper",
		},
		History: HistoryConfig{
			MaxEntries:  1000,
			MergeTyping: true,
		},
		Script: ScriptConfig{
			TimeoutMS:  5000,
			DebounceMS: 200,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log.level: unknown level %q", ErrValidationFailed, c.Log.Level)
	}
	if c.History.MaxEntries <= 0 {
		return fmt.Errorf("%w: history.max_entries must be positive, got %d", ErrValidationFailed, c.History.MaxEntries)
	}
	if c.Script.TimeoutMS < 0 {
		return fmt.Errorf("%w: script.timeout_ms must not be negative, got %d", ErrValidationFailed, c.Script.TimeoutMS)
	}
	if c.Script.DebounceMS < 0 {
		return fmt.Errorf("%w: script.debounce_ms must not be negative, got %d", ErrValidationFailed, c.Script.DebounceMS)
	}
	return nil
}

// LogLevel returns the parsed log level. An unknown or empty name is info.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Log.Level)
}

// ScriptTimeout returns the script timeout. Zero means no limit.
func (c *Config) ScriptTimeout() time.Duration {
	return time.Duration(c.Script.TimeoutMS) * time.Millisecond
}

// Debounce returns the watcher debounce delay.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Script.DebounceMS) * time.Millisecond
}
