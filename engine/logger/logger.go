// Package logger holds the structured logger shared by every engine subsystem.
// Nothing is logged until SetLogger installs a real handler.
package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr is read from resource worker goroutines as well as the frame loop.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger replaces the engine-wide logger. Passing nil restores the silent default.
//
// Levels used across the engine:
//   - slog.LevelDebug: per-frame traces (pass order, uniform pushes)
//   - slog.LevelInfo: lifecycle milestones (surface configured, resources ready)
//   - slog.LevelWarn: rejected input (malformed event names, unknown asset types)
//   - slog.LevelError: failures isolated at a boundary (asset load errors, recovered tick panics)
//
// Parameters:
//   - l: the logger to install, or nil
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current engine logger. Safe for concurrent use.
//
// Returns:
//   - *slog.Logger: the active logger, never nil
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
