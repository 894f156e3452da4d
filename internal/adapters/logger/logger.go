// Package logger implements stu's logging adapter using log/slog, with
// color gated the way the teacher's TUI stack gates it: only when the
// destination is actually a terminal (github.com/mattn/go-isatty), rendered
// through github.com/muesli/termenv.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"go.stu.dev/stu/internal/core/ports"
)

// Logger implements ports.Logger using log/slog with a handler that
// colorizes its level marker when writing to a terminal.
type Logger struct {
	logger *slog.Logger
	mu     sync.RWMutex
}

// New creates a Logger writing to os.Stderr (§5's "output ... written to
// stderr" convention), colorized only if stderr is a terminal.
func New() ports.Logger {
	return &Logger{logger: slog.New(newHandler(os.Stderr))}
}

// SetOutput redirects the logger to w, re-deriving color support for the
// new destination so redirecting to a file or pipe never emits escape
// codes even if the original destination was a terminal.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = slog.New(newHandler(w))
}

// Info logs an informational message (a command's stdout line, §4.5).
func (l *Logger) Info(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg)
}

// Warn logs a non-fatal advisory, such as a failed OPTIONAL dependency
// the Job Scheduler chose not to fail its parent over (§4.1).
func (l *Logger) Warn(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg)
}

// Error logs a build or command failure (§7's user-visible failure
// reporting is layered on top in internal/format; this is the raw line).
func (l *Logger) Error(err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Error(err.Error())
}
