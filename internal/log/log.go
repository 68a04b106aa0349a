// Package log provides the component-scoped structured logger used
// throughout this module.
//
// It wraps the standard library's log/slog directly rather than
// introducing another logging abstraction.
package log

import (
	"io"
	"log/slog"
	"os"
)

var defaultLogger = slog.Default()

// LevelInfo is the default level new output is configured at.
const LevelInfo = slog.LevelInfo

// currentLevel is the level last set by SetLevel.
var currentLevel = LevelInfo

// SetOutput redirects the default logger's output, keeping its level.
func SetOutput(w io.Writer) {
	defaultLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: currentLevel}))
	slog.SetDefault(defaultLogger)
}

// SetLevel recreates the default logger at the given level, writing to stderr.
func SetLevel(level slog.Level) {
	currentLevel = level
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(defaultLogger)
}

// Logger is a component-scoped handle that always logs through the
// current default logger, so SetOutput/SetLevel take effect for loggers
// obtained before the change.
type Logger struct {
	component string
}

// Component returns a logger scoped to the given component name.
func Component(component string) *Logger {
	return &Logger{component: component}
}

// Debug logs a debug-level message tagged with this logger's component.
func (l *Logger) Debug(msg string, args ...any) {
	slog.Default().With("component", l.component).Debug(msg, args...)
}

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: LevelInfo}))
}
