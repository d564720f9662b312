package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/spiffcs/staticmap/internal/constants"
)

// Verbosity levels
const (
	LevelQuiet = iota // Default: only errors and warnings
	LevelInfo         // -v: progress messages, fetch outcomes
	LevelDebug        // -vv: requests, cache operations, task lifecycle
	LevelTrace        // -vvv: full details, every task transition
)

// Custom slog levels mapped to our verbosity
const (
	slogLevelTrace = slog.Level(-8) // Below debug
)

// Task goroutines log concurrently with the command goroutine, so every
// piece of package state is guarded by mu.
var (
	mu          sync.Mutex
	verbosity   int
	logger      *slog.Logger
	output      io.Writer
	inProgress  bool // tracks if we have an in-progress line
	lastPercent = -1
)

// Initialize sets up the global logger with the specified verbosity level
func Initialize(level int, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	verbosity = level
	output = w
	inProgress = false
	lastPercent = -1

	// Map our verbosity to slog levels
	var slogLevel slog.Level
	switch {
	case level >= LevelTrace:
		slogLevel = slogLevelTrace
	case level >= LevelDebug:
		slogLevel = slog.LevelDebug
	case level >= LevelInfo:
		slogLevel = slog.LevelInfo
	default:
		slogLevel = slog.LevelWarn
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slogLevel,
	})
	logger = slog.New(handler)
}

// Info logs at info level (-v)
func Info(msg string, args ...any) {
	logAt(LevelInfo, slog.LevelInfo, msg, args...)
}

// Debug logs at debug level (-vv)
func Debug(msg string, args ...any) {
	logAt(LevelDebug, slog.LevelDebug, msg, args...)
}

// Trace logs at trace level (-vvv)
func Trace(msg string, args ...any) {
	logAt(LevelTrace, slogLevelTrace, msg, args...)
}

// Warn logs at warn level (always visible)
func Warn(msg string, args ...any) {
	logAt(LevelQuiet, slog.LevelWarn, msg, args...)
}

// Error logs at error level (always visible)
func Error(msg string, args ...any) {
	logAt(LevelQuiet, slog.LevelError, msg, args...)
}

func logAt(min int, level slog.Level, msg string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if verbosity < min {
		return
	}
	clearProgress()
	logger.Log(context.Background(), level, msg, args...)
}

// Progress prints a progress message with carriage return (no newline)
// Only shown at info level or higher
func Progress(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if verbosity >= LevelInfo {
		inProgress = true
		_, _ = fmt.Fprintf(output, "\r"+format, args...)
	}
}

// ProgressPercent prints a progress line for label, throttled to steps of
// constants.LogThrottlePercent. 100 is always printed.
func ProgressPercent(label string, percent int) {
	mu.Lock()
	defer mu.Unlock()
	if verbosity < LevelInfo {
		return
	}
	step := percent / constants.LogThrottlePercent
	if percent != 100 && lastPercent >= 0 && step == lastPercent/constants.LogThrottlePercent {
		return
	}
	lastPercent = percent
	inProgress = true
	_, _ = fmt.Fprintf(output, "\r%s %3d%%", label, percent)
}

// ProgressDone completes a progress line with "done" and newline
func ProgressDone() {
	mu.Lock()
	defer mu.Unlock()
	if verbosity >= LevelInfo && inProgress {
		_, _ = fmt.Fprintln(output, " done")
		inProgress = false
	}
	lastPercent = -1
}

// ProgressClear clears the current progress line
func ProgressClear() {
	mu.Lock()
	defer mu.Unlock()
	if inProgress {
		_, _ = fmt.Fprint(output, "\r\033[K") // carriage return + clear to end of line
		inProgress = false
	}
	lastPercent = -1
}

// clearProgress ensures we don't write over a progress line.
// Must be called with mu held.
func clearProgress() {
	if inProgress {
		_, _ = fmt.Fprintln(output) // just add a newline to preserve the progress
		inProgress = false
	}
}

// IsInfo returns true if info-level logging is enabled
func IsInfo() bool {
	return Verbosity() >= LevelInfo
}

// IsDebug returns true if debug-level logging is enabled
func IsDebug() bool {
	return Verbosity() >= LevelDebug
}

// IsTrace returns true if trace-level logging is enabled
func IsTrace() bool {
	return Verbosity() >= LevelTrace
}

// Verbosity returns the current verbosity level
func Verbosity() int {
	mu.Lock()
	defer mu.Unlock()
	return verbosity
}

// SetOutput changes the progress output writer (useful for testing)
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func init() {
	// Default initialization with quiet mode to stderr
	output = os.Stderr
	verbosity = LevelQuiet
	logger = slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}
