// Package debug provides conditional debug logging for rv.
//
// Debug logging is enabled by setting the RV_DEBUG environment variable:
//
//	RV_DEBUG=1 rv --url https://git.example.com
//
// Messages go to stderr with timestamps, or to the file named by
// RV_DEBUG_FILE (the TUI owns the terminal, so a file is usually what you
// want). When disabled, all functions are no-ops.
package debug

import (
	"io"
	"log"
	"os"
	"time"
)

var (
	enabled bool
	logger  *log.Logger
)

func init() {
	if os.Getenv("RV_DEBUG") != "" {
		SetEnabled(true)
	}
}

func newLogger() *log.Logger {
	var w io.Writer = os.Stderr
	if path := os.Getenv("RV_DEBUG_FILE"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			w = f
		}
	}
	return log.New(w, "[RV_DEBUG] ", log.Ltime|log.Lmicroseconds)
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled = e
	if e && logger == nil {
		logger = newLogger()
	}
}

// SetOutput redirects debug output. Mostly useful in tests.
func SetOutput(w io.Writer) {
	logger = log.New(w, "[RV_DEBUG] ", 0)
}

// Logger returns the debug logger, or a discarding logger when disabled.
// Pass it to packages that take a *log.Logger.
func Logger() *log.Logger {
	if !enabled || logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return logger
}

// Log writes a printf-style debug message.
func Log(format string, args ...any) {
	if !enabled {
		return
	}
	logger.Printf(format, args...)
}

// LogIf writes a debug message only if cond is true.
func LogIf(cond bool, format string, args ...any) {
	if !enabled || !cond {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming writes a timing message.
func LogTiming(name string, d time.Duration) {
	if !enabled {
		return
	}
	logger.Printf("%s took %v", name, d)
}

// LogEnterExit logs function entry and exit with timing.
//
//	defer debug.LogEnterExit("crawl")()
func LogEnterExit(name string) func() {
	if !enabled {
		return func() {}
	}
	logger.Printf("-> %s", name)
	start := time.Now()
	return func() {
		logger.Printf("<- %s (%v)", name, time.Since(start))
	}
}
