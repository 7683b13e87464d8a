// Package logging promotes the teacher's inline log.Printf("[DEBUG] ...")
// idiom (seen throughout server/server.go and internal/indexer) into a
// small package so every component tags its own severity consistently.
// It wraps the standard log package rather than pulling in a structured
// logging library, since none appears anywhere in the retrieval pack.
package logging

import (
	"log"
	"os"
	"sync/atomic"
)

var traceEnabled atomic.Bool

// SetTrace turns [TRACE]-level output on or off; it is driven by the
// CLI's global --trace flag and DESKTOP_INDEXER_TIMING.
func SetTrace(enabled bool) {
	traceEnabled.Store(enabled)
}

// TraceEnabled reports whether trace-level logging is currently on.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

func init() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)
}

// Tracef logs a [TRACE] line, only when trace is enabled.
func Tracef(format string, args ...any) {
	if traceEnabled.Load() {
		log.Printf("[TRACE] "+format, args...)
	}
}

// Debugf logs a [DEBUG] line.
func Debugf(format string, args ...any) {
	log.Printf("[DEBUG] "+format, args...)
}

// Infof logs an [INFO] line.
func Infof(format string, args ...any) {
	log.Printf("[INFO] "+format, args...)
}

// Warnf logs a [WARN] line.
func Warnf(format string, args ...any) {
	log.Printf("[WARN] "+format, args...)
}

// Errorf logs an [ERROR] line.
func Errorf(format string, args ...any) {
	log.Printf("[ERROR] "+format, args...)
}
