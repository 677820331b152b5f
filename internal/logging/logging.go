package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel = LevelInfo
	levelOnce    sync.Once
)

// initLevel reads DEBUG and LOG_LEVEL once. An explicit SetLevel call made
// before the first log line wins over the environment.
func initLevel() {
	levelOnce.Do(func() {
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				setLevel(LevelDebug)
				return
			}
		}

		if lvl, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
			setLevel(lvl)
		}
	})
}

// ParseLevel converts a level name into a LogLevel. The second return value
// is false for empty or unknown names.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

func setLevel(l LogLevel) {
	mu.Lock()
	currentLevel = l
	mu.Unlock()
}

// SetLevel overrides the level derived from the environment.
func SetLevel(l LogLevel) {
	levelOnce.Do(func() {})
	setLevel(l)
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func logf(level LogLevel, prefix, format string, args ...interface{}) {
	if GetLevel() <= level {
		log.Printf(prefix+format, args...)
	}
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	logf(LevelDebug, "[DEBUG] ", format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	logf(LevelInfo, "[INFO] ", format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	logf(LevelWarn, "[WARN] ", format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	logf(LevelError, "[ERROR] ", format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Session returns a logger that prefixes every message with a session tag,
// so interleaved output from concurrent annotation sessions stays readable.
func Session(id string) *Scoped {
	return &Scoped{prefix: "[" + id + "] "}
}

// Scoped is a leveled logger with a fixed message prefix.
type Scoped struct {
	prefix string
}

// Debug logs a prefixed debug message.
func (s *Scoped) Debug(format string, args ...interface{}) {
	logf(LevelDebug, "[DEBUG] "+s.prefix, format, args...)
}

// Info logs a prefixed info message.
func (s *Scoped) Info(format string, args ...interface{}) {
	logf(LevelInfo, "[INFO] "+s.prefix, format, args...)
}

// Warn logs a prefixed warning.
func (s *Scoped) Warn(format string, args ...interface{}) {
	logf(LevelWarn, "[WARN] "+s.prefix, format, args...)
}

// Error logs a prefixed error.
func (s *Scoped) Error(format string, args ...interface{}) {
	logf(LevelError, "[ERROR] "+s.prefix, format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
