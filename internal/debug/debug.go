package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/apexls/apexls/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// Level is the minimum severity that reaches the log writer.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel maps a configured level name to a Level. Unknown names fall back
// to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// StdioMode tracks if the transport runs over stdio (set by main). All log
// output is suppressed then to keep the protocol stream clean.
var StdioMode = false

var (
	logOutput io.Writer
	logFile   *os.File
	logLevel  = LevelInfo
	logMutex  sync.Mutex
)

// SetStdioMode enables stdio mode which suppresses all log output.
func SetStdioMode(enabled bool) {
	StdioMode = enabled
}

// SetLevel sets the minimum severity written to the log.
func SetLevel(l Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logLevel = l
}

// SetOutput sets a custom writer for log output. Pass nil to disable output
// entirely.
func SetOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logOutput = w
}

// InitLogFile initializes logging to a timestamped file under the system
// temp directory. Returns the path, or an error if creation fails. Call
// CloseLog when done.
func InitLogFile() (string, error) {
	logMutex.Lock()
	defer logMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "apexls-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("apexls-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = file
	logOutput = file
	return logPath, nil
}

// CloseLog closes the log file if one is open.
func CloseLog() error {
	logMutex.Lock()
	defer logMutex.Unlock()

	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		logOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled returns true if debug-level logging is active and we are not
// on a stdio transport.
func IsDebugEnabled() bool {
	if StdioMode {
		return false
	}
	if EnableDebug == "true" {
		return true
	}
	if os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true" {
		return true
	}
	logMutex.Lock()
	defer logMutex.Unlock()
	return logLevel >= LevelDebug
}

func write(level Level, component, format string, args ...interface{}) {
	if StdioMode {
		return
	}
	logMutex.Lock()
	w := logOutput
	threshold := logLevel
	logMutex.Unlock()
	if w == nil || level > threshold {
		return
	}
	prefix := "[" + level.String()
	if component != "" {
		prefix += ":" + component
	}
	prefix += "] "
	fmt.Fprintf(w, prefix+format+"\n", args...)
}

// Logf logs at debug level with no component tag.
func Logf(format string, args ...interface{}) {
	write(LevelDebug, "", format, args...)
}

// Log provides structured logging with component names at debug level.
func Log(component, format string, args ...interface{}) {
	write(LevelDebug, component, format, args...)
}

// Infof logs at info level.
func Infof(component, format string, args ...interface{}) {
	write(LevelInfo, component, format, args...)
}

// Warnf logs at warn level.
func Warnf(component, format string, args ...interface{}) {
	write(LevelWarn, component, format, args...)
}

// Errorf logs at error level.
func Errorf(component, format string, args ...interface{}) {
	write(LevelError, component, format, args...)
}

// LogScheduler provides logging specifically for scheduler operations.
func LogScheduler(format string, args ...interface{}) {
	Log("SCHED", format, args...)
}

// LogGraph provides logging specifically for graph operations.
func LogGraph(format string, args ...interface{}) {
	Log("GRAPH", format, args...)
}

// LogResolver provides logging specifically for resolution operations.
func LogResolver(format string, args ...interface{}) {
	Log("RESOLVE", format, args...)
}

// Fatal outputs a catastrophic error message to the log and returns a fatal
// error. Callers decide whether to exit.
func Fatal(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	write(LevelError, "FATAL", "%s", msg)
	return fmt.Errorf("fatal error: %s", msg)
}
