package core

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type LogLevel = log.Level

const (
	DebugLevel = log.DebugLevel
	InfoLevel  = log.InfoLevel
	WarnLevel  = log.WarnLevel
	ErrorLevel = log.ErrorLevel
	FatalLevel = log.FatalLevel
)

// Logger is the engine logger. One is owned by every Context.
type Logger struct {
	*log.Logger
}

func NewLogger(w io.Writer, level LogLevel) *Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "Tundra ❄️ ",
		// The package-level helpers below add one frame.
		CallerOffset: 1,
	})
	l.SetLevel(level)
	return &Logger{l}
}

// NewDiscardLogger returns a logger that drops everything. Used by tests.
func NewDiscardLogger() *Logger {
	return NewLogger(io.Discard, FatalLevel+1)
}

// ParseLogLevel accepts debug, info, warn, error and fatal.
func ParseLogLevel(s string) (LogLevel, error) {
	return log.ParseLevel(s)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
	once          sync.Once
)

func getLogger() *Logger {
	once.Do(func() {
		defaultMu.Lock()
		if defaultLogger == nil {
			defaultLogger = NewLogger(os.Stderr, DebugLevel)
		}
		defaultMu.Unlock()
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger swaps the logger used by the LogX helpers. Context.Initialize
// installs its own logger here.
func SetDefaultLogger(l *Logger) {
	getLogger()
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
