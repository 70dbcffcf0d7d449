package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level represents the logging level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
	FatalLevel: "FATAL",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// Logger is the interface for logging operations
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
	Fatal(format string, v ...any)
	SetLevel(level Level)
	// Named returns a logger that prefixes every message with the component
	// name and shares the parent's output and level.
	Named(component string) Logger
}

// LogConfig holds configuration for the logger
type LogConfig struct {
	// Output destination: "file" or "stderr"
	Output string
	// Log level: "debug", "info", "warn", "error", "fatal"
	Level string
	// FilePath for file output (only used when Output is "file")
	FilePath string
}

type sink struct {
	mu     sync.RWMutex
	logger *log.Logger
	level  Level
}

type standardLogger struct {
	sink   *sink
	prefix string
}

// NewLogger creates a new logger based on the provided configuration.
// Unset fields fall back to LOG_OUTPUT, LOG_FILE_PATH and LOG_LEVEL.
func NewLogger(config LogConfig) (Logger, error) {
	output := firstNonEmpty(config.Output, os.Getenv("LOG_OUTPUT"), detectEnvironment())

	var writer io.Writer
	switch output {
	case "stderr":
		writer = os.Stderr
	case "file":
		filePath := firstNonEmpty(config.FilePath, os.Getenv("LOG_FILE_PATH"))
		if filePath == "" {
			dir, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			filePath = filepath.Join(dir, "pdfed.log")
		}
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = file
	default:
		return nil, fmt.Errorf("invalid log output: %s (expected 'file' or 'stderr')", output)
	}

	level := ParseLevel(firstNonEmpty(config.Level, os.Getenv("LOG_LEVEL"), "info"))
	return NewWriterLogger(writer, level), nil
}

// NewWriterLogger logs timestamped lines to w.
func NewWriterLogger(w io.Writer, level Level) Logger {
	return &standardLogger{sink: &sink{logger: log.New(w, "", log.LstdFlags), level: level}}
}

// NewNoOpLogger creates a logger that discards all output (useful for tests)
func NewNoOpLogger() Logger {
	return &standardLogger{sink: &sink{logger: log.New(io.Discard, "", 0), level: FatalLevel}}
}

// DefaultDir returns ~/.pdfed, the home of the log file, config and database.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pdfed"), nil
}

// detectEnvironment picks stderr inside containers and a file otherwise.
func detectEnvironment() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "stderr"
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "stderr"
	}
	return "file"
}

// ParseLevel converts a string to a Level, defaulting to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (l *standardLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

func (l *standardLogger) Named(component string) Logger {
	prefix := component
	if l.prefix != "" {
		prefix = l.prefix + "." + component
	}
	return &standardLogger{sink: l.sink, prefix: prefix}
}

func (l *standardLogger) Debug(format string, v ...any) { l.log(DebugLevel, format, v...) }
func (l *standardLogger) Info(format string, v ...any)  { l.log(InfoLevel, format, v...) }
func (l *standardLogger) Warn(format string, v ...any)  { l.log(WarnLevel, format, v...) }
func (l *standardLogger) Error(format string, v ...any) { l.log(ErrorLevel, format, v...) }

// Fatal logs a fatal message and exits
func (l *standardLogger) Fatal(format string, v ...any) {
	l.log(FatalLevel, format, v...)
	os.Exit(1)
}

func (l *standardLogger) log(level Level, format string, v ...any) {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	if level < l.sink.level {
		return
	}
	message := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		l.sink.logger.Printf("[%s] %s: %s", level, l.prefix, message)
		return
	}
	l.sink.logger.Printf("[%s] %s", level, message)
}
