package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

// Log levels
const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// Logger is a leveled logger. Child loggers created with Named share the
// parent's output and level but tag every line with their component name.
type Logger struct {
	level     *LogLevel
	logger    *log.Logger
	file      *os.File
	useColors bool
	name      string
	exit      func(int)
}

// levelColors maps log levels to ANSI color codes
var levelColors = map[LogLevel]string{
	DEBUG: "\033[36m", // Cyan
	INFO:  "\033[32m", // Green
	WARN:  "\033[33m", // Yellow
	ERROR: "\033[31m", // Red
	FATAL: "\033[35m", // Magenta
}

// levelPrefixes maps log levels to text prefixes
var levelPrefixes = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO ",
	WARN:  "WARN ",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// ParseLevel converts a level name to a LogLevel. Unknown names map to INFO.
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

// NewLogger creates a new console logger with the specified log level
func NewLogger(levelStr string) *Logger {
	level := ParseLevel(levelStr)

	l := &Logger{
		level:     &level,
		logger:    log.New(os.Stdout, "", 0), // prefix is formatted per line
		useColors: true,
		exit:      os.Exit,
	}

	// Disable colors if not in a terminal
	if fileInfo, err := os.Stdout.Stat(); err != nil || (fileInfo.Mode()&os.ModeCharDevice) == 0 {
		l.useColors = false
	}

	return l
}

// NewWriterLogger creates a logger that writes uncolored lines to w.
func NewWriterLogger(levelStr string, w io.Writer) *Logger {
	l := NewLogger(levelStr)
	l.logger.SetOutput(w)
	l.useColors = false
	return l
}

// NewFileLogger creates a new logger that writes to a file
func NewFileLogger(levelStr, filePath string) (*Logger, error) {
	file, err := openLogFile(filePath)
	if err != nil {
		return nil, err
	}

	l := NewWriterLogger(levelStr, file)
	l.file = file
	return l, nil
}

// NewMultiLogger creates a logger that writes to both console and file
func NewMultiLogger(levelStr, filePath string) (*Logger, error) {
	file, err := openLogFile(filePath)
	if err != nil {
		return nil, err
	}

	l := NewLogger(levelStr)
	l.logger.SetOutput(io.MultiWriter(os.Stdout, file))
	l.file = file
	return l, nil
}

func openLogFile(filePath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// Named returns a child logger tagged with name. Nested names are joined
// with a dot ("engine.branch").
func (l *Logger) Named(name string) *Logger {
	child := *l
	if l.name != "" {
		child.name = l.name + "." + name
	} else {
		child.name = name
	}
	return &child
}

// output writes msg at the given level. It must be called directly from an
// exported method so that the caller frame points at user code.
func (l *Logger) output(level LogLevel, msg string) {
	if level < *l.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file = "unknown"
		line = 0
	}
	file = filepath.Base(file)

	now := time.Now().Format("2006/01/02 15:04:05")
	prefix := fmt.Sprintf("%s [%s] %s:%d:", now, levelPrefixes[level], file, line)
	if l.useColors {
		prefix = levelColors[level] + prefix + "\033[0m"
	}
	if l.name != "" {
		prefix += " (" + l.name + ")"
	}

	l.logger.Println(prefix, msg)

	if level == FATAL {
		if l.file != nil {
			l.file.Close()
		}
		l.exit(1)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(v ...interface{}) { l.output(DEBUG, fmt.Sprint(v...)) }

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.output(DEBUG, fmt.Sprintf(format, v...))
}

// Info logs an info message
func (l *Logger) Info(v ...interface{}) { l.output(INFO, fmt.Sprint(v...)) }

// Infof logs a formatted info message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.output(INFO, fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func (l *Logger) Warn(v ...interface{}) { l.output(WARN, fmt.Sprint(v...)) }

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.output(WARN, fmt.Sprintf(format, v...))
}

// Error logs an error message
func (l *Logger) Error(v ...interface{}) { l.output(ERROR, fmt.Sprint(v...)) }

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.output(ERROR, fmt.Sprintf(format, v...))
}

// Fatal logs a fatal message and exits the program
func (l *Logger) Fatal(v ...interface{}) { l.output(FATAL, fmt.Sprint(v...)) }

// Fatalf logs a formatted fatal message and exits the program
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.output(FATAL, fmt.Sprintf(format, v...))
}

// SetLevel sets the log level. Child loggers share the level with their parent.
func (l *Logger) SetLevel(levelStr string) {
	*l.level = ParseLevel(levelStr)
}

// Level returns the current log level
func (l *Logger) Level() LogLevel {
	return *l.level
}

// SetOutput sets the output writer for the logger
func (l *Logger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// EnableColors enables or disables colored output
func (l *Logger) EnableColors(enable bool) {
	l.useColors = enable
}

// Close closes the logger's file if it exists
func (l *Logger) Close() {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
