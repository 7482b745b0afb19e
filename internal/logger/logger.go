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

// Level orders log severities; messages below the configured level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// ParseLevel maps DEBUG/INFO/WARNING/ERROR (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARNING", "WARN":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger provides leveled logging (debug/info/warning/error) to files and stdout/stderr.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	level      Level
	logDir     string
	files      []*os.File
	mu         sync.Mutex
}

// NewLogger creates a Logger writing to stdout/stderr. When logDir is not empty
// the directory is created and every level is also appended to its own file.
func NewLogger(logDir string, level Level) (*Logger, error) {
	logger := &Logger{
		logDir: logDir,
		level:  level,
	}

	if logDir == "" {
		logger.setupLoggers(os.Stdout, os.Stdout, os.Stdout, os.Stderr)
		return logger, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	infoFile, err := logger.openLogFile("info.log")
	if err != nil {
		return nil, err
	}
	warningFile, err := logger.openLogFile("warning.log")
	if err != nil {
		logger.Close()
		return nil, err
	}
	errorFile, err := logger.openLogFile("error.log")
	if err != nil {
		logger.Close()
		return nil, err
	}

	logger.setupLoggers(
		io.MultiWriter(os.Stdout, infoFile),
		io.MultiWriter(os.Stdout, infoFile),
		io.MultiWriter(os.Stdout, warningFile),
		io.MultiWriter(os.Stderr, errorFile),
	)
	return logger, nil
}

// New creates a Logger writing every level to w. Used by tests and tools.
func New(w io.Writer, level Level) *Logger {
	logger := &Logger{level: level}
	logger.setupLoggers(w, w, w, w)
	return logger
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, LevelError+1)
}

// setupLoggers initializes per-level loggers.
func (l *Logger) setupLoggers(debug, info, warning, errw io.Writer) {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	l.debugLog = log.New(debug, "DEBUG   ", flags)
	l.infoLog = log.New(info, "INFO    ", flags)
	l.warningLog = log.New(warning, "WARNING ", flags)
	l.errorLog = log.New(errw, "ERROR   ", flags)
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (*os.File, error) {
	filename := filepath.Join(l.logDir, name)
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

func (l *Logger) output(level Level, target *log.Logger, format string, v ...interface{}) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	target.Output(3, fmt.Sprintf(format, v...))
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.output(LevelDebug, l.debugLog, format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.output(LevelInfo, l.infoLog, format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.output(LevelWarning, l.warningLog, format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.output(LevelError, l.errorLog, format, v...)
}

// Writer returns the destination of info-level entries, used for the HTTP
// access log.
func (l *Logger) Writer() io.Writer {
	return l.infoLog.Writer()
}

// Dir returns the log directory, empty when logging to the console only.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return fmt.Errorf("file logging is disabled")
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening file: %v", err)
		return err
	}
	defer file.Close()

	l.Info("File %s has been cleared.", fileName)
	return nil
}

// Close closes any open log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
