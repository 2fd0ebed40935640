// Package logger provides structured logging for the game server.
// Every engine transition and host action should be traceable through this.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	colorReset  = "\x1b[0m"
	colorCyan   = "\x1b[36m"
	colorYellow = "\x1b[33m"
	colorRed    = "\x1b[31m"
)

// Logger provides leveled logging with context.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates a logger writing info and warnings to stdout and errors
// to stderr. Prefixes are colored when the stream is a terminal.
func NewLogger() *Logger {
	return &Logger{
		infoLogger:  log.New(os.Stdout, prefix("[LIFE-INFO] ", colorCyan, os.Stdout), log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(os.Stdout, prefix("[LIFE-WARN] ", colorYellow, os.Stdout), log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(os.Stderr, prefix("[LIFE-ERROR] ", colorRed, os.Stderr), log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// New creates a logger writing every level to w without colors.
func New(w io.Writer) *Logger {
	return &Logger{
		infoLogger:  log.New(w, "[LIFE-INFO] ", log.Ldate|log.Ltime),
		warnLogger:  log.New(w, "[LIFE-WARN] ", log.Ldate|log.Ltime),
		errorLogger: log.New(w, "[LIFE-ERROR] ", log.Ldate|log.Ltime),
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return New(io.Discard)
}

func prefix(label, color string, f *os.File) string {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return color + label + colorReset
	}
	return label
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Output(2, msg)
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.infoLogger.Output(2, fmt.Sprintf(format, args...))
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Output(2, msg)
}

// Warnf logs a formatted warning.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.warnLogger.Output(2, fmt.Sprintf(format, args...))
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Output(2, msg)
}

// Errorf logs a formatted error.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Output(2, fmt.Sprintf(format, args...))
}

// Event logs a game event for later tracing.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.infoLogger.Output(2, fmt.Sprintf("[EVENT:%s] Actor:%s | %s", eventType, actorID, details))
}
