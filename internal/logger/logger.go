// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// The text format wraps the standard log package; the json format writes one
// object per line for log shippers.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly, it shouldn't generate any error-level logs.
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	json   bool
	out    io.Writer
	mu     sync.Mutex
	logger *log.Logger
}

var (
	// Global logger instance
	defaultLogger *Logger
)

// ParseLevel maps a level name to a Level. Unknown names map to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	InitWithWriter(level, format, os.Stderr)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(level string, format string, w io.Writer) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	defaultLogger = &Logger{
		level:  ParseLevel(level),
		json:   strings.ToLower(format) == "json",
		out:    w,
		logger: log.New(w, "", flags),
	}
}

func output(l Level, format string, args ...interface{}) {
	if defaultLogger == nil || defaultLogger.level > l {
		return
	}
	msg := fmt.Sprintf(format, args...)

	if defaultLogger.json {
		line, err := json.Marshal(struct {
			Time  string `json:"time"`
			Level string `json:"level"`
			Msg   string `json:"msg"`
		}{time.Now().UTC().Format(time.RFC3339Nano), levelNames[l], msg})
		if err != nil {
			return
		}
		defaultLogger.mu.Lock()
		defer defaultLogger.mu.Unlock()
		_, _ = defaultLogger.out.Write(append(line, '\n'))
		return
	}

	_ = defaultLogger.logger.Output(3, "["+levelNames[l]+"] "+msg)
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	output(DebugLevel, format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	output(InfoLevel, format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	output(WarnLevel, format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	output(ErrorLevel, format, args...)
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	if defaultLogger != nil {
		_ = defaultLogger.logger.Output(2, msg)
	} else {
		log.Print(msg)
	}
	os.Exit(1)
}
