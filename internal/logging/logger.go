package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// InvocationLog represents a single completed invocation.
type InvocationLog struct {
	Timestamp  time.Time `json:"timestamp"`
	ID         string    `json:"id"`
	TraceID    string    `json:"trace_id,omitempty"`
	Operation  string    `json:"operation"`
	X          int32     `json:"x"`
	Y          int32     `json:"y"`
	Result     int32     `json:"result"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// Logger records completed invocations. It is disabled until an output is
// configured so the demo transcript stays clean.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	console io.Writer
}

var defaultLogger = &Logger{}

// Default returns the default invocation logger
func Default() *Logger {
	return defaultLogger
}

// SetOutput appends JSON lines to the file at path.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole sets the human-readable output; nil disables it.
func (l *Logger) SetConsole(w io.Writer) {
	l.mu.Lock()
	l.console = w
	l.mu.Unlock()
}

// Enabled reports whether any output is configured.
func (l *Logger) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file != nil || l.console != nil
}

// Log writes an invocation entry
func (l *Logger) Log(entry *InvocationLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil && l.console == nil {
		return
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if l.console != nil {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		fmt.Fprintf(l.console, "[invocation] %s %s %s(%d, %d) = %d %dms\n",
			status, entry.ID, entry.Operation, entry.X, entry.Y, entry.Result, entry.DurationMs)
		if entry.Error != "" {
			fmt.Fprintf(l.console, "[invocation]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
