package app

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Logger writes JSON lines. The TUI owns the terminal, so logs go to a file
// under the user cache dir rather than stderr.
type Logger struct {
	out io.Writer
}

type LogEvent struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func NewLogger(out io.Writer) *Logger {
	return &Logger{out: out}
}

// OpenLogFile creates the default log destination, falling back to a discard
// logger when the cache dir is unavailable.
func OpenLogFile() (*Logger, func()) {
	base, err := os.UserCacheDir()
	if err != nil {
		return NewLogger(io.Discard), func() {}
	}
	dir := filepath.Join(base, "conversa")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewLogger(io.Discard), func() {}
	}
	f, err := os.OpenFile(filepath.Join(dir, "conversa.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return NewLogger(io.Discard), func() {}
	}
	return NewLogger(f), func() { _ = f.Close() }
}

func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.write("info", message, fields)
}

func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.write("error", message, fields)
}

func (l *Logger) write(level, message string, fields map[string]interface{}) {
	if l == nil || l.out == nil {
		return
	}
	evt := LogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Message:   message,
		Fields:    fields,
	}
	payload, _ := json.Marshal(evt)
	payload = append(payload, '\n')
	_, _ = l.out.Write(payload)
}
