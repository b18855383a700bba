package logger

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

type Logger interface {
	Info(action, message, requestID string, details map[string]interface{})
	Debug(action, message, requestID string, details map[string]interface{})
	Warn(action, message, requestID string, details map[string]interface{})
	Error(action, message, requestID string, details map[string]interface{}, err error)
}

type jsonLogger struct {
	service  string
	hostname string
	minLevel int
	out      io.Writer
	mu       sync.Mutex
}

var levels = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// New writes JSON lines for service to stdout.
func New(service, level string) Logger {
	return NewWithWriter(service, level, os.Stdout)
}

func NewWithWriter(service, level string, out io.Writer) Logger {
	hostname, _ := os.Hostname()
	min, ok := levels[level]
	if !ok {
		min = levels["DEBUG"]
	}
	return &jsonLogger{
		service:  service,
		hostname: hostname,
		minLevel: min,
		out:      out,
	}
}

// Nop discards everything.
func Nop() Logger {
	return NewWithWriter("nop", "ERROR", io.Discard)
}

func (l *jsonLogger) Info(action, message, requestID string, details map[string]interface{}) {
	l.log("INFO", action, message, requestID, details, nil)
}

func (l *jsonLogger) Debug(action, message, requestID string, details map[string]interface{}) {
	l.log("DEBUG", action, message, requestID, details, nil)
}

func (l *jsonLogger) Warn(action, message, requestID string, details map[string]interface{}) {
	l.log("WARN", action, message, requestID, details, nil)
}

func (l *jsonLogger) Error(action, message, requestID string, details map[string]interface{}, err error) {
	l.log("ERROR", action, message, requestID, details, err)
}

func (l *jsonLogger) log(level, action, message, requestID string, details map[string]interface{}, err error) {
	if levels[level] < l.minLevel {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Service:   l.service,
		Hostname:  l.hostname,
		RequestID: requestID,
		Action:    action,
		Message:   message,
		Details:   details,
	}

	if err != nil {
		entry.Error = &ErrorInfo{Msg: err.Error()}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = json.NewEncoder(l.out).Encode(entry)
}
