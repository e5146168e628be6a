package logger

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var zapLevels = map[Level]zapcore.Level{
	DEBUG: zapcore.DebugLevel,
	INFO:  zapcore.InfoLevel,
	WARN:  zapcore.WarnLevel,
	ERROR: zapcore.ErrorLevel,
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level. Anything
// else is INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

// Logger provides structured JSON logging with optional PII redaction.
// The zero value logs without a component field.
type Logger struct {
	component string
}

var (
	mu        sync.RWMutex
	atom      = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	redactPII = true
	base      = newBase(zapcore.Lock(os.Stderr))
	root      = &Logger{}
)

func newBase(ws zapcore.WriteSyncer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.MessageKey = "msg"
	enc.EncodeTime = zapcore.RFC3339TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, atom))
}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { atom.SetLevel(zapLevels[l]) }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	mu.Lock()
	redactPII = r
	mu.Unlock()
}

// SetOutput redirects every logger to ws. Used by tests.
func SetOutput(ws zapcore.WriteSyncer) {
	mu.Lock()
	base = newBase(ws)
	mu.Unlock()
}

// Zap returns the underlying zap logger for libraries that take one.
func Zap() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() { _ = Zap().Sync() }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { root.emit(DEBUG, msg, fields) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { root.emit(INFO, msg, fields) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { root.emit(WARN, msg, fields) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { root.emit(ERROR, msg, fields) }

// Named returns a logger that tags every entry with component=name.
func Named(name string) *Logger { return &Logger{component: name} }

// Debug emits a DEBUG-level entry.
func (l *Logger) Debug(msg string, fields ...interface{}) { l.emit(DEBUG, msg, fields) }

// Info emits an INFO-level entry.
func (l *Logger) Info(msg string, fields ...interface{}) { l.emit(INFO, msg, fields) }

// Warn emits a WARN-level entry.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.emit(WARN, msg, fields) }

// Error emits an ERROR-level entry.
func (l *Logger) Error(msg string, fields ...interface{}) { l.emit(ERROR, msg, fields) }

func (l *Logger) emit(level Level, msg string, fields []interface{}) {
	mu.RLock()
	s := base.Sugar()
	redact := redactPII
	mu.RUnlock()

	kv := make([]interface{}, 0, len(fields)+2)
	if l.component != "" {
		kv = append(kv, "component", l.component)
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fields[i+1]
		if redact {
			val = redactField(key, val)
		}
		kv = append(kv, key, val)
	}

	switch level {
	case DEBUG:
		s.Debugw(msg, kv...)
	case INFO:
		s.Infow(msg, kv...)
	case WARN:
		s.Warnw(msg, kv...)
	default:
		s.Errorw(msg, kv...)
	}
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactField(key string, val interface{}) interface{} {
	switch v := val.(type) {
	case string:
		return redactPIIValue(key, v)
	case error:
		return redactPIIValue(key, v.Error())
	case fmt.Stringer:
		return redactPIIValue(key, v.String())
	}
	return val
}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || strings.Contains(key, "recipient") || key == "to" {
		return RedactEmail(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
