package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var (
	mu          sync.Mutex
	globalLevel = LogLevelInfo
	output      io.Writer = os.Stdout
)

// ParseLevel maps a config string onto a level, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// SetLevel changes the level used by loggers created afterwards.
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	globalLevel = level
}

// SetOutput redirects all log output, mainly for tests. nil restores stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	output = w
}

type Log struct {
	level  LogLevel
	err    error
	fields map[string]interface{}
}

func New() *Log {
	mu.Lock()
	defer mu.Unlock()
	return &Log{level: globalLevel}
}

func (l *Log) SetLevel(level LogLevel) {
	l.level = level
}

func (l *Log) WithError(err error) *Log {
	return &Log{level: l.level, err: err, fields: l.fields}
}

// WithField returns a copy of the logger that appends key=value to every line.
func (l *Log) WithField(key string, value interface{}) *Log {
	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Log{level: l.level, err: l.err, fields: fields}
}

func (l *Log) timestamp() string {
	return time.Now().Format("15:04:05")
}

func (l *Log) suffix() string {
	var b strings.Builder
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, l.fields[k])
		}
	}
	if l.err != nil {
		fmt.Fprintf(&b, ": %v", l.err)
	}
	return b.String()
}

func (l *Log) write(color, icon, msg string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(output, "%s[%s]%s %s %s%s%s\n", color, l.timestamp(), ColorReset, icon, msg, l.suffix(), ColorReset)
}

func (l *Log) Debug(msg string) {
	if l.level > LogLevelDebug {
		return
	}
	l.write(ColorCyan, "ℹ️ ", msg)
}

func (l *Log) Info(msg string) {
	if l.level > LogLevelInfo {
		return
	}
	l.write(ColorBlue, "ℹ️ ", msg)
}

// Narration prints a line attributed to a speaking voice.
func (l *Log) Narration(voice, msg string) {
	if l.level > LogLevelInfo {
		return
	}
	l.write(ColorGreen, "🔊 ["+voice+"]", msg)
}

func (l *Log) Warn(msg string) {
	if l.level > LogLevelWarn {
		return
	}
	l.write(ColorYellow, "⚠️ ", msg)
}

func (l *Log) Error(msg string) {
	l.write(ColorRed, "❌", msg)
}
