package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"DEBUG":   LogLevelDebug,
		"warn":    LogLevelWarn,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"info":    LogLevelInfo,
		"":        LogLevelInfo,
		"verbose": LogLevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)

	l := New()
	l.SetLevel(LogLevelWarn)
	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("shown warn")
	l.Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warn")
	assert.Contains(t, out, "shown error")
}

func TestFieldsAndErrors(t *testing.T) {
	buf := captureOutput(t)

	l := New()
	l.SetLevel(LogLevelDebug)
	l.WithField("voice", "charles").WithField("attempt", 2).WithError(errors.New("boom")).Warn("cloud failed")

	assert.Contains(t, buf.String(), "cloud failed attempt=2 voice=charles: boom")
}
