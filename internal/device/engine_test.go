//go:build unix

package device

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahcohcat/monument-narrator/config"
	"github.com/tahcohcat/monument-narrator/internal/voice"
)

func engineWithBinary(t *testing.T, binary string) *CommandEngine {
	t.Helper()
	if _, err := exec.LookPath(binary); err != nil {
		t.Skipf("%s not available", binary)
	}

	e, err := newCommandEngine(config.DeviceConfig{Driver: "espeak", Binary: binary}, "linux")
	require.NoError(t, err)
	return e
}

func TestSpeakCompletes(t *testing.T) {
	e := engineWithBinary(t, "true")

	started := 0
	err := e.Speak(context.Background(), "Welcome to the Colosseum", Options{OnStart: func() { started++ }})
	require.NoError(t, err)
	assert.Equal(t, 1, started)
}

func TestSpeakReportsEngineFailure(t *testing.T) {
	e := engineWithBinary(t, "false")

	err := e.Speak(context.Background(), "Welcome", Options{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInterrupted))
}

func TestSpeakMissingBinary(t *testing.T) {
	e, err := newCommandEngine(config.DeviceConfig{Binary: "definitely-not-a-speech-engine"}, "linux")
	require.NoError(t, err)

	err = e.Speak(context.Background(), "hello", Options{})
	assert.ErrorIs(t, err, ErrEngineUnavailable)

	_, err = e.Voices(context.Background())
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestControlsWhenIdle(t *testing.T) {
	e := engineWithBinary(t, "true")

	assert.NoError(t, e.Stop())
	assert.NoError(t, e.Pause())
	assert.NoError(t, e.Resume())
}

// slowEngine runs a script that ignores its arguments and keeps speaking
// until it is killed.
func slowEngine(t *testing.T) *CommandEngine {
	t.Helper()
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	script := filepath.Join(t.TempDir(), "slow-speaker")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 10\n"), 0o755))

	e, err := newCommandEngine(config.DeviceConfig{Driver: "espeak", Binary: script}, "linux")
	require.NoError(t, err)
	return e
}

func TestCancelledSpeakKeepsActiveUtterance(t *testing.T) {
	e := slowEngine(t)

	started := make(chan struct{})
	active := make(chan error, 1)
	go func() {
		active <- e.Speak(context.Background(), "The Pantheon", Options{OnStart: func() { close(started) }})
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("utterance did not start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Speak(ctx, "stale narration", Options{})
	require.ErrorIs(t, err, context.Canceled)

	select {
	case err := <-active:
		t.Fatalf("active utterance ended early: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, e.Stop())
	select {
	case err := <-active:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(5 * time.Second):
		t.Fatal("utterance was not stopped")
	}
}

func TestVoiceLabel(t *testing.T) {
	e, err := newCommandEngine(config.DeviceConfig{Driver: "espeak"}, "linux")
	require.NoError(t, err)

	assert.Equal(t, "Samantha", e.voiceLabel(voice.Option{ID: "samantha", Name: "Samantha"}))
	assert.Equal(t, "en-us", e.voiceLabel(voice.Option{ID: "en-us"}))
	assert.Equal(t, "espeak", e.voiceLabel(voice.Option{}))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Big Ben at dusk", preview("Big Ben\n  at dusk"))

	long := strings.Repeat("é", previewLen+5)
	got := preview(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, previewLen+3, len([]rune(got)))
}
