package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/tahcohcat/monument-narrator/internal/logger"
)

// ErrRecordingUnsupported is returned when a session asks for microphone access.
var ErrRecordingUnsupported = errors.New("audio session with recording is not supported")

// PlaybackDevice is the local output used for decoded cloud audio.
type PlaybackDevice interface {
	Available() error
}

// HostPlatform grants playback when the operator allows it and the host has a
// usable audio player.
type HostPlatform struct {
	allowPlayback bool
	device        PlaybackDevice
	logger        *logger.Log
}

func NewHostPlatform(allowPlayback bool, device PlaybackDevice) *HostPlatform {
	return &HostPlatform{
		allowPlayback: allowPlayback,
		device:        device,
		logger:        logger.New().WithField("component", "platform"),
	}
}

func (h *HostPlatform) RequestAudioPermission(_ context.Context) (bool, error) {
	if !h.allowPlayback {
		return false, nil
	}
	if h.device == nil {
		return false, nil
	}
	if err := h.device.Available(); err != nil {
		h.logger.WithError(err).Info("no audio player available")
		return false, nil
	}
	return true, nil
}

func (h *HostPlatform) ConfigureAudioSession(_ context.Context, cfg SessionConfig) error {
	if cfg.AllowRecording {
		return ErrRecordingUnsupported
	}
	h.logger.Debug(fmt.Sprintf("audio session: background=%t silent_mode=%t duck_others=%t",
		cfg.StaysActiveInBackground, cfg.PlaysInSilentMode, cfg.DuckOthers))
	return nil
}

// LogAlerter writes alerts to the log when no client is listening.
type LogAlerter struct{}

func (LogAlerter) Alert(title, message string) {
	logger.New().Warn(fmt.Sprintf("%s: %s", title, message))
}
