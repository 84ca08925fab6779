// Package permission remembers whether decoded cloud audio may be played on
// this device.
package permission

import (
	"context"
	"fmt"
	"sync"

	"github.com/tahcohcat/monument-narrator/internal/logger"
)

// SessionConfig is the audio session applied once playback is allowed.
type SessionConfig struct {
	AllowRecording          bool
	StaysActiveInBackground bool
	PlaysInSilentMode       bool
	DuckOthers              bool
}

// NarrationSession is the configuration used for narration playback.
var NarrationSession = SessionConfig{
	AllowRecording:          false,
	StaysActiveInBackground: false,
	PlaysInSilentMode:       true,
	DuckOthers:              true,
}

// Platform is the device's permission and audio session API.
type Platform interface {
	RequestAudioPermission(ctx context.Context) (bool, error)
	ConfigureAudioSession(ctx context.Context, cfg SessionConfig) error
}

// Alerter shows an explanatory message to the user.
type Alerter interface {
	Alert(title, message string)
}

const (
	deniedTitle   = "Audio permission needed"
	deniedMessage = "Premium narration needs permission to play audio. The device voice will be used instead."
)

// Gate owns the process-wide permission state.
type Gate struct {
	platform Platform
	alerter  Alerter
	logger   *logger.Log

	mu      sync.RWMutex
	granted bool
}

func NewGate(platform Platform, alerter Alerter) *Gate {
	return &Gate{
		platform: platform,
		alerter:  alerter,
		logger:   logger.New().WithField("component", "permission"),
	}
}

// Granted reports the last known permission state.
func (g *Gate) Granted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.granted
}

func (g *Gate) set(granted bool) {
	g.mu.Lock()
	g.granted = granted
	g.mu.Unlock()
}

// RequestAutomatic asks the platform for permission without any user-facing
// alert and configures the audio session on grant. Failures leave the
// permission denied.
func (g *Gate) RequestAutomatic(ctx context.Context) bool {
	granted, err := g.platform.RequestAudioPermission(ctx)
	if err != nil {
		g.logger.WithError(err).Warn("audio permission request failed")
		g.set(false)
		return false
	}

	if !granted {
		g.logger.Info("audio permission denied, premium voice disabled")
		g.set(false)
		return false
	}

	if err := g.platform.ConfigureAudioSession(ctx, NarrationSession); err != nil {
		g.logger.WithError(err).Warn("audio session configuration failed")
		g.set(false)
		return false
	}

	g.set(true)
	return true
}

// RequestWithPrompt is the user-initiated variant. It alerts once when the
// permission ends up denied.
func (g *Gate) RequestWithPrompt(ctx context.Context) bool {
	if g.Granted() {
		return true
	}

	granted, err := g.platform.RequestAudioPermission(ctx)
	if err != nil {
		g.logger.WithError(err).Warn("audio permission prompt failed")
		granted = false
	}

	if granted {
		if err := g.platform.ConfigureAudioSession(ctx, NarrationSession); err != nil {
			g.logger.WithError(err).Warn("audio session configuration failed")
			granted = false
		}
	}

	g.set(granted)

	if !granted && g.alerter != nil {
		g.alerter.Alert(deniedTitle, deniedMessage)
	}

	g.logger.Debug(fmt.Sprintf("audio permission after prompt: %t", granted))
	return granted
}
