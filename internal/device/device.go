// Package device drives the speech synthesizer installed on the host. It is
// the narrator of last resort: always available offline and free to use.
package device

import (
	"context"
	"errors"

	"github.com/tahcohcat/monument-narrator/internal/voice"
)

var (
	ErrEngineUnavailable = errors.New("device speech engine unavailable")
	ErrInterrupted       = errors.New("speech interrupted")
)

// Options controls a single utterance. Rate, Pitch and Volume are
// multipliers around 1.0.
type Options struct {
	Voice    voice.Option
	Language string
	Rate     float64
	Pitch    float64
	Volume   float64

	// OnStart fires once the engine begins speaking.
	OnStart func()
}

// Engine speaks one utterance at a time.
type Engine interface {
	// Speak blocks until the utterance finishes, fails or is stopped.
	Speak(ctx context.Context, text string, opts Options) error
	Stop() error
	Pause() error
	Resume() error
	Voices(ctx context.Context) ([]voice.Option, error)
}

// DefaultProsody returns the rate and pitch used when a caller leaves them
// unset. Apple voices already speak slowly; the espeak family sounds better a
// little slower and brighter.
func DefaultProsody(goos string) (rate, pitch float64) {
	switch goos {
	case "darwin", "ios":
		return 0.95, 1.0
	case "linux", "android":
		return 0.9, 1.05
	default:
		return 1.0, 1.0
	}
}
