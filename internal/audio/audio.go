// Package audio plays decoded cloud narration through a local player command.
package audio

import (
	"context"
	"errors"

	"github.com/tahcohcat/monument-narrator/internal/tts"
)

var (
	ErrNoPlayer    = errors.New("no audio player available")
	ErrNotPlayable = errors.New("audio cannot be played")
)

// Player turns synthesized audio into a playable sound handle.
type Player interface {
	Load(ctx context.Context, audio *tts.Audio) (Sound, error)
}

// Sound is one loaded clip. Stop unloads it; a stopped sound cannot be
// played again.
type Sound interface {
	Play() error
	Pause() error
	Resume() error
	Stop() error
	// Done is closed when playback ends for any reason.
	Done() <-chan struct{}
	// Err is the playback error once Done is closed, nil on natural completion.
	Err() error
}
