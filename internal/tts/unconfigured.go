package tts

import (
	"context"

	"github.com/tahcohcat/monument-narrator/internal/logger"
	"github.com/tahcohcat/monument-narrator/internal/voice"
)

var _ CloudSynthesizer = (*Unconfigured)(nil)

// Unconfigured stands in when no cloud provider is set up, so every narration
// goes to the device engine.
type Unconfigured struct{}

func NewUnconfigured() *Unconfigured {
	return &Unconfigured{}
}

func (u *Unconfigured) Synthesize(_ context.Context, _ string, _ voice.Option) (*Audio, error) {
	logger.New().Debug("no cloud tts configured. ignoring synthesis request")
	return nil, ErrNotConfigured
}

func (u *Unconfigured) Configured() bool {
	return false
}

func (u *Unconfigured) Voices() []voice.Option {
	return nil
}

func (u *Unconfigured) Name() string {
	return "none"
}

func (u *Unconfigured) Key() string {
	return "none"
}
