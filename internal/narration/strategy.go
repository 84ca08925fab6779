package narration

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tahcohcat/monument-narrator/internal/audio"
	"github.com/tahcohcat/monument-narrator/internal/device"
	"github.com/tahcohcat/monument-narrator/internal/logger"
	"github.com/tahcohcat/monument-narrator/internal/tts"
	"github.com/tahcohcat/monument-narrator/internal/voice"
)

// strategy is one way of producing sound. Attempt blocks until playback ends
// and reports whether playback had started; failures before the start fall
// through to the next strategy.
type strategy interface {
	Name() string
	CanAttempt(v voice.Option) bool
	Attempt(ctx context.Context, s *session) (started bool, err error)
}

// cloudStrategy narrates with the premium provider and plays the decoded clip.
type cloudStrategy struct {
	cloud      tts.CloudSynthesizer
	player     audio.Player
	permission PermissionChecker
	cache      AudioCache
	logger     *logger.Log
}

func (cs *cloudStrategy) Name() string {
	return "cloud"
}

func (cs *cloudStrategy) CanAttempt(v voice.Option) bool {
	return v.IsCloud() &&
		cs.cloud != nil && cs.cloud.Configured() &&
		cs.player != nil &&
		cs.permission != nil && cs.permission.Granted()
}

func (cs *cloudStrategy) Attempt(ctx context.Context, s *session) (bool, error) {
	clip, err := cs.synthesize(ctx, s)
	if err != nil {
		return false, err
	}

	sound, err := cs.player.Load(ctx, clip)
	if err != nil {
		return false, fmt.Errorf("loading narration audio: %w", err)
	}

	if err := sound.Play(); err != nil {
		_ = sound.Stop()
		return false, fmt.Errorf("starting narration audio: %w", err)
	}

	if !s.begin(sound) {
		_ = sound.Stop()
		return false, ctx.Err()
	}
	s.playing()

	select {
	case <-sound.Done():
		if err := sound.Err(); err != nil {
			return true, fmt.Errorf("narration playback: %w", err)
		}
		return true, nil
	case <-ctx.Done():
		_ = sound.Stop()
		return true, ctx.Err()
	}
}

func (cs *cloudStrategy) synthesize(ctx context.Context, s *session) (*tts.Audio, error) {
	provider := cs.cloud.Key()

	if cs.cache != nil {
		clip, err := cs.cache.Lookup(ctx, provider, s.voice.ID, s.text)
		switch {
		case err != nil:
			cs.logger.WithError(err).Warn("audio cache lookup failed")
		case clip != nil:
			cs.logger.Debug("narration audio served from cache")
			return clip, nil
		}
	}

	clip, err := cs.cloud.Synthesize(ctx, s.text, s.voice)
	if err != nil {
		return nil, err
	}

	if cs.cache != nil {
		if err := cs.cache.Store(ctx, provider, s.voice.ID, s.text, clip); err != nil {
			cs.logger.WithError(err).Warn("audio cache store failed")
		}
	}
	return clip, nil
}

// deviceStrategy narrates with the local speech engine. It is the fallback
// for every cloud failure.
type deviceStrategy struct {
	engine device.Engine
	voices VoiceSource
	goos   string
}

func (ds *deviceStrategy) Name() string {
	return "device"
}

func (ds *deviceStrategy) CanAttempt(voice.Option) bool {
	return ds.engine != nil
}

func (ds *deviceStrategy) Attempt(ctx context.Context, s *session) (bool, error) {
	v := s.voice
	if v.IsCloud() {
		v = ds.deviceVoice()
	}

	rate, pitch := device.DefaultProsody(ds.goos)
	if s.opts.Rate > 0 {
		rate = s.opts.Rate
	}
	if s.opts.Pitch > 0 {
		pitch = s.opts.Pitch
	}
	volume := 1.0
	if s.opts.Volume > 0 {
		volume = s.opts.Volume
	}

	lang := s.opts.Language
	if lang == "" {
		lang = v.Language
	}

	var started atomic.Bool
	err := ds.engine.Speak(ctx, s.text, device.Options{
		Voice:    v,
		Language: lang,
		Rate:     rate,
		Pitch:    pitch,
		Volume:   volume,
		OnStart: func() {
			started.Store(true)
			if s.begin(nil) {
				s.playing()
			}
		},
	})
	return started.Load(), err
}

func (ds *deviceStrategy) deviceVoice() voice.Option {
	if ds.voices != nil {
		if v, ok := ds.voices.BestDeviceVoice(); ok {
			return v
		}
	}
	return voice.DefaultDeviceVoice()
}
