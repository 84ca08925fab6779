// Package narration plays one narration at a time, preferring the premium
// cloud voice and falling back to the device speech engine whenever the cloud
// path cannot produce sound.
package narration

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/tahcohcat/monument-narrator/internal/audio"
	"github.com/tahcohcat/monument-narrator/internal/device"
	"github.com/tahcohcat/monument-narrator/internal/logger"
	"github.com/tahcohcat/monument-narrator/internal/tts"
	"github.com/tahcohcat/monument-narrator/internal/voice"
)

var (
	ErrNoText  = errors.New("No text provided")
	ErrNoVoice = errors.New("No suitable voice found")
	ErrNoPath  = errors.New("no narration path available")
)

// VoiceSource resolves the voice a narration is spoken with.
type VoiceSource interface {
	Lookup(id string) (voice.Option, bool)
	BestVoice() (voice.Option, bool)
	BestDeviceVoice() (voice.Option, bool)
}

// PermissionChecker reports whether decoded cloud audio may be played.
type PermissionChecker interface {
	Granted() bool
}

// AudioCache keeps synthesized clips so repeated narrations skip the provider.
// Lookup returns nil on a miss.
type AudioCache interface {
	Lookup(ctx context.Context, provider, voiceID, text string) (*tts.Audio, error)
	Store(ctx context.Context, provider, voiceID, text string, clip *tts.Audio) error
}

// SpeakOptions tune one narration. Zero values pick defaults.
type SpeakOptions struct {
	Voice    string
	Language string
	Rate     float64
	Pitch    float64
	Volume   float64
}

// Deps are the collaborators of a Coordinator. Cache and Platform are optional.
type Deps struct {
	Voices     VoiceSource
	Cloud      tts.CloudSynthesizer
	Player     audio.Player
	Engine     device.Engine
	Permission PermissionChecker
	Cache      AudioCache
	Platform   string
}

// Coordinator owns the single active narration.
type Coordinator struct {
	voices     VoiceSource
	engine     device.Engine
	strategies []strategy
	logger     *logger.Log

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	sound      audio.Sound
	isPlaying  bool
}

func NewCoordinator(d Deps) *Coordinator {
	goos := d.Platform
	if goos == "" {
		goos = runtime.GOOS
	}

	log := logger.New().WithField("component", "narration")

	return &Coordinator{
		voices: d.Voices,
		engine: d.Engine,
		strategies: []strategy{
			&cloudStrategy{
				cloud:      d.Cloud,
				player:     d.Player,
				permission: d.Permission,
				cache:      d.Cache,
				logger:     log,
			},
			&deviceStrategy{
				engine: d.Engine,
				voices: d.Voices,
				goos:   goos,
			},
		},
		logger: log,
	}
}

// session is the state of one Speak call.
type session struct {
	c        *Coordinator
	gen      uint64
	text     string
	opts     SpeakOptions
	voice    voice.Option
	observer Observer
}

// begin marks playback as starting and notifies the observer. It returns
// false when the session has been replaced or stopped.
func (s *session) begin(sound audio.Sound) bool {
	c := s.c
	c.mu.Lock()
	if s.gen != c.generation {
		c.mu.Unlock()
		return false
	}
	next, err := transition(c.state, StateStarting)
	if err != nil {
		c.mu.Unlock()
		c.logger.WithError(err).Debug("ignoring duplicate start")
		return true
	}
	c.state = next
	c.sound = sound
	c.isPlaying = true
	c.mu.Unlock()

	s.observer.OnStart()
	return true
}

func (s *session) playing() {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.gen != c.generation {
		return
	}
	if next, err := transition(c.state, StatePlaying); err == nil {
		c.state = next
	}
}

func (s *session) current() bool {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.gen == s.c.generation
}

// Speak narrates text, replacing any narration in progress. It blocks until
// the narration ends and returns the error also reported to obs. A narration
// interrupted by Stop or a newer Speak returns nil without further callbacks.
func (c *Coordinator) Speak(ctx context.Context, text string, opts SpeakOptions, obs Observer) (err error) {
	if obs == nil {
		obs = ObserverFuncs{}
	}

	var s *session
	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("narration failed: %v", r)
			c.logger.WithError(perr).Error("recovered from panic")
			if s != nil {
				err = c.finish(s, perr)
				return
			}
			obs.OnError(perr)
			err = perr
		}
	}()

	if strings.TrimSpace(text) == "" {
		obs.OnError(ErrNoText)
		return ErrNoText
	}

	v, ok := c.resolveVoice(opts.Voice)
	if !ok {
		obs.OnError(ErrNoVoice)
		return ErrNoVoice
	}

	ctx, cancel := context.WithCancel(ctx)
	s = &session{
		c:        c,
		gen:      c.reset(cancel),
		text:     text,
		opts:     opts,
		voice:    v,
		observer: obs,
	}

	c.logger.Debug(fmt.Sprintf("narrating %d characters with %s voice %q", len(text), v.Provider, v.Name))

	lastErr := ErrNoPath
	for _, st := range c.strategies {
		if !st.CanAttempt(s.voice) {
			c.logger.Debug(fmt.Sprintf("skipping %s narration", st.Name()))
			continue
		}

		started, err := st.Attempt(ctx, s)
		if !s.current() {
			return nil
		}
		if err == nil || started {
			return c.finish(s, err)
		}

		c.logger.WithError(err).Warn(fmt.Sprintf("%s narration failed, trying fallback", st.Name()))
		lastErr = err
	}

	return c.finish(s, lastErr)
}

func (c *Coordinator) resolveVoice(id string) (voice.Option, bool) {
	if c.voices == nil {
		return voice.Option{}, false
	}
	if v, ok := c.voices.Lookup(id); ok {
		return v, true
	}
	if id != "" {
		c.logger.Debug(fmt.Sprintf("voice %q not available, using best voice", id))
	}
	return c.voices.BestVoice()
}

// reset tears down the active narration and starts a new generation owned by
// cancel, which may be nil.
func (c *Coordinator) reset(cancel context.CancelFunc) uint64 {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	prevCancel := c.cancel
	c.cancel = cancel
	sound := c.sound
	c.sound = nil
	c.state = StateIdle
	c.isPlaying = false
	c.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	if c.engine != nil {
		if err := c.engine.Stop(); err != nil {
			c.logger.WithError(err).Warn("failed to stop device speech")
		}
	}
	if sound != nil {
		if err := sound.Stop(); err != nil {
			c.logger.WithError(err).Warn("failed to unload narration audio")
		}
	}
	return gen
}

// finish closes session s and reports its outcome, unless s was interrupted.
func (c *Coordinator) finish(s *session, err error) error {
	c.mu.Lock()
	if s.gen != c.generation {
		c.mu.Unlock()
		return nil
	}

	cancel := c.cancel
	c.cancel = nil
	c.sound = nil
	c.isPlaying = false
	if err != nil {
		c.state = StateIdle
	} else if next, terr := transition(c.state, StateDone); terr == nil {
		c.state = next
	} else {
		c.state = StateIdle
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if err != nil {
		c.logger.WithError(err).Warn("narration failed")
		s.observer.OnError(err)
		return err
	}
	s.observer.OnDone()
	return nil
}

// Stop halts the device engine and unloads any cloud audio, whichever path is
// active. It is safe to call at any time.
func (c *Coordinator) Stop() {
	c.reset(nil)
}

// ForceCleanup is Stop for teardown paths; it never panics.
func (c *Coordinator) ForceCleanup() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(fmt.Sprintf("narration cleanup panicked: %v", r))
		}
	}()
	c.Stop()
}

// Pause suspends the active narration. It does nothing unless playing.
func (c *Coordinator) Pause() {
	c.control(StatePaused, audio.Sound.Pause, device.Engine.Pause)
}

// Resume continues a paused narration.
func (c *Coordinator) Resume() {
	c.control(StatePlaying, audio.Sound.Resume, device.Engine.Resume)
}

func (c *Coordinator) control(to State, onSound func(audio.Sound) error, onEngine func(device.Engine) error) {
	c.mu.Lock()
	if to == StatePlaying && c.state != StatePaused {
		c.mu.Unlock()
		return
	}
	next, err := transition(c.state, to)
	if err != nil {
		c.mu.Unlock()
		c.logger.WithError(err).Debug("ignoring narration control")
		return
	}
	c.state = next
	sound := c.sound
	c.mu.Unlock()

	switch {
	case sound != nil:
		err = onSound(sound)
	case c.engine != nil:
		err = onEngine(c.engine)
	}
	if err != nil {
		c.logger.WithError(err).Warn(fmt.Sprintf("failed to switch narration to %s", to))
	}
}

// IsPlaying reports whether a narration has started and not yet ended.
func (c *Coordinator) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isPlaying
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsBenign reports errors that mean narration degraded rather than failed;
// they should not be shown to the user.
func IsBenign(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "fallback")
}
