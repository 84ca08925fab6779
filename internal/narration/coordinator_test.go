package narration

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahcohcat/monument-narrator/internal/tts"
	"github.com/tahcohcat/monument-narrator/internal/voice"
)

type harness struct {
	cloud      *fakeCloud
	player     *fakePlayer
	engine     *fakeEngine
	permission *fakePermission
	cache      *fakeCache
	registry   *voice.Registry
	c          *Coordinator
}

type harnessOption func(h *harness)

func withoutCloud() harnessOption {
	return func(h *harness) { h.cloud.configured = false }
}

func withPermission(granted bool) harnessOption {
	return func(h *harness) { h.permission.granted = granted }
}

func withCache() harnessOption {
	return func(h *harness) { h.cache = &fakeCache{} }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		cloud:      &fakeCloud{configured: true},
		player:     &fakePlayer{},
		engine:     &fakeEngine{},
		permission: &fakePermission{granted: true},
	}
	for _, opt := range opts {
		opt(h)
	}

	h.registry = voice.NewRegistry(h.cloud, &fakeDeviceLister{voices: []voice.Option{thomas, samantha}}, nil)
	h.registry.Initialize(context.Background())

	deps := Deps{
		Voices:     h.registry,
		Cloud:      h.cloud,
		Player:     h.player,
		Engine:     h.engine,
		Permission: h.permission,
		Platform:   "linux",
	}
	if h.cache != nil {
		deps.Cache = h.cache
	}
	h.c = NewCoordinator(deps)
	return h
}

func (h *harness) speakAsync(text string, opts SpeakOptions, obs Observer) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- h.c.Speak(context.Background(), text, opts, obs)
	}()
	return result
}

func waitResult(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("speak did not return")
		return nil
	}
}

func TestSpeakRejectsBlankText(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := &recorder{}

	err := h.c.Speak(context.Background(), "   \n", SpeakOptions{}, rec)
	require.ErrorIs(t, err, ErrNoText)

	starts, dones, errs := rec.counts()
	assert.Equal(t, 0, starts)
	assert.Equal(t, 0, dones)
	require.Equal(t, 1, errs)
	assert.Equal(t, "No text provided", rec.errs[0].Error())
	assert.Equal(t, StateIdle, h.c.State())
	assert.Empty(t, h.engine.speakCalls())
}

// noVoices never resolves a voice.
type noVoices struct{}

func (noVoices) Lookup(string) (voice.Option, bool)    { return voice.Option{}, false }
func (noVoices) BestVoice() (voice.Option, bool)       { return voice.Option{}, false }
func (noVoices) BestDeviceVoice() (voice.Option, bool) { return voice.Option{}, false }

func TestSpeakWithoutVoices(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	c := NewCoordinator(Deps{Voices: noVoices{}, Engine: engine})
	rec := &recorder{}

	err := c.Speak(context.Background(), "Hello", SpeakOptions{}, rec)
	require.ErrorIs(t, err, ErrNoVoice)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, "No suitable voice found", rec.errs[0].Error())
	assert.Empty(t, engine.speakCalls())
}

func TestSpeakBeforeVoicesInitialized(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	c := NewCoordinator(Deps{Voices: voice.NewRegistry(nil, nil, nil), Engine: engine, Platform: "linux"})
	rec := &recorder{}

	require.NoError(t, c.Speak(context.Background(), "Hello", SpeakOptions{}, rec))

	calls := engine.speakCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, voice.DefaultID, calls[0].Voice.ID)
	_, dones, errs := rec.counts()
	assert.Equal(t, 1, dones)
	assert.Equal(t, 0, errs)
}

func TestSpeakCloudPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := &recorder{}

	err := h.c.Speak(context.Background(), "The Parthenon", SpeakOptions{Voice: charles.ID}, rec)
	require.NoError(t, err)

	starts, dones, errs := rec.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, dones)
	assert.Equal(t, 0, errs)

	assert.Equal(t, int32(1), h.cloud.calls.Load())
	assert.Len(t, h.player.loaded(), 1)
	assert.Empty(t, h.engine.speakCalls())
	assert.Equal(t, StateDone, h.c.State())
	assert.False(t, h.c.IsPlaying())
}

func TestQuotaExceededFallsBackToDevice(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.cloud.err = &tts.ProviderError{
		Provider:   "elevenlabs",
		StatusCode: http.StatusUnauthorized,
		Body:       `{"detail":{"status":"quota_exceeded"}}`,
		Quota:      true,
	}
	rec := &recorder{}

	err := h.c.Speak(context.Background(), "The Parthenon", SpeakOptions{Voice: charles.ID}, rec)
	require.NoError(t, err)

	starts, dones, errs := rec.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, dones)
	assert.Equal(t, 0, errs)

	assert.Empty(t, h.player.loaded(), "cloud audio must not be played")
	calls := h.engine.speakCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, samantha.ID, calls[0].Voice.ID)
	assert.Equal(t, voice.ProviderDevice, calls[0].Voice.Provider)
}

func TestAnyCloudFailureFallsBackToDevice(t *testing.T) {
	t.Parallel()

	failures := map[string]func(h *harness){
		"server error": func(h *harness) {
			h.cloud.err = &tts.ProviderError{Provider: "elevenlabs", StatusCode: http.StatusBadGateway, Body: "bad gateway"}
		},
		"network": func(h *harness) {
			h.cloud.err = errors.New("dial tcp: connection refused")
		},
		"decode": func(h *harness) {
			h.player.loadErr = errors.New("corrupt mp3")
		},
		"play": func(h *harness) {
			h.player.next = func() *fakeSound {
				s := newFakeSound(false)
				s.playErr = errors.New("audio device busy")
				return s
			}
		},
	}

	for name, fail := range failures {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			fail(h)
			rec := &recorder{}

			err := h.c.Speak(context.Background(), "Hagia Sophia", SpeakOptions{Voice: charles.ID}, rec)
			require.NoError(t, err)

			starts, dones, errs := rec.counts()
			assert.Equal(t, 1, starts)
			assert.Equal(t, 1, dones)
			assert.Equal(t, 0, errs)
			assert.Len(t, h.engine.speakCalls(), 1)
		})
	}
}

func TestPermissionDeniedSkipsCloud(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withPermission(false))
	rec := &recorder{}

	err := h.c.Speak(context.Background(), "Angkor Wat", SpeakOptions{Voice: charles.ID}, rec)
	require.NoError(t, err)

	assert.Equal(t, int32(0), h.cloud.calls.Load(), "cloud endpoint must not be called")
	calls := h.engine.speakCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, samantha.ID, calls[0].Voice.ID)
	assert.Equal(t, 1, rec.dones)
}

func TestCloudUnconfiguredUsesDevice(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withoutCloud())
	rec := &recorder{}

	best, ok := h.registry.BestVoice()
	require.True(t, ok)
	assert.Equal(t, voice.ProviderDevice, best.Provider)

	require.NoError(t, h.c.Speak(context.Background(), "Machu Picchu", SpeakOptions{}, rec))
	assert.Equal(t, int32(0), h.cloud.calls.Load())
	require.Len(t, h.engine.speakCalls(), 1)
	assert.Equal(t, samantha.ID, h.engine.speakCalls()[0].Voice.ID)
}

func TestUnknownVoiceUsesBestVoice(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := &recorder{}

	err := h.c.Speak(context.Background(), "Hello", SpeakOptions{Voice: "nonexistent-id"}, rec)
	require.NoError(t, err)
	assert.Equal(t, 0, len(rec.errs))
	assert.Equal(t, int32(1), h.cloud.calls.Load(), "best voice is the pinned cloud voice")
}

func TestDeviceVoiceIsUsedAsRequested(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := &recorder{}

	require.NoError(t, h.c.Speak(context.Background(), "Bonjour", SpeakOptions{Voice: thomas.ID}, rec))

	assert.Equal(t, int32(0), h.cloud.calls.Load())
	calls := h.engine.speakCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, thomas.ID, calls[0].Voice.ID)
	assert.Equal(t, "fr-FR", calls[0].Language)
}

func TestDeviceProsodyDefaults(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withoutCloud())

	require.NoError(t, h.c.Speak(context.Background(), "Petra", SpeakOptions{}, nil))
	require.NoError(t, h.c.Speak(context.Background(), "Petra", SpeakOptions{Rate: 1.2, Language: "en-GB"}, nil))

	calls := h.engine.speakCalls()
	require.Len(t, calls, 2)
	assert.InDelta(t, 0.9, calls[0].Rate, 0.0001)
	assert.InDelta(t, 1.05, calls[0].Pitch, 0.0001)
	assert.InDelta(t, 1.0, calls[0].Volume, 0.0001)
	assert.Equal(t, "en-US", calls[0].Language)

	assert.InDelta(t, 1.2, calls[1].Rate, 0.0001)
	assert.Equal(t, "en-GB", calls[1].Language)
}

func TestDeviceFailureIsTerminal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withoutCloud())
	h.engine.err = errors.New("espeak-ng exited with status 1")
	rec := &recorder{}

	err := h.c.Speak(context.Background(), "Stonehenge", SpeakOptions{}, rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "espeak-ng")

	_, dones, errs := rec.counts()
	assert.Equal(t, 0, dones)
	assert.Equal(t, 1, errs)
	assert.Equal(t, StateIdle, h.c.State())
}

func TestCloudFailureThenDeviceFailureReportsDeviceError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.cloud.err = errors.New("cloud down")
	h.engine.err = errors.New("engine missing")
	rec := &recorder{}

	err := h.c.Speak(context.Background(), "Stonehenge", SpeakOptions{Voice: charles.ID}, rec)
	require.EqualError(t, err, "engine missing")
	require.Len(t, rec.errs, 1)
}

func TestPlaybackErrorAfterStartIsNotRetried(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.player.next = func() *fakeSound {
		s := newFakeSound(true)
		s.finishErr = errors.New("audio output lost")
		return s
	}
	rec := &recorder{}

	err := h.c.Speak(context.Background(), "Taj Mahal", SpeakOptions{Voice: charles.ID}, rec)
	require.Error(t, err)

	starts, dones, errs := rec.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 0, dones)
	assert.Equal(t, 1, errs)
	assert.Empty(t, h.engine.speakCalls())
}

func TestStopWhenIdle(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	assert.NotPanics(t, h.c.Stop)
	assert.NotPanics(t, h.c.ForceCleanup)
	assert.False(t, h.c.IsPlaying())
	assert.Equal(t, StateIdle, h.c.State())
}

func TestNewSpeakReplacesActiveSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withoutCloud())
	h.engine.block = true

	first := &recorder{}
	firstDone := h.speakAsync("Colosseum", SpeakOptions{}, first)

	require.Eventually(t, func() bool {
		return h.c.State() == StatePlaying
	}, 2*time.Second, 5*time.Millisecond)

	second := &recorder{}
	secondDone := h.speakAsync("Pantheon", SpeakOptions{}, second)

	require.NoError(t, waitResult(t, firstDone))

	require.Eventually(t, func() bool {
		starts, _, _ := second.counts()
		return starts == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, h.c.IsPlaying())

	h.c.Stop()
	require.NoError(t, waitResult(t, secondDone))

	starts, dones, errs := first.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 0, dones, "replaced narration reports nothing more")
	assert.Equal(t, 0, errs)

	_, dones, errs = second.counts()
	assert.Equal(t, 0, dones)
	assert.Equal(t, 0, errs)
	assert.False(t, h.c.IsPlaying())
}

func TestStopDuringCloudPlayback(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.player.next = func() *fakeSound { return newFakeSound(false) }
	rec := &recorder{}

	done := h.speakAsync("Eiffel Tower", SpeakOptions{Voice: charles.ID}, rec)

	require.Eventually(t, func() bool {
		return h.c.State() == StatePlaying
	}, 2*time.Second, 5*time.Millisecond)

	h.c.Stop()
	require.NoError(t, waitResult(t, done))

	sounds := h.player.loaded()
	require.Len(t, sounds, 1)
	assert.True(t, sounds[0].isStopped())
	assert.False(t, h.c.IsPlaying())
	assert.Equal(t, StateIdle, h.c.State())
	assert.Empty(t, h.engine.speakCalls(), "stopping does not fall back")
}

func TestStaleCloudResponseIsDiscarded(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.cloud.release = make(chan struct{})
	stale := &recorder{}

	staleDone := h.speakAsync("Alhambra", SpeakOptions{Voice: charles.ID}, stale)
	require.Eventually(t, func() bool {
		return h.cloud.calls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	fresh := &recorder{}
	require.NoError(t, h.c.Speak(context.Background(), "Sagrada Familia", SpeakOptions{Voice: thomas.ID}, fresh))

	close(h.cloud.release)
	require.NoError(t, waitResult(t, staleDone))

	starts, dones, errs := stale.counts()
	assert.Equal(t, 0, starts, "stale audio must not start")
	assert.Equal(t, 0, dones)
	assert.Equal(t, 0, errs)

	for _, s := range h.player.loaded() {
		assert.True(t, s.isStopped())
	}
	assert.Equal(t, 1, fresh.dones)
	assert.Len(t, h.engine.speakCalls(), 1)
}

func TestPauseAndResumeCloudAudio(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.player.next = func() *fakeSound { return newFakeSound(false) }

	// Pausing with nothing active is tolerated.
	h.c.Pause()
	assert.Equal(t, StateIdle, h.c.State())

	done := h.speakAsync("Notre-Dame", SpeakOptions{Voice: charles.ID}, nil)
	require.Eventually(t, func() bool {
		return h.c.State() == StatePlaying
	}, 2*time.Second, 5*time.Millisecond)

	h.c.Pause()
	assert.Equal(t, StatePaused, h.c.State())
	h.c.Pause()

	h.c.Resume()
	assert.Equal(t, StatePlaying, h.c.State())

	sound := h.player.loaded()[0]
	sound.mu.Lock()
	assert.Equal(t, 1, sound.pauses)
	assert.Equal(t, 1, sound.resumes)
	sound.mu.Unlock()

	sound.close()
	require.NoError(t, waitResult(t, done))
	assert.Equal(t, StateDone, h.c.State())
}

func TestPauseAndResumeDeviceSpeech(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withoutCloud())
	h.engine.block = true

	done := h.speakAsync("Acropolis", SpeakOptions{}, nil)
	require.Eventually(t, func() bool {
		return h.c.State() == StatePlaying
	}, 2*time.Second, 5*time.Millisecond)

	h.c.Resume()
	h.c.Pause()
	h.c.Resume()

	h.engine.mu.Lock()
	assert.Equal(t, 1, h.engine.pauses)
	assert.Equal(t, 1, h.engine.resumes)
	h.engine.mu.Unlock()

	h.c.Stop()
	require.NoError(t, waitResult(t, done))
}

func TestCachedAudioSkipsProvider(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withCache())

	require.NoError(t, h.c.Speak(context.Background(), "Big Ben", SpeakOptions{Voice: charles.ID}, nil))
	require.NoError(t, h.c.Speak(context.Background(), "Big Ben", SpeakOptions{Voice: charles.ID}, nil))

	assert.Equal(t, int32(1), h.cloud.calls.Load())
	assert.Len(t, h.player.loaded(), 2)
}

func TestSpeakRecoversObserverPanic(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withoutCloud())
	var reported error
	obs := ObserverFuncs{
		Start: func() { panic("ui gone") },
		Error: func(err error) { reported = err },
	}

	err := h.c.Speak(context.Background(), "Louvre", SpeakOptions{}, obs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ui gone")
	assert.Equal(t, err, reported)
	assert.False(t, h.c.IsPlaying())
}

func TestIsBenign(t *testing.T) {
	t.Parallel()

	assert.False(t, IsBenign(nil))
	assert.True(t, IsBenign(errors.New("request Timeout")))
	assert.True(t, IsBenign(errors.New("using fallback voice")))
	assert.False(t, IsBenign(ErrNoText))
	assert.False(t, IsBenign(context.DeadlineExceeded))
}
