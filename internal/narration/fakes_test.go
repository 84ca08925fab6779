package narration

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tahcohcat/monument-narrator/internal/audio"
	"github.com/tahcohcat/monument-narrator/internal/device"
	"github.com/tahcohcat/monument-narrator/internal/tts"
	"github.com/tahcohcat/monument-narrator/internal/voice"
)

var (
	charles  = voice.Option{ID: "charles-id", Name: "Charles", Language: "en-US", Quality: voice.QualityPremium}
	samantha = voice.Option{ID: "samantha", Name: "Samantha", Language: "en-US"}
	thomas   = voice.Option{ID: "thomas", Name: "Thomas", Language: "fr-FR"}
)

type fakeCloud struct {
	configured bool
	err        error
	release    chan struct{}
	calls      atomic.Int32
}

func (f *fakeCloud) Configured() bool { return f.configured }
func (f *fakeCloud) Name() string     { return "ElevenLabs" }
func (f *fakeCloud) Key() string      { return "elevenlabs" }

func (f *fakeCloud) Voices() []voice.Option {
	return []voice.Option{charles}
}

// Synthesize ignores ctx when release is set, like a request that cannot be aborted.
func (f *fakeCloud) Synthesize(_ context.Context, text string, _ voice.Option) (*tts.Audio, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &tts.Audio{Data: []byte("mp3:" + text), ContentType: "audio/mpeg"}, nil
}

type fakeDeviceLister struct {
	voices []voice.Option
}

func (f *fakeDeviceLister) Voices(context.Context) ([]voice.Option, error) {
	return f.voices, nil
}

type fakePermission struct {
	granted bool
}

func (f *fakePermission) Granted() bool { return f.granted }

type fakeSound struct {
	autoFinish bool
	playErr    error
	finishErr  error

	mu      sync.Mutex
	played  bool
	stopped bool
	pauses  int
	resumes int
	done    chan struct{}
	once    sync.Once
}

func newFakeSound(autoFinish bool) *fakeSound {
	return &fakeSound{autoFinish: autoFinish, done: make(chan struct{})}
}

func (s *fakeSound) Play() error {
	if s.playErr != nil {
		return s.playErr
	}
	s.mu.Lock()
	s.played = true
	s.mu.Unlock()
	if s.autoFinish {
		s.close()
	}
	return nil
}

func (s *fakeSound) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses++
	return nil
}

func (s *fakeSound) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes++
	return nil
}

func (s *fakeSound) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.close()
	return nil
}

func (s *fakeSound) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *fakeSound) Done() <-chan struct{} { return s.done }

func (s *fakeSound) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	return s.finishErr
}

func (s *fakeSound) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakePlayer struct {
	loadErr error
	next    func() *fakeSound

	mu     sync.Mutex
	sounds []*fakeSound
}

func (p *fakePlayer) Load(_ context.Context, clip *tts.Audio) (audio.Sound, error) {
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	s := newFakeSound(true)
	if p.next != nil {
		s = p.next()
	}
	p.mu.Lock()
	p.sounds = append(p.sounds, s)
	p.mu.Unlock()
	return s, nil
}

func (p *fakePlayer) loaded() []*fakeSound {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeSound(nil), p.sounds...)
}

type fakeEngine struct {
	err   error
	block bool

	mu      sync.Mutex
	calls   []device.Options
	stops   int
	pauses  int
	resumes int
	stopCh  chan struct{}
}

func (e *fakeEngine) Speak(ctx context.Context, _ string, opts device.Options) error {
	stop := make(chan struct{})
	e.mu.Lock()
	e.calls = append(e.calls, opts)
	e.stopCh = stop
	e.mu.Unlock()

	if opts.OnStart != nil {
		opts.OnStart()
	}
	if e.err != nil {
		return e.err
	}
	if !e.block {
		return nil
	}

	select {
	case <-stop:
		return device.ErrInterrupted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *fakeEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
	}
	return nil
}

func (e *fakeEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses++
	return nil
}

func (e *fakeEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumes++
	return nil
}

func (e *fakeEngine) Voices(context.Context) ([]voice.Option, error) {
	return []voice.Option{samantha}, nil
}

func (e *fakeEngine) speakCalls() []device.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]device.Options(nil), e.calls...)
}

type fakeCache struct {
	mu    sync.Mutex
	clips map[string]*tts.Audio
}

func (c *fakeCache) key(provider, voiceID, text string) string {
	return provider + "|" + voiceID + "|" + text
}

func (c *fakeCache) Lookup(_ context.Context, provider, voiceID, text string) (*tts.Audio, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clips[c.key(provider, voiceID, text)], nil
}

func (c *fakeCache) Store(_ context.Context, provider, voiceID, text string, clip *tts.Audio) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clips == nil {
		c.clips = map[string]*tts.Audio{}
	}
	c.clips[c.key(provider, voiceID, text)] = clip
	return nil
}

// recorder counts observer callbacks.
type recorder struct {
	mu     sync.Mutex
	starts int
	dones  int
	errs   []error
}

func (r *recorder) OnStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
}

func (r *recorder) OnDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dones++
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) counts() (starts, dones, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.dones, len(r.errs)
}
