package api

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tahcohcat/monument-narrator/internal/llm"
	"github.com/tahcohcat/monument-narrator/internal/models"
	"github.com/tahcohcat/monument-narrator/internal/narration"
	"github.com/tahcohcat/monument-narrator/internal/voice"
	"github.com/tahcohcat/monument-narrator/internal/websocket"
)

var (
	charles = voice.Option{ID: "charles-id", Name: "Charles", Language: "en-US", Quality: voice.QualityPremium, Provider: voice.ProviderCloud}
	daniel  = voice.Option{ID: "en-gb-daniel", Name: "Daniel", Language: "en-GB", Quality: voice.QualityEnhanced, Provider: voice.ProviderDevice}
)

type fakeVoices struct {
	voices []voice.Option
}

func (f *fakeVoices) AvailableVoices() []voice.Option { return f.voices }
func (f *fakeVoices) CloudConfigured() bool           { return true }

func (f *fakeVoices) Lookup(id string) (voice.Option, bool) {
	for _, v := range f.voices {
		if v.ID == id {
			return v, true
		}
	}
	return voice.Option{}, false
}

func (f *fakeVoices) BestVoice() (voice.Option, bool) {
	if len(f.voices) == 0 {
		return voice.Option{}, false
	}
	return f.voices[0], true
}

func (f *fakeVoices) Search(query string, n int) []voice.Option {
	var out []voice.Option
	for _, v := range f.voices {
		if strings.Contains(strings.ToLower(v.Name), strings.ToLower(query)) && len(out) < n {
			out = append(out, v)
		}
	}
	return out
}

type speakCall struct {
	text string
	opts narration.SpeakOptions
}

type fakeNarrator struct {
	err   error
	calls chan speakCall

	mu      sync.Mutex
	state   narration.State
	pauses  int
	resumes int
	stops   int
}

func newFakeNarrator() *fakeNarrator {
	return &fakeNarrator{calls: make(chan speakCall, 8)}
}

func (n *fakeNarrator) Speak(_ context.Context, text string, opts narration.SpeakOptions, obs narration.Observer) error {
	obs.OnStart()
	if n.err != nil {
		obs.OnError(n.err)
	} else {
		obs.OnDone()
	}
	n.calls <- speakCall{text: text, opts: opts}
	return n.err
}

func (n *fakeNarrator) Pause() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pauses++
	n.state = narration.StatePaused
}

func (n *fakeNarrator) Resume() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resumes++
	n.state = narration.StatePlaying
}

func (n *fakeNarrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops++
	n.state = narration.StateIdle
}

func (n *fakeNarrator) IsPlaying() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state == narration.StatePlaying || n.state == narration.StatePaused
}

func (n *fakeNarrator) State() narration.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

type fakePermission struct {
	granted  bool
	prompted int
}

func (p *fakePermission) Granted() bool { return p.granted }

func (p *fakePermission) RequestWithPrompt(context.Context) bool {
	p.prompted++
	p.granted = true
	return true
}

type fakeEvents struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (e *fakeEvents) Broadcast(ev websocket.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *fakeEvents) snapshot() []websocket.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]websocket.Event(nil), e.events...)
}

type fakeCache struct {
	cleared []string
}

func (c *fakeCache) Stats(context.Context) (*models.AudioCacheStats, error) {
	return &models.AudioCacheStats{Entries: 3, Bytes: 4096, Hits: 7}, nil
}

func (c *fakeCache) Clear(_ context.Context, provider string) error {
	c.cleared = append(c.cleared, provider)
	return nil
}

type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	requests  []llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeLLM) IsModelAvailable(context.Context) error { return nil }

func (f *fakeLLM) lastRequest() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}
