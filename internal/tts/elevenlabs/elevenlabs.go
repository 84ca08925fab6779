// Package elevenlabs implements the premium narrator on the ElevenLabs REST API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tahcohcat/monument-narrator/config"
	"github.com/tahcohcat/monument-narrator/internal/logger"
	"github.com/tahcohcat/monument-narrator/internal/tts"
	"github.com/tahcohcat/monument-narrator/internal/voice"
)

const (
	providerName   = "elevenlabs"
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModelID = "eleven_multilingual_v2"
	contentTypeMP3 = "audio/mpeg"

	// quotaMarker appears in the error body when the account ran out of characters.
	quotaMarker = "quota_exceeded"
)

var _ tts.CloudSynthesizer = (*Client)(nil)

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type Client struct {
	apiKey     string
	baseURL    string
	modelID    string
	narrator   voice.Option
	settings   voiceSettings
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *logger.Log
}

func NewClient(cfg config.ElevenLabsConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	modelID := cfg.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}

	name := cfg.VoiceName
	if name == "" {
		name = "Charles"
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// A local budget keeps a burst of narrations from burning the account quota.
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		modelID: modelID,
		narrator: voice.Option{
			ID:       cfg.VoiceID,
			Name:     name,
			Language: "en-US",
			Quality:  voice.QualityPremium,
			Gender:   "male",
			Provider: voice.ProviderCloud,
		},
		settings: voiceSettings{
			Stability:       cfg.Stability,
			SimilarityBoost: cfg.SimilarityBoost,
			Style:           cfg.Style,
			UseSpeakerBoost: cfg.UseSpeakerBoost,
		},
		limiter:    limiter,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.New().WithField("provider", providerName),
	}
}

// Configured requires a real API key and a narrator voice ID.
func (c *Client) Configured() bool {
	return tts.CredentialConfigured(c.apiKey) && c.narrator.ID != ""
}

// Voices returns the single curated narrator.
func (c *Client) Voices() []voice.Option {
	if !c.Configured() {
		return nil
	}
	return []voice.Option{c.narrator}
}

func (c *Client) Name() string {
	return "ElevenLabs"
}

func (c *Client) Key() string {
	return providerName
}

// Synthesize requests MP3 audio for text spoken by v.
func (c *Client) Synthesize(ctx context.Context, text string, v voice.Option) (*tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}
	if !c.Configured() {
		return nil, tts.ErrNotConfigured
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return nil, fmt.Errorf("%w: local request budget spent", tts.ErrQuotaExceeded)
	}

	voiceID := v.ID
	if voiceID == "" {
		voiceID = c.narrator.ID
	}

	body, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       c.modelID,
		VoiceSettings: c.settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", contentTypeMP3)

	c.logger.Debug(fmt.Sprintf("synthesizing %d characters with voice %s", len(text), voiceID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &tts.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Quota:      strings.Contains(string(data), quotaMarker),
		}
	}

	if len(data) == 0 {
		return nil, tts.ErrEmptyAudio
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeMP3
	}

	c.logger.Debug(fmt.Sprintf("received %d bytes of %s", len(data), contentType))
	return &tts.Audio{Data: data, ContentType: contentType}, nil
}
