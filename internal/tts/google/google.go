// Package google narrates with Google Cloud Text-to-Speech.
package google

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tahcohcat/monument-narrator/config"
	"github.com/tahcohcat/monument-narrator/internal/logger"
	"github.com/tahcohcat/monument-narrator/internal/tts"
	"github.com/tahcohcat/monument-narrator/internal/voice"
)

const defaultVoiceName = "en-US-Chirp-HD-D"

var _ tts.CloudSynthesizer = (*Client)(nil)

type speechClient interface {
	SynthesizeSpeech(ctx context.Context, req *ttspb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*ttspb.SynthesizeSpeechResponse, error)
	Close() error
}

type Client struct {
	client   speechClient
	narrator voice.Option
	logger   *logger.Log
}

// NewClient dials the API using the configured credentials file, or the
// ambient application default credentials when none is set.
func NewClient(ctx context.Context, cfg config.GoogleConfig) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google TTS client: %w", err)
	}

	return newWithClient(client, cfg), nil
}

func newWithClient(client speechClient, cfg config.GoogleConfig) *Client {
	name := cfg.VoiceName
	if name == "" {
		name = defaultVoiceName
	}

	display := cfg.DisplayName
	if display == "" {
		display = name
	}

	return &Client{
		client: client,
		narrator: voice.Option{
			ID:       name,
			Name:     display,
			Language: extractLanguageCode(name),
			Quality:  voice.QualityPremium,
			Provider: voice.ProviderCloud,
		},
		logger: logger.New().WithField("provider", "google"),
	}
}

// extractLanguageCode maps a model name to its locale ("en-GB-Standard-D" -> "en-GB").
func extractLanguageCode(modelName string) string {
	parts := strings.Split(modelName, "-")
	if len(parts) >= 2 {
		return fmt.Sprintf("%s-%s", parts[0], parts[1])
	}
	return "en-US"
}

func (g *Client) Configured() bool {
	return g.client != nil
}

func (g *Client) Voices() []voice.Option {
	if !g.Configured() {
		return nil
	}
	return []voice.Option{g.narrator}
}

func (g *Client) Name() string {
	return "Google Cloud Text-to-Speech"
}

func (g *Client) Key() string {
	return "google"
}

func (g *Client) Synthesize(ctx context.Context, text string, v voice.Option) (*tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}
	if !g.Configured() {
		return nil, tts.ErrNotConfigured
	}

	name := v.ID
	if name == "" {
		name = g.narrator.ID
	}
	languageCode := extractLanguageCode(name)

	req := &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{
			InputSource: &ttspb.SynthesisInput_Text{Text: text},
		},
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: languageCode,
			Name:         name,
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding:   ttspb.AudioEncoding_MP3,
			SpeakingRate:    1.0,
			SampleRateHertz: 22050,
		},
	}

	g.logger.Debug(fmt.Sprintf("synthesizing with voice: %s, language: %s", name, languageCode))

	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		if status.Code(err) == codes.ResourceExhausted {
			return nil, fmt.Errorf("%w: %v", tts.ErrQuotaExceeded, err)
		}
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	if len(resp.AudioContent) == 0 {
		return nil, tts.ErrEmptyAudio
	}

	g.logger.Debug(fmt.Sprintf("generated %d bytes of MP3 audio", len(resp.AudioContent)))
	return &tts.Audio{Data: resp.AudioContent, ContentType: "audio/mpeg"}, nil
}

func (g *Client) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
