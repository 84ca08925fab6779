// Package tts defines the premium cloud narrator used before falling back to
// the device speech engine.
package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tahcohcat/monument-narrator/internal/voice"
)

var (
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrEmptyAudio    = errors.New("empty audio content received")
	ErrNotConfigured = errors.New("cloud tts provider not configured")
	ErrQuotaExceeded = errors.New("cloud tts quota exceeded")
)

// Audio is a fully decoded synthesis result.
type Audio struct {
	Data        []byte
	ContentType string
}

// CloudSynthesizer is a hosted text-to-speech provider with a small curated
// set of voices.
type CloudSynthesizer interface {
	Synthesize(ctx context.Context, text string, v voice.Option) (*Audio, error)
	Configured() bool
	Voices() []voice.Option
	// Name is the display name. Key is the stable lowercase identifier used
	// for configuration and for cached audio.
	Name() string
	Key() string
}

// ProviderError is a non-2xx response from a cloud provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Quota      bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap exposes ErrQuotaExceeded for quota responses.
func (e *ProviderError) Unwrap() error {
	if e.Quota {
		return ErrQuotaExceeded
	}
	return nil
}

var placeholderKeys = []string{
	"your-api-key",
	"your_api_key",
	"your_elevenlabs_api_key",
	"your-elevenlabs-api-key",
	"changeme",
	"change-me",
	"xxx",
	"todo",
}

// CredentialConfigured reports whether key looks like a real credential rather
// than an empty value, an unresolved "${VAR}" reference or a sample placeholder.
func CredentialConfigured(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		return false
	}

	lower := strings.ToLower(key)
	for _, p := range placeholderKeys {
		if lower == p {
			return false
		}
	}
	return !strings.HasPrefix(lower, "your")
}
