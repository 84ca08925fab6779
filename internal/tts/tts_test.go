package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tahcohcat/monument-narrator/internal/voice"
)

func TestCredentialConfigured(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"":                        false,
		"   ":                     false,
		"${ELEVENLABS_API_KEY}":   false,
		"your_elevenlabs_api_key": false,
		"YOUR-API-KEY":            false,
		"your key here":           false,
		"changeme":                false,
		"sk_3f9a0c1d2e":           true,
	}

	for key, want := range tests {
		assert.Equal(t, want, CredentialConfigured(key), "key %q", key)
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	t.Parallel()

	quota := &ProviderError{Provider: "elevenlabs", StatusCode: 401, Body: "quota_exceeded", Quota: true}
	assert.ErrorIs(t, quota, ErrQuotaExceeded)
	assert.Contains(t, quota.Error(), "status 401")

	other := &ProviderError{Provider: "elevenlabs", StatusCode: 500, Body: "boom"}
	assert.False(t, errors.Is(other, ErrQuotaExceeded))
}

func TestUnconfigured(t *testing.T) {
	t.Parallel()

	u := NewUnconfigured()
	assert.False(t, u.Configured())
	assert.Empty(t, u.Voices())

	_, err := u.Synthesize(context.Background(), "hello", voice.Option{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
