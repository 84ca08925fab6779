package services

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/tahcohcat/monument-narrator/internal/database"
	"github.com/tahcohcat/monument-narrator/internal/models"
	"github.com/tahcohcat/monument-narrator/internal/tts"
)

// AudioCache stores synthesized narration in sqlite, keyed by provider, voice
// and text.
type AudioCache struct {
	db *database.DB
}

func NewAudioCache(db *database.DB) *AudioCache {
	return &AudioCache{db: db}
}

// CacheKey hashes the inputs that determine the synthesized audio.
func CacheKey(provider, voiceID, text string) string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{provider, voiceID, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the cached clip, or nil when there is none.
func (c *AudioCache) Lookup(ctx context.Context, provider, voiceID, text string) (*tts.Audio, error) {
	key := CacheKey(provider, voiceID, text)

	var entry models.CachedAudio
	query := `SELECT * FROM narration_audio_cache WHERE cache_key = ?`
	if err := c.db.GetContext(ctx, &entry, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached audio: %w", err)
	}

	update := `UPDATE narration_audio_cache SET hits = hits + 1, last_used_at = ? WHERE cache_key = ?`
	if _, err := c.db.ExecContext(ctx, update, time.Now(), key); err != nil {
		return nil, fmt.Errorf("failed to update cached audio: %w", err)
	}

	return &tts.Audio{Data: entry.Data, ContentType: entry.ContentType}, nil
}

// Store saves clip, replacing any previous entry for the same inputs.
func (c *AudioCache) Store(ctx context.Context, provider, voiceID, text string, clip *tts.Audio) error {
	if clip == nil || len(clip.Data) == 0 {
		return tts.ErrEmptyAudio
	}

	now := time.Now()
	entry := &models.CachedAudio{
		Key:         CacheKey(provider, voiceID, text),
		Provider:    provider,
		VoiceID:     voiceID,
		ContentType: clip.ContentType,
		Data:        clip.Data,
		TextLength:  len(text),
		CreatedAt:   now,
		LastUsedAt:  now,
	}

	query := `
		INSERT OR REPLACE INTO narration_audio_cache
			(cache_key, provider, voice_id, content_type, audio, text_length, hits, created_at, last_used_at)
		VALUES (:cache_key, :provider, :voice_id, :content_type, :audio, :text_length, 0, :created_at, :last_used_at)
	`
	if _, err := c.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to store cached audio: %w", err)
	}
	return nil
}

// Prune keeps the keep most recently used clips and deletes the rest.
func (c *AudioCache) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	query := `
		DELETE FROM narration_audio_cache WHERE cache_key NOT IN (
			SELECT cache_key FROM narration_audio_cache ORDER BY last_used_at DESC LIMIT ?
		)
	`
	result, err := c.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audio cache: %w", err)
	}
	return result.RowsAffected()
}

// Clear removes every cached clip for a provider key such as "elevenlabs",
// or all clips when provider is empty.
func (c *AudioCache) Clear(ctx context.Context, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	query, args := `DELETE FROM narration_audio_cache WHERE provider = ?`, []interface{}{provider}
	if provider == "" {
		query, args = `DELETE FROM narration_audio_cache`, nil
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear audio cache: %w", err)
	}
	return nil
}

func (c *AudioCache) Stats(ctx context.Context) (*models.AudioCacheStats, error) {
	var stats models.AudioCacheStats
	query := `
		SELECT COUNT(*) AS entries,
			COALESCE(SUM(LENGTH(audio)), 0) AS bytes,
			COALESCE(SUM(hits), 0) AS hits
		FROM narration_audio_cache
	`
	if err := c.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to read audio cache stats: %w", err)
	}
	return &stats, nil
}
