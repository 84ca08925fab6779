package models

import "time"

// CachedAudio is a synthesized narration clip kept to avoid paying for the
// same text twice.
type CachedAudio struct {
	Key         string    `json:"key" db:"cache_key"`
	Provider    string    `json:"provider" db:"provider"`
	VoiceID     string    `json:"voice_id" db:"voice_id"`
	ContentType string    `json:"content_type" db:"content_type"`
	Data        []byte    `json:"-" db:"audio"`
	TextLength  int       `json:"text_length" db:"text_length"`
	Hits        int       `json:"hits" db:"hits"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at" db:"last_used_at"`
}

// AudioCacheStats summarizes the cache for the API.
type AudioCacheStats struct {
	Entries int   `json:"entries" db:"entries"`
	Bytes   int64 `json:"bytes" db:"bytes"`
	Hits    int64 `json:"hits" db:"hits"`
}
