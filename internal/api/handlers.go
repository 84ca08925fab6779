// Package api exposes the narrator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/tahcohcat/monument-narrator/internal/guide"
	"github.com/tahcohcat/monument-narrator/internal/llm"
	"github.com/tahcohcat/monument-narrator/internal/logger"
	"github.com/tahcohcat/monument-narrator/internal/models"
	"github.com/tahcohcat/monument-narrator/internal/narration"
	"github.com/tahcohcat/monument-narrator/internal/prefs"
	"github.com/tahcohcat/monument-narrator/internal/voice"
	"github.com/tahcohcat/monument-narrator/internal/websocket"
)

const defaultSearchResults = 5

// VoiceCatalog is the registry view the API needs.
type VoiceCatalog interface {
	AvailableVoices() []voice.Option
	Lookup(id string) (voice.Option, bool)
	BestVoice() (voice.Option, bool)
	Search(query string, n int) []voice.Option
	CloudConfigured() bool
}

// Narrator runs narrations; implemented by *narration.Coordinator.
type Narrator interface {
	Speak(ctx context.Context, text string, opts narration.SpeakOptions, obs narration.Observer) error
	Pause()
	Resume()
	Stop()
	IsPlaying() bool
	State() narration.State
}

type PermissionPrompter interface {
	Granted() bool
	RequestWithPrompt(ctx context.Context) bool
}

type Broadcaster interface {
	Broadcast(ev websocket.Event)
}

type CacheAdmin interface {
	Stats(ctx context.Context) (*models.AudioCacheStats, error)
	Clear(ctx context.Context, provider string) error
}

// Deps are the collaborators of a Handler. LLM and Cache are optional; the
// endpoints that need them answer 503 without.
type Deps struct {
	Voices        VoiceCatalog
	Narrator      Narrator
	Permission    PermissionPrompter
	Prefs         *prefs.Store
	Events        Broadcaster
	Cache         CacheAdmin
	LLM           llm.LLM
	Conversations *guide.Conversations
}

type Handler struct {
	voices        VoiceCatalog
	narrator      Narrator
	permission    PermissionPrompter
	prefs         *prefs.Store
	events        Broadcaster
	cache         CacheAdmin
	llm           llm.LLM
	guide         *guide.Guide
	conversations *guide.Conversations
	logger        *logger.Log

	// speakCtx is the parent of every narration; narrations outlive the
	// request that started them.
	speakCtx context.Context
}

func NewHandler(ctx context.Context, d Deps) *Handler {
	h := &Handler{
		voices:        d.Voices,
		narrator:      d.Narrator,
		permission:    d.Permission,
		prefs:         d.Prefs,
		events:        d.Events,
		cache:         d.Cache,
		llm:           d.LLM,
		conversations: d.Conversations,
		logger:        logger.New().WithField("component", "api"),
		speakCtx:      ctx,
	}
	if d.LLM != nil {
		h.guide = guide.NewGuide(d.LLM)
	}
	if h.conversations == nil {
		h.conversations = guide.NewConversations(0)
	}
	return h
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/voices", h.ListVoices).Methods("GET")
	r.HandleFunc("/voices/best", h.BestVoice).Methods("GET")
	r.HandleFunc("/voices/search", h.SearchVoices).Methods("GET")

	r.HandleFunc("/preferences/voice", h.GetVoicePreference).Methods("GET")
	r.HandleFunc("/preferences/voice", h.SetVoicePreference).Methods("PUT")
	r.HandleFunc("/preferences/voice", h.ClearVoicePreference).Methods("DELETE")

	r.HandleFunc("/permission", h.GetPermission).Methods("GET")
	r.HandleFunc("/permission/prompt", h.PromptPermission).Methods("POST")

	r.HandleFunc("/narration/speak", h.Speak).Methods("POST")
	r.HandleFunc("/narration/pause", h.Pause).Methods("POST")
	r.HandleFunc("/narration/resume", h.Resume).Methods("POST")
	r.HandleFunc("/narration/stop", h.Stop).Methods("POST")
	r.HandleFunc("/narration/state", h.GetState).Methods("GET")

	r.HandleFunc("/monuments/identify", h.IdentifyMonument).Methods("POST")
	r.HandleFunc("/monuments/describe", h.DescribeMonument).Methods("POST")
	r.HandleFunc("/monuments/chat", h.StartChat).Methods("POST")
	r.HandleFunc("/monuments/chat/{id}", h.AskChat).Methods("POST")
	r.HandleFunc("/monuments/chat/{id}", h.EndChat).Methods("DELETE")

	r.HandleFunc("/cache/stats", h.CacheStats).Methods("GET")
	r.HandleFunc("/cache", h.ClearCache).Methods("DELETE")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

// GET /api/v1/voices - List the available narrator voices
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	voices := h.voices.AvailableVoices()
	if voices == nil {
		voices = []voice.Option{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"voices":           voices,
		"cloud_configured": h.voices.CloudConfigured(),
		"selected":         h.selectedVoice(r),
	})
}

// GET /api/v1/voices/best - The default narrator
func (h *Handler) BestVoice(w http.ResponseWriter, r *http.Request) {
	best, ok := h.voices.BestVoice()
	if !ok {
		http.Error(w, narration.ErrNoVoice.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, best)
}

// GET /api/v1/voices/search?q=...&n=5 - Fuzzy search by display name
func (h *Handler) SearchVoices(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "Query is required", http.StatusBadRequest)
		return
	}

	n := defaultSearchResults
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	voices := h.voices.Search(query, n)
	if voices == nil {
		voices = []voice.Option{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"voices": voices})
}

// selectedVoice is the client's stored preference if it still exists.
func (h *Handler) selectedVoice(r *http.Request) string {
	if h.prefs == nil {
		return ""
	}
	id := h.prefs.Voice(r)
	if id == "" {
		return ""
	}
	if _, ok := h.voices.Lookup(id); !ok {
		return ""
	}
	return id
}

// GET /api/v1/preferences/voice
func (h *Handler) GetVoicePreference(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"voice_id": h.selectedVoice(r)})
}

// PUT /api/v1/preferences/voice - Remember the client's narrator
func (h *Handler) SetVoicePreference(w http.ResponseWriter, r *http.Request) {
	if h.prefs == nil {
		http.Error(w, "Preferences are not enabled", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		VoiceID string `json:"voice_id"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	v, ok := h.voices.Lookup(req.VoiceID)
	if !ok {
		http.Error(w, "Unknown voice", http.StatusBadRequest)
		return
	}

	if err := h.prefs.SetVoice(w, r, v.ID); err != nil {
		h.logger.WithError(err).Error("failed to save voice preference")
		http.Error(w, "Failed to save preference", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DELETE /api/v1/preferences/voice
func (h *Handler) ClearVoicePreference(w http.ResponseWriter, r *http.Request) {
	if h.prefs != nil {
		if err := h.prefs.ClearVoice(w, r); err != nil {
			h.logger.WithError(err).Error("failed to clear voice preference")
			http.Error(w, "Failed to clear preference", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/permission
func (h *Handler) GetPermission(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"granted": h.permission.Granted()})
}

// POST /api/v1/permission/prompt - User-initiated permission request
func (h *Handler) PromptPermission(w http.ResponseWriter, r *http.Request) {
	granted := h.permission.RequestWithPrompt(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

// GET /api/v1/cache/stats
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		http.Error(w, "Audio cache is disabled", http.StatusServiceUnavailable)
		return
	}

	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to read cache stats")
		http.Error(w, "Failed to read cache stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// DELETE /api/v1/cache?provider=elevenlabs - Drop cached clips
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		http.Error(w, "Audio cache is disabled", http.StatusServiceUnavailable)
		return
	}

	if err := h.cache.Clear(r.Context(), r.URL.Query().Get("provider")); err != nil {
		h.logger.WithError(err).Error("failed to clear cache")
		http.Error(w, "Failed to clear cache", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}
