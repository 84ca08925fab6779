package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tahcohcat/monument-narrator/internal/narration"
	"github.com/tahcohcat/monument-narrator/internal/websocket"
)

type SpeakRequest struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice"`
	Language string  `json:"language"`
	Rate     float64 `json:"rate"`
	Pitch    float64 `json:"pitch"`
	Volume   float64 `json:"volume"`
}

type stateResponse struct {
	State   narration.State `json:"state"`
	Playing bool            `json:"playing"`
}

// POST /api/v1/narration/speak - Start narrating, replacing any active narration.
// Progress is reported on the websocket under the returned request_id.
func (h *Handler) Speak(w http.ResponseWriter, r *http.Request) {
	var req SpeakRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, narration.ErrNoText.Error(), http.StatusBadRequest)
		return
	}

	if req.Voice == "" {
		req.Voice = h.selectedVoice(r)
	}

	id := h.startNarration(req.Text, narration.SpeakOptions{
		Voice:    req.Voice,
		Language: req.Language,
		Rate:     req.Rate,
		Pitch:    req.Pitch,
		Volume:   req.Volume,
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": id})
}

// startNarration runs Speak in the background and returns the request ID its
// events are tagged with.
func (h *Handler) startNarration(text string, opts narration.SpeakOptions) string {
	id := uuid.New().String()
	log := h.logger.WithField("request_id", id)

	go func() {
		if err := h.narrator.Speak(h.speakCtx, text, opts, h.observer(id)); err != nil {
			log.WithError(err).Debug("narration ended with error")
		}
	}()

	log.Debug("narration requested")
	return id
}

func (h *Handler) observer(id string) narration.Observer {
	return narration.ObserverFuncs{
		Start: func() {
			h.broadcast(websocket.Event{Type: websocket.EventNarrationStart, RequestID: id})
		},
		Done: func() {
			h.broadcast(websocket.Event{Type: websocket.EventNarrationDone, RequestID: id})
		},
		Error: func(err error) {
			h.broadcast(websocket.Event{
				Type:      websocket.EventNarrationError,
				RequestID: id,
				Message:   err.Error(),
				Benign:    narration.IsBenign(err),
			})
		},
	}
}

func (h *Handler) broadcast(ev websocket.Event) {
	if h.events != nil {
		h.events.Broadcast(ev)
	}
}

func (h *Handler) writeState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, stateResponse{
		State:   h.narrator.State(),
		Playing: h.narrator.IsPlaying(),
	})
}

// POST /api/v1/narration/pause
func (h *Handler) Pause(w http.ResponseWriter, _ *http.Request) {
	h.narrator.Pause()
	h.writeState(w)
}

// POST /api/v1/narration/resume
func (h *Handler) Resume(w http.ResponseWriter, _ *http.Request) {
	h.narrator.Resume()
	h.writeState(w)
}

// POST /api/v1/narration/stop
func (h *Handler) Stop(w http.ResponseWriter, _ *http.Request) {
	h.narrator.Stop()
	h.writeState(w)
}

// GET /api/v1/narration/state
func (h *Handler) GetState(w http.ResponseWriter, _ *http.Request) {
	h.writeState(w)
}
