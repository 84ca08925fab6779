package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/tahcohcat/monument-narrator/internal/guide"
	"github.com/tahcohcat/monument-narrator/internal/llm"
	"github.com/tahcohcat/monument-narrator/internal/narration"
)

const maxImageSize = 10 << 20

func (h *Handler) requireGuide(w http.ResponseWriter) bool {
	if h.guide == nil {
		http.Error(w, "Monument guide is not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// POST /api/v1/monuments/identify - multipart form with an "image" file and an
// optional "hint"
func (h *Handler) IdentifyMonument(w http.ResponseWriter, r *http.Request) {
	if !h.requireGuide(w) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+(1<<20))
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, guide.ErrNoImage.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageSize))
	if err != nil {
		http.Error(w, "Failed to read image", http.StatusBadRequest)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		http.Error(w, "Upload must be an image", http.StatusBadRequest)
		return
	}

	result, err := h.guide.Identify(r.Context(), llm.Image{Data: data, MimeType: mimeType}, r.FormValue("hint"))
	if err != nil {
		h.guideError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type describeRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Narrate  bool   `json:"narrate"`
	Voice    string `json:"voice"`
}

// POST /api/v1/monuments/describe - Describe a monument and optionally narrate it
func (h *Handler) DescribeMonument(w http.ResponseWriter, r *http.Request) {
	if !h.requireGuide(w) {
		return
	}

	var req describeRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	desc, err := h.guide.Describe(r.Context(), req.Name, req.Location)
	if err != nil {
		h.guideError(w, err)
		return
	}

	response := map[string]interface{}{"description": desc}
	if req.Narrate {
		response["request_id"] = h.narrate(r, guide.NarrationText(desc), req.Voice)
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) narrate(r *http.Request, text, voiceID string) string {
	if voiceID == "" {
		voiceID = h.selectedVoice(r)
	}
	return h.startNarration(text, narration.SpeakOptions{Voice: voiceID})
}

// POST /api/v1/monuments/chat - Open a conversation about a monument
func (h *Handler) StartChat(w http.ResponseWriter, r *http.Request) {
	if !h.requireGuide(w) {
		return
	}

	var req struct {
		Monument string `json:"monument"`
		Location string `json:"location"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	conv, err := h.conversations.Start(req.Monument, req.Location)
	if err != nil {
		h.guideError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"conversation_id": conv.ID,
		"monument":        conv.Monument,
		"location":        conv.Location,
	})
}

// POST /api/v1/monuments/chat/{id} - Ask a question in a conversation
func (h *Handler) AskChat(w http.ResponseWriter, r *http.Request) {
	if !h.requireGuide(w) {
		return
	}

	conv, err := h.conversations.Get(mux.Vars(r)["id"])
	if err != nil {
		h.guideError(w, err)
		return
	}

	var req struct {
		Question string `json:"question"`
		Narrate  bool   `json:"narrate"`
		Voice    string `json:"voice"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reply, err := conv.Ask(r.Context(), h.llm, req.Question)
	if err != nil {
		h.guideError(w, err)
		return
	}

	response := map[string]interface{}{"reply": reply}
	if req.Narrate {
		response["request_id"] = h.narrate(r, reply.Response, req.Voice)
	}
	writeJSON(w, http.StatusOK, response)
}

// DELETE /api/v1/monuments/chat/{id}
func (h *Handler) EndChat(w http.ResponseWriter, r *http.Request) {
	h.conversations.End(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) guideError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, guide.ErrNoImage),
		errors.Is(err, guide.ErrNoMonument),
		errors.Is(err, guide.ErrNoQuestion):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, guide.ErrConversationNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, guide.ErrNotIdentified):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.WithError(err).Error("guide request failed")
		http.Error(w, "Guide request failed: "+err.Error(), statusFor(err))
	}
}
