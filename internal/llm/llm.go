// Package llm talks to the language and vision models that identify monuments
// and write their narration.
package llm

import (
	"context"
	"errors"
)

var ErrEmptyResponse = errors.New("empty response from language model")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Image is an encoded photo attached to a message.
type Image struct {
	Data     []byte
	MimeType string
}

type Message struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Images  []Image `json:"-"`
}

// Request is one completion. Messages with images are sent to the vision model.
type Request struct {
	Messages    []Message
	JSON        bool
	Temperature float64
}

// HasImages reports whether any message carries an image.
func (r Request) HasImages() bool {
	for _, m := range r.Messages {
		if len(m.Images) > 0 {
			return true
		}
	}
	return false
}

// LLM defines the interface for language model providers
type LLM interface {
	// Complete returns the model's reply to the conversation.
	Complete(ctx context.Context, req Request) (string, error)

	// IsModelAvailable checks if the configured model is available
	IsModelAvailable(ctx context.Context) error
}
