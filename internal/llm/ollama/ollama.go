// Package ollama implements llm.LLM against a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/tahcohcat/monument-narrator/config"
	"github.com/tahcohcat/monument-narrator/internal/llm"
	"github.com/tahcohcat/monument-narrator/internal/logger"
)

var _ llm.LLM = (*Client)(nil)

type Client struct {
	client *api.Client
	config *config.OllamaConfig
	logger *logger.Log
}

// NewClient connects to cfg.Host, or to OLLAMA_HOST when no host is configured.
func NewClient(cfg *config.OllamaConfig) (*Client, error) {
	var (
		client *api.Client
		err    error
	)

	if cfg.Host != "" {
		base, perr := url.Parse(cfg.Host)
		if perr != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, perr)
		}
		client = api.NewClient(base, http.DefaultClient)
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	return &Client{
		client: client,
		config: cfg,
		logger: logger.New().WithField("llm", "ollama"),
	}, nil
}

func (c *Client) model(vision bool) string {
	if vision && c.config.VisionModel != "" {
		return c.config.VisionModel
	}
	return c.config.Model
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	shouldStream := false

	messages := make([]api.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg := api.Message{Role: m.Role, Content: m.Content}
		for _, img := range m.Images {
			msg.Images = append(msg.Images, api.ImageData(img.Data))
		}
		messages = append(messages, msg)
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	model := c.model(req.HasImages())
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &shouldStream,
		Options: map[string]any{
			"temperature": temperature,
			"top_p":       0.9,
		},
	}
	if req.JSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.config.Timeout)*time.Second)
		defer cancel()
	}

	c.logger.Debug(fmt.Sprintf("Generating response with model %s", model))

	var response strings.Builder
	err := c.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		response.WriteString(r.Message.Content)
		return nil
	})
	if err != nil {
		c.logger.WithError(err).Error("Failed to generate response")
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}

	if strings.TrimSpace(response.String()) == "" {
		return "", llm.ErrEmptyResponse
	}
	return response.String(), nil
}

func (c *Client) IsModelAvailable(ctx context.Context) error {
	models, err := c.client.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	for _, model := range models.Models {
		if model.Name == c.config.Model || strings.TrimSuffix(model.Name, ":latest") == c.config.Model {
			return nil
		}
	}

	return fmt.Errorf("model %s not found. Available models: %v", c.config.Model, getModelNames(models.Models))
}

func getModelNames(models []api.ListModelResponse) []string {
	names := make([]string, len(models))
	for i, model := range models {
		names[i] = model.Name
	}
	return names
}
