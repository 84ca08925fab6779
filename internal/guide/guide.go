// Package guide identifies monuments from photos and writes the descriptions
// the narrator reads aloud.
package guide

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tahcohcat/monument-narrator/internal/llm"
	"github.com/tahcohcat/monument-narrator/internal/logger"
)

var (
	ErrNoImage       = errors.New("no image provided")
	ErrNoMonument    = errors.New("no monument name provided")
	ErrNotIdentified = errors.New("monument could not be identified")
)

// Identification is what the vision model recognized in a photo.
type Identification struct {
	Name       string  `json:"name"`
	Location   string  `json:"location"`
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
}

// Description is the structured write-up of a monument.
type Description struct {
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	History      string `json:"history"`
	Significance string `json:"significance"`
	FunFact      string `json:"fun_fact"`
}

type Guide struct {
	llm    llm.LLM
	logger *logger.Log
}

func NewGuide(client llm.LLM) *Guide {
	return &Guide{
		llm:    client,
		logger: logger.New().WithField("component", "guide"),
	}
}

const identifyPrompt = `Identify the monument, building or artwork in this photo.
Respond with JSON only, in this exact structure:
{"name": "common name", "location": "city, country", "kind": "monument|building|artwork|statue|other", "confidence": 0.0}
Use an empty name and confidence 0 if you cannot tell what it is.`

// Identify asks the vision model what the photo shows. hint is optional
// context from the user, such as where the photo was taken.
func (g *Guide) Identify(ctx context.Context, image llm.Image, hint string) (*Identification, error) {
	if len(image.Data) == 0 {
		return nil, ErrNoImage
	}

	prompt := identifyPrompt
	if hint = strings.TrimSpace(hint); hint != "" {
		prompt += "\nContext from the visitor: " + hint
	}

	resp, err := g.llm.Complete(ctx, llm.Request{
		JSON:        true,
		Temperature: 0.2,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt, Images: []llm.Image{image}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("identifying monument: %w", err)
	}

	var id Identification
	if err := decodeJSON(resp, &id); err != nil {
		g.logger.Warn(fmt.Sprintf("failed to parse identification. [response:%s]", resp))
		return nil, fmt.Errorf("%w: %v", ErrNotIdentified, err)
	}

	id.Name = strings.TrimSpace(id.Name)
	if id.Name == "" {
		return nil, ErrNotIdentified
	}
	return &id, nil
}

const describePrompt = `You are an enthusiastic, knowledgeable tour guide.
Write about %s%s for a visitor standing in front of it.
Respond with JSON only, in this exact structure:
{"title": "...", "summary": "two or three sentences", "history": "...", "significance": "...", "fun_fact": "..."}
Keep every field short enough to be read aloud comfortably.`

// Describe writes a description of the named monument. When the model
// ignores the JSON format its whole reply becomes the summary.
func (g *Guide) Describe(ctx context.Context, name, location string) (*Description, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNoMonument
	}

	where := ""
	if location = strings.TrimSpace(location); location != "" {
		where = " in " + location
	}

	resp, err := g.llm.Complete(ctx, llm.Request{
		JSON: true,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(describePrompt, name, where)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", name, err)
	}

	var d Description
	if err := decodeJSON(resp, &d); err != nil {
		g.logger.Warn(fmt.Sprintf("failed to parse description, using raw text. [monument:%s]", name))
		return &Description{Title: name, Summary: strings.TrimSpace(resp)}, nil
	}

	if d.Title == "" {
		d.Title = name
	}
	return &d, nil
}

// NarrationText joins the parts of a description into the text read aloud.
func NarrationText(d *Description) string {
	if d == nil {
		return ""
	}

	var parts []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if !strings.ContainsAny(s[len(s)-1:], ".!?") {
			s += "."
		}
		parts = append(parts, s)
	}

	add(d.Title)
	add(d.Summary)
	add(d.History)
	add(d.Significance)
	if fact := strings.TrimSpace(d.FunFact); fact != "" {
		add("Here is a fun fact: " + fact)
	}

	return strings.Join(parts, " ")
}
