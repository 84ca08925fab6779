package guide

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tahcohcat/monument-narrator/internal/llm"
)

var (
	ErrNoQuestion           = errors.New("no question provided")
	ErrConversationNotFound = errors.New("conversation not found")
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Reply is the guide's answer in a conversation.
type Reply struct {
	Response    string   `json:"response"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Conversation is a chat with the guide about one monument.
type Conversation struct {
	ID       string
	Monument string
	Location string

	updated atomic.Int64

	mu       sync.Mutex
	messages []*Message
}

func newConversation(monument, location string) *Conversation {
	c := &Conversation{
		ID:       uuid.New().String(),
		Monument: monument,
		Location: location,
	}
	c.updated.Store(time.Now().UnixNano())
	return c
}

func (c *Conversation) systemPrompt() string {
	where := ""
	if c.Location != "" {
		where = " in " + c.Location
	}
	return fmt.Sprintf(`You are a friendly tour guide standing with a visitor at %s%s.
Answer the visitor's questions about it accurately and briefly; your answers are read aloud.
If you don't know something, say so.
You MUST respond in valid JSON only, in this exact structure:
{"response": "your answer", "suggestions": ["a follow-up question", "another one"]}`, c.Monument, where)
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, 0, len(c.messages))
	for _, m := range c.messages {
		out = append(out, *m)
	}
	return out
}

// Ask sends question with the conversation so far and records the answer.
func (c *Conversation) Ask(ctx context.Context, client llm.LLM, question string) (*Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrNoQuestion
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.messages) == 0 {
		c.messages = []*Message{{Role: llm.RoleSystem, Content: c.systemPrompt(), Timestamp: time.Now()}}
	}

	req := llm.Request{JSON: true}
	for _, m := range c.messages {
		req.Messages = append(req.Messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	req.Messages = append(req.Messages, llm.Message{Role: llm.RoleUser, Content: question})

	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("asking guide: %w", err)
	}

	var reply Reply
	if err := decodeJSON(resp, &reply); err != nil || strings.TrimSpace(reply.Response) == "" {
		reply = Reply{Response: strings.TrimSpace(resp)}
	}

	now := time.Now()
	c.messages = append(c.messages,
		&Message{Role: llm.RoleUser, Content: question, Timestamp: now},
		&Message{Role: llm.RoleAssistant, Content: reply.Response, Timestamp: now},
	)
	c.updated.Store(now.UnixNano())

	return &reply, nil
}

func (c *Conversation) lastUpdated() time.Time {
	return time.Unix(0, c.updated.Load())
}

// Conversations keeps the open chats, dropping those idle for longer than ttl.
type Conversations struct {
	ttl time.Duration

	mu    sync.Mutex
	items map[string]*Conversation
}

func NewConversations(ttl time.Duration) *Conversations {
	return &Conversations{ttl: ttl, items: make(map[string]*Conversation)}
}

// Start opens a conversation about a monument.
func (s *Conversations) Start(monument, location string) (*Conversation, error) {
	monument = strings.TrimSpace(monument)
	if monument == "" {
		return nil, ErrNoMonument
	}

	c := newConversation(monument, strings.TrimSpace(location))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(time.Now())
	s.items[c.ID] = c
	return c, nil
}

func (s *Conversations) Get(id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return c, nil
}

func (s *Conversations) End(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

func (s *Conversations) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Conversations) evictLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, c := range s.items {
		if now.Sub(c.lastUpdated()) > s.ttl {
			delete(s.items, id)
		}
	}
}
