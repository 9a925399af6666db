// Package service implements the conversational orchestration engine: turn
// processing, tool dispatch, the challenge sub-flow, and the image
// description utility.
package service

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Strob0t/CodeMentor/internal/adapter/otel"
	"github.com/Strob0t/CodeMentor/internal/config"
	"github.com/Strob0t/CodeMentor/internal/domain/chat"
	"github.com/Strob0t/CodeMentor/internal/port/broadcast"
	"github.com/Strob0t/CodeMentor/internal/port/chatstore"
	"github.com/Strob0t/CodeMentor/internal/port/gate"
	"github.com/Strob0t/CodeMentor/internal/port/messagequeue"
	"github.com/Strob0t/CodeMentor/internal/port/modelstream"
)

//go:embed templates/system_prompt.tmpl
var systemPromptTmpl string

// systemTmpl is the parsed system prompt template.
var systemTmpl = template.Must(template.New("system_prompt").Parse(systemPromptTmpl))

// systemPromptData carries the dynamic fields of the system prompt.
type systemPromptData struct {
	Date     string
	Location string
}

// ChatContext owns the dual state tracks of one conversation: the canonical
// history (the Chat) plus the ephemeral per-turn streams, and serializes
// turns with a weight-1 semaphore. All turn-processing code receives the
// context explicitly; there is no ambient lookup.
type ChatContext struct {
	mu        sync.Mutex
	chat      chat.Chat
	challenge chat.ChallengeStatus
	turnSem   *semaphore.Weighted
}

// snapshot returns a deep-enough copy of the canonical history for readers.
// Messages are value-copied; Display props are shared but treated as
// immutable once set.
func (cc *ChatContext) snapshot() chat.Chat {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	c := cc.chat
	c.Messages = append([]chat.Message(nil), cc.chat.Messages...)
	c.Interactions = append([]string(nil), cc.chat.Interactions...)
	return c
}

// ChatService manages chat lifecycles and holds the live per-conversation
// contexts. It is the sole owner of ChatContext instances.
type ChatService struct {
	store   chatstore.Store
	gate    gate.Gate
	llm     modelstream.Provider
	hub     broadcast.Broadcaster
	queue   messagequeue.Queue // optional; nil disables turn events
	metrics *otel.Metrics      // optional
	cfg     config.Chat
	temp    float64

	mu       sync.Mutex
	contexts map[string]*ChatContext

	now   func() time.Time                          // for testing
	sleep func(context.Context, time.Duration) bool // for testing
}

// NewChatService creates the orchestrator service.
func NewChatService(store chatstore.Store, g gate.Gate, llm modelstream.Provider, hub broadcast.Broadcaster, cfg config.Chat, temperature float64) *ChatService {
	return &ChatService{
		store:    store,
		gate:     g,
		llm:      llm,
		hub:      hub,
		cfg:      cfg,
		temp:     temperature,
		contexts: make(map[string]*ChatContext),
		now:      time.Now,
		sleep:    sleepFor,
	}
}

// SetQueue attaches the turn-event publisher.
func (s *ChatService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetMetrics attaches the metric instruments.
func (s *ChatService) SetMetrics(m *otel.Metrics) { s.metrics = m }

// Create starts a new chat owned by userID and persists the empty record.
func (s *ChatService) Create(ctx context.Context, userID string, req chat.CreateRequest) (*chat.Chat, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	now := s.now().UTC()
	c := chat.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c.Title == "" {
		c.Title = "New Chat"
	}

	if err := s.store.SaveChat(ctx, &c); err != nil {
		return nil, fmt.Errorf("save new chat: %w", err)
	}

	s.mu.Lock()
	s.contexts[c.ID] = &ChatContext{
		chat:      c,
		challenge: chat.ChallengeRequiresCode,
		turnSem:   semaphore.NewWeighted(1),
	}
	s.mu.Unlock()

	return &c, nil
}

// context returns the live context for a chat, loading it from the store on
// first access after a restart.
func (s *ChatService) context(ctx context.Context, chatID string) (*ChatContext, error) {
	s.mu.Lock()
	cc, ok := s.contexts[chatID]
	s.mu.Unlock()
	if ok {
		return cc, nil
	}

	stored, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have raced the load.
	if cc, ok := s.contexts[chatID]; ok {
		return cc, nil
	}
	cc = &ChatContext{
		chat:      *stored,
		challenge: chat.ChallengeRequiresCode,
		turnSem:   semaphore.NewWeighted(1),
	}
	s.contexts[chatID] = cc
	return cc, nil
}

// Get returns the current canonical state of a chat, live if present.
func (s *ChatService) Get(ctx context.Context, chatID string) (*chat.Chat, error) {
	cc, err := s.context(ctx, chatID)
	if err != nil {
		return nil, err
	}
	c := cc.snapshot()
	return &c, nil
}

// History returns the current canonical message history. During an in-flight
// turn this is a partial, live read; the state is durable only after
// finalization.
func (s *ChatService) History(ctx context.Context, chatID string) ([]chat.Message, error) {
	c, err := s.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return c.Messages, nil
}

// Units rehydrates the presentation state for a chat through the projector.
func (s *ChatService) Units(ctx context.Context, chatID string) ([]chat.Unit, error) {
	c, err := s.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return chat.Project(c), nil
}

// ListByUser returns a user's chats without message bodies.
func (s *ChatService) ListByUser(ctx context.Context, userID string) ([]chat.Chat, error) {
	return s.store.ListChatsByUser(ctx, userID)
}

// Delete removes a chat from the store and drops its live context.
func (s *ChatService) Delete(ctx context.Context, chatID string) error {
	if err := s.store.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.contexts, chatID)
	s.mu.Unlock()
	return nil
}

// systemPrompt renders the fixed system instruction.
func (s *ChatService) systemPrompt() string {
	data := systemPromptData{
		Date:     s.now().Format("2 January, 2006"),
		Location: "San Francisco, CA",
	}
	var buf bytes.Buffer
	if err := systemTmpl.Execute(&buf, data); err != nil {
		slog.Error("render system prompt template", "error", err)
		return "You are Alex, a master full stack software engineer."
	}
	return buf.String()
}

// persist fires the persistence hook with the current canonical state.
// Hook failures are logged, never surfaced: the in-memory canonical history
// remains authoritative for the live process.
func (s *ChatService) persist(ctx context.Context, cc *ChatContext) {
	c := cc.snapshot()
	c.Title = chat.DeriveTitle(c.Messages)

	cc.mu.Lock()
	cc.chat.Title = c.Title
	cc.chat.UpdatedAt = s.now().UTC()
	cc.mu.Unlock()

	if err := s.store.SaveChat(ctx, &c); err != nil {
		slog.Error("persistence hook failed", "chat_id", c.ID, "error", err)
	}
}

// publishTurnEvent emits the finalization event for downstream consumers.
func (s *ChatService) publishTurnEvent(ctx context.Context, subject string, payload messagequeue.TurnFinalizedPayload) {
	if s.queue == nil {
		return
	}
	data, err := marshalPayload(payload)
	if err != nil {
		slog.Error("marshal turn event", "turn_id", payload.TurnID, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("publish turn event failed", "subject", subject, "turn_id", payload.TurnID, "error", err)
	}
}

// sleepFor waits for d or until ctx is cancelled; reports whether the full
// delay elapsed.
func sleepFor(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
