package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/Strob0t/CodeMentor/internal/config"
	"github.com/Strob0t/CodeMentor/internal/domain"
	"github.com/Strob0t/CodeMentor/internal/domain/chat"
	"github.com/Strob0t/CodeMentor/internal/port/broadcast"
	"github.com/Strob0t/CodeMentor/internal/port/chatstore"
	"github.com/Strob0t/CodeMentor/internal/port/gate"
	"github.com/Strob0t/CodeMentor/internal/port/messagequeue"
	"github.com/Strob0t/CodeMentor/internal/port/modelstream"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ chatstore.Store       = (*mockChatStore)(nil)
	_ gate.Gate             = (*mockGate)(nil)
	_ modelstream.Provider  = (*mockProvider)(nil)
	_ modelstream.Stream    = (*scriptedStream)(nil)
	_ broadcast.Broadcaster = (*mockBroadcaster)(nil)
	_ messagequeue.Queue    = (*mockQueue)(nil)
)

type mockChatStore struct {
	mu      sync.Mutex
	chats   map[string]chat.Chat
	saves   int
	saveErr error
}

func newMockChatStore() *mockChatStore {
	return &mockChatStore{chats: make(map[string]chat.Chat)}
}

func (m *mockChatStore) SaveChat(_ context.Context, c *chat.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.chats[c.ID] = *c
	return nil
}

func (m *mockChatStore) GetChat(_ context.Context, id string) (*chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *mockChatStore) ListChatsByUser(_ context.Context, userID string) ([]chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []chat.Chat
	for _, c := range m.chats {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *mockChatStore) DeleteChat(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.chats, id)
	return nil
}

func (m *mockChatStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type mockGate struct {
	mu     sync.Mutex
	denied bool
	admits int
}

func (m *mockGate) Admit(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admits++
	if m.denied {
		return domain.ErrRateLimited
	}
	return nil
}

// scriptedStream replays a fixed event sequence, optionally injecting an
// error after the scripted events instead of io.EOF.
type scriptedStream struct {
	events []modelstream.Event
	errAt  error // returned after events are exhausted; nil means io.EOF
	pos    int
	closed bool
}

func (s *scriptedStream) Recv() (modelstream.Event, error) {
	if s.pos >= len(s.events) {
		if s.errAt != nil {
			return modelstream.Event{}, s.errAt
		}
		return modelstream.Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type mockProvider struct {
	mu          sync.Mutex
	stream      *scriptedStream
	streamErr   error
	lastRequest modelstream.ChatRequest
	describeOut string
	describeErr error
}

func (m *mockProvider) StreamChat(_ context.Context, req modelstream.ChatRequest) (modelstream.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRequest = req
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	return m.stream, nil
}

func (m *mockProvider) DescribeImage(_ context.Context, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.describeErr != nil {
		return "", m.describeErr
	}
	return m.describeOut, nil
}

func (m *mockProvider) request() modelstream.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

type broadcastCall struct {
	eventType string
	payload   any
}

type mockBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (m *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, broadcastCall{eventType, payload})
}

func (m *mockBroadcaster) byType(eventType string) []broadcastCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []broadcastCall
	for _, c := range m.calls {
		if c.eventType == eventType {
			result = append(result, c)
		}
	}
	return result
}

type publishedMsg struct {
	subject string
	data    []byte
}

type mockQueue struct {
	mu        sync.Mutex
	published []publishedMsg
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMsg{subject, data})
	return nil
}

func (m *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Drain() error      { return nil }
func (m *mockQueue) Close() error      { return nil }
func (m *mockQueue) IsConnected() bool { return true }

func (m *mockQueue) bySubject(subject string) []publishedMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []publishedMsg
	for _, p := range m.published {
		if p.subject == subject {
			result = append(result, p)
		}
	}
	return result
}

// newTestService wires a ChatService around the given mocks with instant
// simulated delays and a fixed clock.
func newTestService(store *mockChatStore, g *mockGate, p *mockProvider, hub *mockBroadcaster) *ChatService {
	svc := NewChatService(store, g, p, hub, config.Chat{SimulatedDelay: time.Millisecond}, 0)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	svc.sleep = func(context.Context, time.Duration) bool { return true }
	return svc
}
