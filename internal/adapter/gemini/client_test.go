package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/CodeMentor/internal/config"
	"github.com/Strob0t/CodeMentor/internal/domain"
	"github.com/Strob0t/CodeMentor/internal/domain/chat"
	"github.com/Strob0t/CodeMentor/internal/port/modelstream"
)

func testClient(baseURL string) *Client {
	return NewClient(config.Gemini{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "models/gemini-pro",
		VisionModel: "models/gemini-pro-vision",
		Temperature: 0,
	})
}

func drain(t *testing.T, s modelstream.Stream) []modelstream.Event {
	t.Helper()
	var events []modelstream.Event
	for {
		ev, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		events = append(events, ev)
	}
}

func TestStreamChatParsesDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("missing api key header, got %q", got)
		}
		if !strings.Contains(r.URL.Path, "streamGenerateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"Hello"}]}}]}`+"\n\n")
		_, _ = io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":", Boss"}]}}]}`+"\n\n")
	}))
	defer srv.Close()

	stream, err := testClient(srv.URL).StreamChat(context.Background(), modelstream.ChatRequest{
		Messages: []modelstream.ChatMessage{{Role: chat.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	defer func() { _ = stream.Close() }()

	events := drain(t, stream)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].TextDelta != "Hello" || events[1].TextDelta != ", Boss" {
		t.Fatalf("unexpected deltas: %+v", events)
	}
}

func TestStreamChatParsesFunctionCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"functionCall":{"name":"showProjectStructure","args":{"projectType":"web app","language":"Go"}}}]}}]}`+"\n\n")
	}))
	defer srv.Close()

	stream, err := testClient(srv.URL).StreamChat(context.Background(), modelstream.ChatRequest{})
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	defer func() { _ = stream.Close() }()

	events := drain(t, stream)
	if len(events) != 1 || events[0].ToolCall == nil {
		t.Fatalf("expected one tool call, got %+v", events)
	}
	if events[0].ToolCall.Name != chat.ToolShowProjectStructure {
		t.Fatalf("unexpected tool name %q", events[0].ToolCall.Name)
	}
	var args chat.StructureArgs
	if err := json.Unmarshal(events[0].ToolCall.Args, &args); err != nil {
		t.Fatalf("args not valid JSON: %v", err)
	}
	if args.Language != "Go" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestStreamChatSkipsKeepAlivesAndDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, ": keep-alive comment\n\n")
		_, _ = io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`+"\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	stream, err := testClient(srv.URL).StreamChat(context.Background(), modelstream.ChatRequest{})
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	defer func() { _ = stream.Close() }()

	events := drain(t, stream)
	if len(events) != 1 || events[0].TextDelta != "ok" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestStreamChatInlineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `data: {"error":{"code":429,"message":"quota exceeded"}}`+"\n\n")
	}))
	defer srv.Close()

	stream, err := testClient(srv.URL).StreamChat(context.Background(), modelstream.ChatRequest{})
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	defer func() { _ = stream.Close() }()

	_, err = stream.Recv()
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
}

func TestStreamChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).StreamChat(context.Background(), modelstream.ChatRequest{})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
}

func TestStreamChatSendsSystemAndTools(t *testing.T) {
	var captured wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	stream, err := testClient(srv.URL).StreamChat(context.Background(), modelstream.ChatRequest{
		System: "You are Alex.",
		Messages: []modelstream.ChatMessage{
			{Role: chat.RoleUser, Content: "hi"},
			{Role: chat.RoleAssistant, Content: "hello"},
		},
		Tools:       chat.Schemas(),
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	_ = stream.Close()

	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "You are Alex." {
		t.Fatalf("system instruction not sent: %+v", captured.SystemInstruction)
	}
	if len(captured.Contents) != 2 || captured.Contents[1].Role != "model" {
		t.Fatalf("assistant role must map to model, got %+v", captured.Contents)
	}
	if len(captured.Tools) != 1 || len(captured.Tools[0].FunctionDeclarations) != len(chat.Kinds()) {
		t.Fatalf("expected all tool declarations, got %+v", captured.Tools)
	}
	if captured.GenerationConfig == nil || captured.GenerationConfig.Temperature != 0.7 {
		t.Fatalf("temperature not sent: %+v", captured.GenerationConfig)
	}
}

func TestDescribeImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-pro-vision") {
			t.Errorf("expected vision model in path, got %q", r.URL.Path)
		}
		var req wireRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		parts := req.Contents[0].Parts
		if len(parts) != 2 || parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/png" {
			t.Errorf("unexpected request parts: %+v", parts)
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Some books."}]}}]}`)
	}))
	defer srv.Close()

	text, err := testClient(srv.URL).DescribeImage(context.Background(), "List the books in this image.", "aGVsbG8=")
	if err != nil {
		t.Fatalf("describe image: %v", err)
	}
	if text != "Some books." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestDescribeImageHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).DescribeImage(context.Background(), "prompt", "img")
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
}
