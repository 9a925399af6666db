// Package modelstream defines the port for streaming generative model access.
package modelstream

import (
	"context"
	"encoding/json"

	"github.com/Strob0t/CodeMentor/internal/domain/chat"
)

// ChatMessage is one history entry sent to the model. Display metadata is
// stripped before the history reaches this type: the model sees role and
// content only.
type ChatMessage struct {
	Role    string
	Content string
}

// ToolCall is a structured invocation the model emitted mid-stream.
type ToolCall struct {
	Name chat.ToolKind
	Args json.RawMessage
}

// Event is one item of the model's incremental output stream. Exactly one of
// TextDelta or ToolCall is set.
type Event struct {
	TextDelta string
	ToolCall  *ToolCall
}

// Stream yields model output events in arrival order. Recv returns io.EOF
// when the stream completes normally.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// ChatRequest is one inference call.
type ChatRequest struct {
	System      string
	Messages    []ChatMessage
	Tools       []chat.ToolSchema
	Temperature float64
}

// Provider is the port to the model backend.
type Provider interface {
	// StreamChat starts one inference call and returns its event stream.
	StreamChat(ctx context.Context, req ChatRequest) (Stream, error)

	// DescribeImage runs a single-shot vision call over a base64-encoded PNG
	// and returns the model's text response.
	DescribeImage(ctx context.Context, prompt, imageBase64 string) (string, error)
}
