// Package chat defines the conversation domain: canonical message history,
// tool-call schemas, and the projection into renderable presentation units.
package chat

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Display tags an assistant message with the tool that produced it, carrying
// exactly the arguments needed to re-render its card.
type Display struct {
	Kind  ToolKind        `json:"kind"`
	Props json.RawMessage `json:"props"`
}

// Message is a single entry in a chat's canonical history.
// Messages are immutable once the turn that produced them is finalized; the
// only in-turn mutation is the streaming amend of the running assistant
// message's content.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"` // "user", "assistant", "system", "tool"
	Content   string    `json:"content"`
	Display   *Display  `json:"display,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Chat is the canonical, durable record of a conversation.
// Messages is append-only within a turn. Interactions holds transient
// out-of-band inputs (image descriptions) that are folded into the next user
// message and then cleared.
type Chat struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Interactions []string  `json:"interactions,omitempty"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// maxTitleLen bounds the title derived from the first user message.
const maxTitleLen = 100

// DeriveTitle returns the chat title derived from the first user message,
// truncated to a display-friendly length. Falls back to "New Chat".
func DeriveTitle(messages []Message) string {
	for i := range messages {
		if messages[i].Role != RoleUser {
			continue
		}
		title := strings.TrimSpace(messages[i].Content)
		if title == "" {
			break
		}
		if len(title) > maxTitleLen {
			cut := maxTitleLen
			// Back off to a rune boundary so the cut never splits a
			// multi-byte character.
			for cut > 0 && !utf8.RuneStart(title[cut]) {
				cut--
			}
			title = title[:cut]
		}
		return title
	}
	return "New Chat"
}

// CreateRequest is the request body for creating a new chat.
type CreateRequest struct {
	Title string `json:"title"`
}

// SubmitTurnRequest is the request body for submitting a user turn.
type SubmitTurnRequest struct {
	Content string `json:"content"`
}

// DescribeImageRequest is the request body for the image description utility.
// Image is a base64-encoded PNG; an empty string triggers the canned demo
// response.
type DescribeImageRequest struct {
	Image string `json:"image"`
}
