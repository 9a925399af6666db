// Package chatstore defines the persistence port for canonical chat history.
package chatstore

import (
	"context"

	"github.com/Strob0t/CodeMentor/internal/domain/chat"
)

// Store is the persistence collaborator notified on every turn finalization.
type Store interface {
	// SaveChat upserts the full chat (metadata and message list). It must be
	// idempotent: saving the same finalized state twice is a no-op.
	SaveChat(ctx context.Context, c *chat.Chat) error

	// GetChat loads a chat with its full message history.
	// Returns an error wrapping domain.ErrNotFound for unknown IDs.
	GetChat(ctx context.Context, id string) (*chat.Chat, error)

	// ListChatsByUser returns a user's chats, most recently updated first,
	// without message bodies.
	ListChatsByUser(ctx context.Context, userID string) ([]chat.Chat, error)

	// DeleteChat removes a chat and its messages.
	DeleteChat(ctx context.Context, id string) error
}
