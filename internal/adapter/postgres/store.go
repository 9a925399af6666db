package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CodeMentor/internal/domain"
	"github.com/Strob0t/CodeMentor/internal/domain/chat"
)

// Store implements chatstore.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SaveChat upserts the chat row and its full message list in one transaction.
// Messages are keyed by (chat_id, position), so re-saving the same finalized
// state is a no-op and a re-save after further turns only appends.
func (s *Store) SaveChat(ctx context.Context, c *chat.Chat) error {
	interactions, err := json.Marshal(c.Interactions)
	if err != nil {
		return fmt.Errorf("marshal interactions: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save chat: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO chats (id, user_id, title, interactions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title, interactions = EXCLUDED.interactions, updated_at = NOW()`,
		c.ID, c.UserID, c.Title, interactions, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert chat %s: %w", c.ID, err)
	}

	for i := range c.Messages {
		m := &c.Messages[i]
		var kind *string
		var props []byte
		if m.Display != nil {
			k := string(m.Display.Kind)
			kind = &k
			props = m.Display.Props
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO chat_messages (id, chat_id, position, role, content, display_kind, display_props, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (chat_id, position) DO UPDATE
			 SET content = EXCLUDED.content, display_kind = EXCLUDED.display_kind, display_props = EXCLUDED.display_props`,
			m.ID, c.ID, i, m.Role, m.Content, kind, props, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert message %d of chat %s: %w", i, c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save chat %s: %w", c.ID, err)
	}
	return nil
}

// GetChat loads a chat with its full ordered message history.
func (s *Store) GetChat(ctx context.Context, id string) (*chat.Chat, error) {
	var c chat.Chat
	var interactions []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, interactions, created_at, updated_at
		 FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &interactions, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get chat %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get chat %s: %w", id, err)
	}
	if err := json.Unmarshal(interactions, &c.Interactions); err != nil {
		return nil, fmt.Errorf("unmarshal interactions of chat %s: %w", id, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, role, content, display_kind, display_props, created_at
		 FROM chat_messages WHERE chat_id = $1 ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list messages of chat %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m chat.Message
		var kind *string
		var props []byte
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &kind, &props, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ChatID = id
		if kind != nil {
			m.Display = &chat.Display{Kind: chat.ToolKind(*kind), Props: props}
		}
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages of chat %s: %w", id, err)
	}
	return &c, nil
}

// ListChatsByUser returns a user's chats, most recently updated first,
// without message bodies.
func (s *Store) ListChatsByUser(ctx context.Context, userID string) ([]chat.Chat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM chats WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var result []chat.Chat
	for rows.Next() {
		var c chat.Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// DeleteChat removes a chat; messages are removed by the FK cascade.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete chat %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
