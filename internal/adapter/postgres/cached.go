package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Strob0t/CodeMentor/internal/domain/chat"
	"github.com/Strob0t/CodeMentor/internal/port/cache"
)

// CachedStore decorates Store with an in-process read cache for GetChat.
// Rehydration reads (reconnecting clients projecting presentation state) hit
// the same chats repeatedly; writes invalidate before delegating.
type CachedStore struct {
	*Store
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedStore wraps store with the given cache.
func NewCachedStore(store *Store, c cache.Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: store, cache: c, ttl: ttl}
}

func chatCacheKey(id string) string { return "chat:" + id }

// GetChat returns the cached chat when present, loading and caching on miss.
func (s *CachedStore) GetChat(ctx context.Context, id string) (*chat.Chat, error) {
	key := chatCacheKey(id)
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var c chat.Chat
		if err := json.Unmarshal(data, &c); err == nil {
			return &c, nil
		}
		// Corrupt entry: fall through to the store and overwrite.
		_ = s.cache.Delete(ctx, key)
	}

	c, err := s.Store.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(c); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			slog.Debug("chat cache set failed", "chat_id", id, "error", err)
		}
	}
	return c, nil
}

// SaveChat invalidates the cached entry before upserting.
func (s *CachedStore) SaveChat(ctx context.Context, c *chat.Chat) error {
	_ = s.cache.Delete(ctx, chatCacheKey(c.ID))
	return s.Store.SaveChat(ctx, c)
}

// DeleteChat invalidates the cached entry before deleting.
func (s *CachedStore) DeleteChat(ctx context.Context, id string) error {
	_ = s.cache.Delete(ctx, chatCacheKey(id))
	return s.Store.DeleteChat(ctx, id)
}
