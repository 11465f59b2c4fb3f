// Package session remembers the last page each user visited in a collection.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/redis"
)

const keyPrefix = "drc:latest:"

// Store reads and writes the last-visited page id. An unknown user yields an
// empty id, not an error.
type Store interface {
	LatestPage(ctx context.Context, collection, userID string) (string, error)
	SetLatestPage(ctx context.Context, collection, userID, pageID string) error
}

func key(collection, userID string) string {
	return keyPrefix + collection + ":" + userID
}

// RedisStore keeps one key per user and collection, expiring after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "session-store"),
	}
}

func (s *RedisStore) LatestPage(ctx context.Context, collection, userID string) (string, error) {
	id, err := s.client.Get(ctx, key(collection, userID))
	if redis.IsNilError(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading last page of %s: %w", userID, err)
	}
	return id, nil
}

func (s *RedisStore) SetLatestPage(ctx context.Context, collection, userID, pageID string) error {
	if err := s.client.Set(ctx, key(collection, userID), pageID, s.ttl); err != nil {
		return fmt.Errorf("storing last page of %s: %w", userID, err)
	}
	s.logger.Debug("last page stored", "user_id", userID, "page_id", pageID)
	return nil
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	pages map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pages: make(map[string]string)}
}

func (s *MemoryStore) LatestPage(ctx context.Context, collection, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pages[key(collection, userID)], nil
}

func (s *MemoryStore) SetLatestPage(ctx context.Context, collection, userID, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[key(collection, userID)] = pageID
	return nil
}
