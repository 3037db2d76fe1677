// Package redis persists engine state in Redis: session conversation
// contexts with TTL-indexed listing, workflow and agent definitions as
// hashes, and a SET NX distributed locker.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

const defaultPrefix = "dragent:"

// farFuture scores index entries for sessions without a TTL.
const farFuture = 4102444800 // 2100-01-01

// SessionStore implements ports.SessionStore on Redis. Contexts are stored
// as JSON values; an index ZSET scored by expiry supports listing with lazy
// cleanup.
type SessionStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithTTL sets the expiration for sessions. Zero means no expiration.
func WithTTL(ttl time.Duration) SessionOption {
	return func(s *SessionStore) {
		s.ttl = ttl
	}
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) SessionOption {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// NewSessionStore creates a session store from an existing client.
func NewSessionStore(client *backend.Client, opts ...SessionOption) *SessionStore {
	store := &SessionStore{
		client: client,
		prefix: defaultPrefix + "session:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *SessionStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *SessionStore) indexKey() string {
	return s.prefix + "index"
}

// Save persists the conversation context and refreshes its index entry.
func (s *SessionStore) Save(ctx context.Context, sessionID string, sc *domain.ConversationContext) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation context: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(sessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: sessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Load retrieves the conversation context.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*domain.ConversationContext, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var sc domain.ConversationContext
	if err := json.Unmarshal([]byte(val), &sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation context: %w", err)
	}
	return &sc, nil
}

// Delete removes the session and its index entry.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	exists, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check session existence: %w", err)
	}
	if exists == 0 {
		return domain.ErrSessionNotFound
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)
	_, err = pipe.Exec(ctx)
	return err
}

// List returns active session ids, lazily pruning expired index entries.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Close closes the underlying client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}
