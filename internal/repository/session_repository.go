package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/sealer"
)

const sessionKeyPrefix = "console:session:"

// SessionKey returns the storage key of a session record.
func SessionKey(id string) string {
	return sessionKeyPrefix + id
}

// RedisSessionRepository persists session records in Redis, one key per
// session, optionally sealed.
type RedisSessionRepository struct {
	client *redis.Client
	sealer *sealer.Sealer
}

// NewRedisSessionRepository constructs a Redis-backed session repository.
func NewRedisSessionRepository(client *redis.Client, s *sealer.Sealer) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, sealer: s}
}

// Get loads a session. Missing or unreadable records report ErrNotFound.
func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	key := SessionKey(id)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	plain, err := r.sealer.Open(raw, []byte(key))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "session not found")
	}

	var session models.Session
	if err := json.Unmarshal(plain, &session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "session not found")
	}
	return &session, nil
}

// Save writes the record with the given TTL.
func (r *RedisSessionRepository) Save(ctx context.Context, session *models.Session, ttl time.Duration) error {
	key := SessionKey(session.ID)
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}
	sealed, err := r.sealer.Seal(payload, []byte(key))
	if err != nil {
		return fmt.Errorf("seal session %s: %w", session.ID, err)
	}
	if err := r.client.Set(ctx, key, sealed, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the record.
func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	key := SessionKey(id)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// MemorySessionRepository keeps session records in an in-process expirable LRU.
// Records do not survive a restart.
type MemorySessionRepository struct {
	cache *expirable.LRU[string, []byte]
}

// NewMemorySessionRepository builds a memory repository bounded to size entries.
func NewMemorySessionRepository(size int, ttl time.Duration) *MemorySessionRepository {
	if size <= 0 {
		size = 10000
	}
	return &MemorySessionRepository{cache: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get loads a session by id.
func (r *MemorySessionRepository) Get(_ context.Context, id string) (*models.Session, error) {
	raw, ok := r.cache.Get(SessionKey(id))
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	if !session.ExpiresAt.IsZero() && time.Now().After(session.ExpiresAt) {
		r.cache.Remove(SessionKey(id))
		return nil, appErrors.ErrNotFound
	}
	return &session, nil
}

// Save stores a copy of the session. The LRU applies its own TTL; ExpiresAt
// is honoured on read.
func (r *MemorySessionRepository) Save(_ context.Context, session *models.Session, _ time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}
	r.cache.Add(SessionKey(session.ID), payload)
	return nil
}

// Delete removes the session.
func (r *MemorySessionRepository) Delete(_ context.Context, id string) error {
	r.cache.Remove(SessionKey(id))
	return nil
}

// Len reports how many sessions are held.
func (r *MemorySessionRepository) Len() int {
	return r.cache.Len()
}
