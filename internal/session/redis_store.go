package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meetingviewer/internal/models"
	"meetingviewer/internal/redis"
)

const redisKeyPrefix = "session:"

// RedisStore keeps sessions as JSON values whose TTL matches the session expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func (r *RedisStore) key(token string) string {
	return redisKeyPrefix + token
}

func (r *RedisStore) Put(ctx context.Context, s models.Session) error {
	s, err := prepare(s, r.now(), r.ttl)
	if err != nil {
		return err
	}
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	return r.client.Set(ctx, r.key(s.Token), data, ttl)
}

func (r *RedisStore) Get(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, nil
	}
	val, err := r.client.Get(ctx, r.key(token))
	if errors.Is(err, redis.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s models.Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &s, nil
}
