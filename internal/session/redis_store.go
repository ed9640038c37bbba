package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

var (
	ErrIDInUse = errors.New("session: id already in use")
	errExpired = errors.New("session: already expired")
)

// RedisStore keeps each session as a JSON blob whose Redis TTL matches the
// session lifetime, so abandoned staged identities expire on their own.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Create stores a new session and fails with ErrIDInUse on collision.
func (r *RedisStore) Create(ctx context.Context, s Session) error {
	data, ttl, err := encode(s)
	if err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, keyPrefix+s.SessionID, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	if !ok {
		return ErrIDInUse
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	val, err := r.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}

	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", sessionID, err)
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, keyPrefix+sessionID).Err()
}

// Update writes s, creating it when absent. A session past its expiry is
// deleted instead.
func (r *RedisStore) Update(ctx context.Context, s Session) error {
	data, ttl, err := encode(s)
	if errors.Is(err, errExpired) {
		return r.Delete(ctx, s.SessionID)
	}
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, keyPrefix+s.SessionID, data, ttl).Err(); err != nil {
		return fmt.Errorf("session: update: %w", err)
	}
	return nil
}

// encode returns the stored form of s and how long Redis should keep it.
func encode(s Session) ([]byte, time.Duration, error) {
	if s.SessionID == "" {
		return nil, 0, errors.New("session: missing session_id")
	}

	deadline := s.ExpiresAt
	if !s.AbsoluteExpiresAt.IsZero() && s.AbsoluteExpiresAt.Before(deadline) {
		deadline = s.AbsoluteExpiresAt
	}
	ttl := time.Until(deadline)
	if ttl <= 0 {
		return nil, 0, errExpired
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, 0, fmt.Errorf("session: encode: %w", err)
	}
	return data, ttl, nil
}
