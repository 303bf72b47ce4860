// Package session provides Redis-backed storage for issued bearer
// tokens so individual sessions can be revoked before they expire.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"studioflow/api/internal/store"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found or expired")

// sessionData holds the data stored for each token ID.
type sessionData struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// RedisStore tracks live sessions keyed by token ID.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStoreWithClient creates a store on an existing Redis client.
// The caller owns the client's lifecycle, which the feed shares.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
	}
}

func (s *RedisStore) key(tokenID string) string {
	return s.prefix + tokenID
}

// Save records a session for a token, expiring alongside the token itself.
func (s *RedisStore) Save(ctx context.Context, tokenID string, user store.User, expiresAt time.Time) error {
	data := sessionData{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		CreatedAt:   time.Now(),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	if err := s.client.Set(ctx, s.key(tokenID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Lookup returns the user behind a live session.
func (s *RedisStore) Lookup(ctx context.Context, tokenID string) (store.User, error) {
	jsonData, err := s.client.Get(ctx, s.key(tokenID)).Result()
	if err == redis.Nil {
		return store.User{}, ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup session: %w", err)
	}

	var data sessionData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return store.User{}, fmt.Errorf("unmarshal session: %w", err)
	}

	return store.User{
		ID:          data.UserID,
		DisplayName: data.DisplayName,
		Role:        data.Role,
	}, nil
}

// Revoke deletes a session, invalidating its token immediately.
func (s *RedisStore) Revoke(ctx context.Context, tokenID string) error {
	if err := s.client.Del(ctx, s.key(tokenID)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
