package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dijistore/storefront/internal/service/models/cart"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// ErrCartNotFound is returned when the session has no stored cart.
var ErrCartNotFound = errors.New("cart not found")

// RedisCartStore keeps session cart state in Redis. Carts expire with
// the session TTL; expiry is acceptable, no order exists yet.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCartStore creates a new Redis cart store.
func NewRedisCartStore(client *redis.Client) *RedisCartStore {
	ttlMinutes := viper.GetInt("cart.session_ttl_minutes")
	if ttlMinutes == 0 {
		ttlMinutes = 120
	}

	return &RedisCartStore{
		client: client,
		ttl:    time.Duration(ttlMinutes) * time.Minute,
	}
}

func cartKey(sessionID string) string {
	return "cart:" + sessionID
}

// Get loads the cart state for a session.
func (s *RedisCartStore) Get(ctx context.Context, sessionID string) (*cart.State, error) {
	data, err := s.client.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var state cart.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return &state, nil
}

// Set stores the cart state and refreshes the session TTL.
func (s *RedisCartStore) Set(ctx context.Context, state *cart.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := s.client.Set(ctx, cartKey(state.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Delete removes the cart state for a session.
func (s *RedisCartStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}

	return nil
}
