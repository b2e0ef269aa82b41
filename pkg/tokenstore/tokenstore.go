// Package tokenstore tracks access tokens revoked before their natural expiry,
// so a logged-out session cannot keep using a still-valid JWT.
package tokenstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	Close() error
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection before use.
func NewRedisStore(addr, password string) (Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisStore{client: rdb}, nil
}

func (s *redisStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		// already expired, nothing to track
		return nil
	}
	key := "revoked:" + token
	if err := s.client.Set(ctx, key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *redisStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, "revoked:"+token).Result()
	if err != nil {
		return false, fmt.Errorf("check token: %w", err)
	}
	return n > 0, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

// memoryStore is the in-process fallback used in development and tests when
// no Redis address is configured.
type memoryStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryStore() Store {
	return &memoryStore{revoked: make(map[string]time.Time)}
}

func (s *memoryStore) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = time.Now().Add(ttl)
	return nil
}

func (s *memoryStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.revoked[token]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.revoked, token)
		return false, nil
	}
	return true, nil
}

func (s *memoryStore) Close() error { return nil }
