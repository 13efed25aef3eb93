package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked_jti:"

// RedisRevokedTokenStore implements RevokedTokenStore with keys that expire alongside the token.
type RedisRevokedTokenStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisRevokedTokenStore connects to redis at addr.
func NewRedisRevokedTokenStore(addr, password string, db int) (*RedisRevokedTokenStore, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisRevokedTokenStoreWithClient(client), nil
}

// NewRedisRevokedTokenStoreWithClient wraps an existing client.
func NewRedisRevokedTokenStoreWithClient(client redis.UniversalClient) *RedisRevokedTokenStore {
	return &RedisRevokedTokenStore{client: client, now: time.Now}
}

// Ping verifies connectivity.
func (s *RedisRevokedTokenStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Revoke stores the token id until its expiry.
func (s *RedisRevokedTokenStore) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+jti, userID, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks for the token id key.
func (s *RedisRevokedTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired is a no-op; redis expires keys on its own.
func (s *RedisRevokedTokenStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Close releases the client.
func (s *RedisRevokedTokenStore) Close() error {
	return s.client.Close()
}
