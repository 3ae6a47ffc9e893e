package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedMarker = "revoked"
	minRevokeTTL  = time.Second
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

func NewWithClient(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("jwt:revoked:%s", tokenID)
}

// * Revoke marks the token id as revoked until ttl elapses.
func (r *RedisRepo) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	const op = "storage.redis.Revoke"

	if ttl < minRevokeTTL {
		ttl = minRevokeTTL
	}

	if err := r.client.Set(ctx, revokedKey(tokenID), revokedMarker, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * RevokeOnce revokes the token id unless it is already revoked.
// It reports false when the id was revoked before the call.
func (r *RedisRepo) RevokeOnce(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	const op = "storage.redis.RevokeOnce"

	if ttl < minRevokeTTL {
		ttl = minRevokeTTL
	}

	claimed, err := r.client.SetNX(ctx, revokedKey(tokenID), revokedMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return claimed, nil
}

// * IsRevoked returns an error, never false, when redis cannot answer.
func (r *RedisRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	const op = "storage.redis.IsRevoked"

	err := r.client.Get(ctx, revokedKey(tokenID)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

func (r *RedisRepo) flushAll(ctx context.Context) error {
	const op = "storage.redis.flushAll"

	if err := r.client.FlushAll(ctx).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * Close releases the client connection pool.
func (r *RedisRepo) Close() {
	r.client.Close()
}
