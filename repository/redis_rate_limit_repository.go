package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"greengate/pkg/logger"
)

// RedisRateLimitRepository implements fixed-window rate limiting on
// Redis. INCR is atomic on the server, so the increment-and-compare race
// a read-then-write implementation has at the window boundary cannot
// occur; expired buckets evict themselves via TTL.
type RedisRateLimitRepository struct {
	client *redis.Client
	ctx    context.Context
	logger *logger.Logger
}

// NewRedisRateLimitRepository creates a new Redis rate limit repository
func NewRedisRateLimitRepository(client *redis.Client, logger *logger.Logger) RateLimitRepository {
	return &RedisRateLimitRepository{
		client: client,
		ctx:    context.Background(),
		logger: logger,
	}
}

// Increment bumps the window counter for key and returns the new count
// and window reset time.
func (r *RedisRateLimitRepository) Increment(key string, window time.Duration) (int64, time.Time, error) {
	bucketKey := fmt.Sprintf("rate_limit:%s", key)

	pipe := r.client.TxPipeline()
	incrCmd := pipe.Incr(r.ctx, bucketKey)
	ttlCmd := pipe.PTTL(r.ctx, bucketKey)
	if _, err := pipe.Exec(r.ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	count := incrCmd.Val()
	ttl := ttlCmd.Val()

	// First hit in a window (or a key that somehow lost its TTL): start
	// the window now.
	if ttl < 0 {
		if err := r.client.Expire(r.ctx, bucketKey, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		ttl = window
	}

	resetAt := time.Now().Add(ttl)

	r.logger.Debugw("Rate limit incremented",
		"key", key,
		"count", count,
		"reset_at", resetAt.Format(time.RFC3339))

	return count, resetAt, nil
}
