package wordbank

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRecency shares the recency set between processes through a Redis list
type RedisRecency struct {
	client   redis.UniversalClient
	key      string
	capacity int
}

// NewRedisRecency creates a Redis-backed recency set stored under key
func NewRedisRecency(client redis.UniversalClient, key string, capacity int) *RedisRecency {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if key == "" {
		key = "wordbank:recent"
	}
	return &RedisRecency{client: client, key: key, capacity: capacity}
}

func (r *RedisRecency) Capacity() int { return r.capacity }

func (r *RedisRecency) Recent(ctx context.Context) ([]string, error) {
	words, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent words: %w", err)
	}
	return words, nil
}

func (r *RedisRecency) Add(ctx context.Context, words ...string) error {
	if len(words) == 0 {
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range words {
			pipe.LRem(ctx, r.key, 0, w)
			pipe.RPush(ctx, r.key, w)
		}
		pipe.LTrim(ctx, r.key, int64(-r.capacity), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record recent words: %w", err)
	}
	return nil
}

func (r *RedisRecency) EvictOldestHalf(ctx context.Context) error {
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return fmt.Errorf("failed to read recent words: %w", err)
	}
	if n < 2 {
		return nil
	}
	if err := r.client.LTrim(ctx, r.key, n/2, -1).Err(); err != nil {
		return fmt.Errorf("failed to evict recent words: %w", err)
	}
	return nil
}
