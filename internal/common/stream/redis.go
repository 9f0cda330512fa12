// internal/common/stream/redis.go
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"viora-nlu/internal/common/config"
)

// RedisClient wraps the Redis client used for decision streams.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return &RedisClient{Client: rdb}
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// Append adds one entry to a stream capped at roughly maxLen entries and
// returns the entry ID. maxLen <= 0 leaves the stream uncapped.
func (c *RedisClient) Append(ctx context.Context, key string, maxLen int64, values map[string]interface{}) (string, error) {
	args := &redis.XAddArgs{
		Stream: key,
		Values: values,
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	id, err := c.Client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", key, err)
	}
	return id, nil
}

// Len returns the number of entries in a stream.
func (c *RedisClient) Len(ctx context.Context, key string) (int64, error) {
	return c.Client.XLen(ctx, key).Result()
}
