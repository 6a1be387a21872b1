package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCountCache caches unread counts in redis with a short TTL so a
// burst of badge polls does not hammer the store.
type RedisCountCache struct {
	client *redis.Client
}

// NewRedisCountCache wraps an existing redis client.
func NewRedisCountCache(client *redis.Client) *RedisCountCache {
	return &RedisCountCache{client: client}
}

func (c *RedisCountCache) Get(ctx context.Context, recipientID uint) (int64, bool) {
	count, err := c.client.Get(ctx, unreadKey(recipientID)).Int64()
	if err != nil {
		// A miss and cache trouble both degrade to a store read.
		return 0, false
	}
	return count, true
}

func (c *RedisCountCache) Set(ctx context.Context, recipientID uint, count int64, ttl time.Duration) {
	c.client.Set(ctx, unreadKey(recipientID), count, ttl)
}

func (c *RedisCountCache) Invalidate(ctx context.Context, recipientID uint) {
	c.client.Del(ctx, unreadKey(recipientID))
}

func unreadKey(recipientID uint) string {
	return fmt.Sprintf("notif:unread:%d", recipientID)
}
