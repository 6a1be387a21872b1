package engine

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore keeps quota windows in redis so every engine
// instance shares one set of counters.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore wraps an existing redis client.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

// incrWithWindow increments the counter and opens the expiry window in
// one atomic step. The TTL re-check also re-arms a window that a crash
// between INCR and EXPIRE left persistent, so a bucket can never grow
// forever and lock a recipient out permanently.
var incrWithWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("TTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

func (s *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrWithWindow.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
}

func (s *RedisCounterStore) Current(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}
