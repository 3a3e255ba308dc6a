package presence

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const sessionsKey = "presence:sessions"

// RedisCounter shares session counts between gateway instances through a
// Redis hash. A user stays online while any instance still holds a
// session for them.
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

var _ Counter = (*RedisCounter)(nil)

func (c *RedisCounter) Incr(ctx context.Context, userID string) (int64, error) {
	return c.rdb.HIncrBy(ctx, sessionsKey, userID, 1).Result()
}

func (c *RedisCounter) Decr(ctx context.Context, userID string) (int64, error) {
	n, err := c.rdb.HIncrBy(ctx, sessionsKey, userID, -1).Result()
	if err != nil {
		return n, err
	}
	if n <= 0 {
		// Field removal keeps Members a plain HKEYS.
		if err := c.rdb.HDel(ctx, sessionsKey, userID).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *RedisCounter) Members(ctx context.Context) ([]string, error) {
	return c.rdb.HKeys(ctx, sessionsKey).Result()
}
