package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed window counter shared by every instance.
type RedisLimiter struct {
	cli    *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

func NewRedisLimiter(cli *redis.Client, prefix string, perMinute int) *RedisLimiter {
	return &RedisLimiter{cli: cli, prefix: prefix, limit: int64(perMinute), window: time.Minute}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + ":rl:" + key
	n, err := l.cli.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.cli.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= l.limit, nil
}
