package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects and pings. The caller owns Close.
func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return r, nil
}

// Presence marks users online in Redis so every instance can answer
// "is this user connected somewhere". Entries expire unless refreshed.
type Presence struct {
	cli    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewPresence(cli *redis.Client, prefix string, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Presence{cli: cli, prefix: prefix, ttl: ttl}
}

func (p *Presence) key(userID string) string {
	if p.prefix == "" {
		return "presence:" + userID
	}
	return p.prefix + ":presence:" + userID
}

func (p *Presence) SetOnline(ctx context.Context, userID string) error {
	return p.cli.Set(ctx, p.key(userID), "1", p.ttl).Err()
}

func (p *Presence) SetOffline(ctx context.Context, userID string) error {
	return p.cli.Del(ctx, p.key(userID)).Err()
}

// IsOnline treats Redis errors as offline.
func (p *Presence) IsOnline(ctx context.Context, userID string) bool {
	n, err := p.cli.Exists(ctx, p.key(userID)).Result()
	return err == nil && n > 0
}
