package middleware

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// KeyedLimiter is an in-process token bucket per key.
type KeyedLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
}

type visitor struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewKeyedLimiter(perMinute, burst int) *KeyedLimiter {
	if burst <= 0 {
		burst = 5
	}
	return &KeyedLimiter{rps: rate.Limit(float64(perMinute) / 60.0), burst: burst}
}

func (l *KeyedLimiter) Allow(_ context.Context, key string) (bool, error) {
	v, _ := l.visitors.LoadOrStore(key, &visitor{limiter: rate.NewLimiter(l.rps, l.burst)})
	vi := v.(*visitor)
	vi.mu.Lock()
	vi.lastSeen = time.Now()
	vi.mu.Unlock()
	return vi.limiter.Allow(), nil
}

// Cleanup drops idle keys every minute until ctx is done.
func (l *KeyedLimiter) Cleanup(ctx context.Context, idle time.Duration) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.sweep(time.Now().Add(-idle))
		}
	}
}

func (l *KeyedLimiter) sweep(cutoff time.Time) {
	l.visitors.Range(func(k, v interface{}) bool {
		vi := v.(*visitor)
		vi.mu.Lock()
		stale := vi.lastSeen.Before(cutoff)
		vi.mu.Unlock()
		if stale {
			l.visitors.Delete(k)
		}
		return true
	})
}

// RateLimit keys requests by authenticated user, falling back to client IP.
// A failing limiter lets the request through.
func RateLimit(l Limiter, log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := UserID(c)
		if key == "" {
			key = "ip:" + clientIP(c)
		}
		ok, err := l.Allow(c.UserContext(), key)
		if err != nil {
			log.Warnw("rate limiter unavailable", "error", err)
			return c.Next()
		}
		if !ok {
			log.Warnw("rate limit exceeded", "key", key, "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status":  "error",
				"code":    "RATE_LIMITED",
				"message": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}

func clientIP(c *fiber.Ctx) string {
	ip := c.IP()
	if ip == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
