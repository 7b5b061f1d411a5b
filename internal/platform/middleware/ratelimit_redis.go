package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every replica. Each key
// may make Limit requests per Window.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter derives the window from cfg: BurstSize requests per
// BurstSize/RequestsPerSecond seconds, at least one second.
func NewRedisLimiter(client redis.Cmdable, cfg RateLimitConfig) *RedisLimiter {
	window := time.Second
	if cfg.RequestsPerSecond > 0 && cfg.BurstSize > 0 {
		if w := time.Duration(float64(cfg.BurstSize) / cfg.RequestsPerSecond * float64(time.Second)); w > window {
			window = w
		}
	}
	limit := cfg.BurstSize
	if limit <= 0 {
		limit = 1
	}
	return &RedisLimiter{client: client, prefix: "scribe:ratelimit:", limit: limit, window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, slot)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	d := Decision{Allowed: count <= l.limit, Limit: l.limit}
	if d.Allowed {
		d.Remaining = l.limit - count
	} else {
		windowEnd := time.Unix(0, (slot+1)*int64(l.window))
		d.RetryAfter = windowEnd.Sub(now)
	}
	return d, nil
}
