package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis counts attempts in a fixed window shared by every instance
// pointing at the same server. The window starts at a key's first
// attempt.
type Redis struct {
	rdb    redis.Cmdable
	prefix string
	max    int
	window time.Duration
}

type RedisOption func(*Redis)

func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = strings.Trim(prefix, ":") }
}

func NewRedis(rdb redis.Cmdable, max int, window time.Duration, opts ...RedisOption) *Redis {
	r := &Redis{
		rdb:    rdb,
		prefix: "newsletter:ratelimit",
		max:    max,
		window: window,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	const op = "ratelimit.Redis.Allow"

	k := r.prefix + ":" + key

	count, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	if count == 1 {
		if err := r.rdb.PExpire(ctx, k, r.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	if count <= int64(r.max) {
		return Decision{Allowed: true, Remaining: r.max - int(count)}, nil
	}

	ttl, err := r.rdb.PTTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	if ttl <= 0 {
		// The expiry was lost (e.g. a crash between INCR and PEXPIRE);
		// restart the window so the key cannot block forever.
		if err := r.rdb.PExpire(ctx, k, r.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%s: %w", op, err)
		}
		ttl = r.window
	}

	return Decision{Allowed: false, RetryAfter: ttl}, nil
}
