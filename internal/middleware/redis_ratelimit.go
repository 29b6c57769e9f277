package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisRateLimiter is a fixed-window limiter shared by every replica.
// Redis errors let the request through.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	logger *slog.Logger
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration, logger *slog.Logger) *RedisRateLimiter {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "heliactyl"
	}
	return &RedisRateLimiter{client: client, prefix: p + ":rate_limit", limit: limit, window: window, logger: logger}
}

func (r *RedisRateLimiter) Allow(key string) bool {
	if r.limit <= 0 || r.window <= 0 {
		return true
	}
	windowMs := r.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	k := fmt.Sprintf("%s:%s", r.prefix, key)
	count, err := rateLimitScript.Run(ctx, r.client, []string{k}, windowMs).Int64()
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("rate limiter unavailable, allowing request", "error", err)
		}
		return true
	}
	return count <= int64(r.limit)
}
