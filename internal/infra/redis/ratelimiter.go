package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 10
	minWindowWait            = 5 * time.Millisecond
	window                   = time.Second
)

// allowScript counts a hit in the current window and reports whether it fits
// the budget. The counter outlives its window by one second at most.
var allowScript = goredis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if hits > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a distributed fixed-window limiter backed by Redis.
// Counters live under "ratelimit:<scope>:<key>:<unix second>", so replicas
// sharing a Redis share the budget.
type RedisRateLimiter struct {
	client      *goredis.Client
	scope       string
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	script      *goredis.Script
}

func NewRedisRateLimiter(client *goredis.Client, scope string, limitPerSec int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(
		client,
		scope,
		int64(limitPerSec),
		time.Now,
		sleepWithContext,
	)
}

func newRedisRateLimiter(
	client *goredis.Client,
	scope string,
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope == "" {
		return nil, fmt.Errorf("rate limit scope is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:      client,
		scope:       scope,
		limitPerSec: limitPerSec,
		now:         nowFn,
		sleep:       sleepFn,
		script:      allowScript,
	}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	subject := strings.ToLower(strings.TrimSpace(key))
	if subject == "" {
		return false, fmt.Errorf("rate limit key is required")
	}

	result, err := r.script.Run(ctx, r.client, []string{r.windowKey(subject, r.now())},
		r.limitPerSec, (2 * window).Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate %s rate limit: %w", r.scope, err)
	}
	return result == 1, nil
}

// Wait blocks until key has budget or ctx ends. A denied caller sleeps until
// the next window opens rather than polling.
func (r *RedisRateLimiter) Wait(ctx context.Context, key string) error {
	for {
		allowed, err := r.Allow(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		if err := r.sleep(ctx, untilNextWindow(r.now())); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) windowKey(subject string, at time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", r.scope, subject, at.UTC().Unix())
}

func untilNextWindow(now time.Time) time.Duration {
	wait := now.Truncate(window).Add(window).Sub(now)
	if wait < minWindowWait {
		return minWindowWait
	}
	return wait
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
