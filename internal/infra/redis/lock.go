package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/bloodbank-workflow/internal/lock"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLockTTL = time.Minute

var _ lock.Locker = (*RedisLocker)(nil)

var unlockScript = goredis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// RedisLocker is a single-instance Redis lock. The holder's token is checked
// on release so an expired holder never deletes a successor's lock.
type RedisLocker struct {
	client *goredis.Client
	ttl    time.Duration
	token  func() string
}

func NewRedisLocker(client *goredis.Client, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	return &RedisLocker{
		client: client,
		ttl:    ttl,
		token:  uuid.NewString,
	}, nil
}

// WithLock holds "lock:<key>" for at most the TTL; fn's context is cancelled
// when the TTL runs out.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	normalizedKey := strings.TrimSpace(key)
	if normalizedKey == "" {
		return fmt.Errorf("lock key is required")
	}

	redisKey := "lock:" + normalizedKey
	token := l.token()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", normalizedKey, err)
	}
	if !ok {
		return lock.ErrNotAcquired
	}

	defer func() {
		// Release even when ctx is already cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pingTimeout)
		defer cancel()
		_ = l.release(releaseCtx, redisKey, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
