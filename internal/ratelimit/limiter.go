package ratelimit

import "context"

// RateLimiter caps the number of operations per second for a key, such as a
// client IP or an event sink.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}
