package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/observability"
	"github.com/kursadbilgin/bloodbank-workflow/internal/ratelimit"
	"github.com/kursadbilgin/bloodbank-workflow/internal/transport"
	"go.uber.org/zap"
)

// RateLimitByIP rejects requests over the limiter's budget for the client IP.
// A limiter outage lets requests through.
func RateLimitByIP(limiter ratelimit.RateLimiter, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}

		allowed, err := limiter.Allow(c.UserContext(), c.IP())
		if err != nil {
			observability.WithContextLogger(logger, c.UserContext()).Warn("rate limiter unavailable",
				zap.String("ip", c.IP()),
				zap.Error(err),
			)
			return c.Next()
		}
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, "1")
			return transport.NewError(fiber.StatusTooManyRequests, "rate_limited", "too many requests", true)
		}
		return c.Next()
	}
}
