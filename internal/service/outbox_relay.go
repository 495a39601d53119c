package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/lock"
	"github.com/kursadbilgin/bloodbank-workflow/internal/observability"
	"github.com/kursadbilgin/bloodbank-workflow/internal/provider"
	"github.com/kursadbilgin/bloodbank-workflow/internal/ratelimit"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultRelayInterval    = 5 * time.Second
	defaultRelayBatchSize   = 100
	defaultRelayMaxAttempts = 8
	maxRetryDelay           = 60 * time.Second
	baseRetryDelay          = time.Second
	maxRetryJitterMillis    = 250

	relayLockKey = "relay:outbox"
)

// RelayOptions tunes the outbox relay. Zero values fall back to defaults.
type RelayOptions struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// OutboxRelay periodically publishes due outbox events through a Provider.
// Delivery is at-least-once.
type OutboxRelay struct {
	store       repository.Store
	provider    provider.Provider
	rateLimiter ratelimit.RateLimiter
	locker      lock.Locker
	logger      *zap.Logger
	metrics     *observability.Metrics
	interval    time.Duration
	limit       int
	maxAttempts int
	now         func() time.Time
	randIntn    func(n int) int
}

// NewOutboxRelay builds a relay. rateLimiter and locker are optional.
func NewOutboxRelay(
	store repository.Store,
	sink provider.Provider,
	rateLimiter ratelimit.RateLimiter,
	locker lock.Locker,
	opts RelayOptions,
	logger *zap.Logger,
) (*OutboxRelay, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultRelayInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultRelayBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultRelayMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OutboxRelay{
		store:       store,
		provider:    sink,
		rateLimiter: rateLimiter,
		locker:      locker,
		logger:      logger,
		interval:    opts.Interval,
		limit:       opts.BatchSize,
		maxAttempts: opts.MaxAttempts,
		now:         time.Now,
		randIntn:    rand.Intn,
	}, nil
}

func (s *OutboxRelay) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *OutboxRelay) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Publish the backlog left by a previous run without waiting for the first tick.
	if err := s.tick(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("outbox relay initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("outbox relay scan failed", zap.Error(err))
			}
		}
	}
}

func (s *OutboxRelay) tick(ctx context.Context) error {
	if s.locker == nil {
		return s.scanDue(ctx)
	}

	err := s.locker.WithLock(ctx, relayLockKey, s.scanDue)
	if errors.Is(err, lock.ErrNotAcquired) {
		s.logger.Debug("outbox relay lock held by another instance, skipping tick")
		return nil
	}
	return err
}

func (s *OutboxRelay) scanDue(ctx context.Context) error {
	due, err := s.store.Outbox().GetDue(ctx, s.now().UTC(), s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due outbox events: %w", err)
	}

	for i := range due {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.publish(ctx, due[i]); err != nil {
			s.logger.Error("failed to relay outbox event",
				zap.String("eventId", due[i].ID),
				zap.String("eventType", due[i].EventType.String()),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (s *OutboxRelay) publish(ctx context.Context, event domain.OutboxEvent) error {
	sink := s.provider.Name()

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, sink); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	attemptNumber := event.AttemptCount + 1
	sendStart := s.now()
	resp, sendErr := s.provider.Send(ctx, event)
	s.metrics.ObserveOutboxPublishDuration(sink, s.now().Sub(sendStart))

	if err := s.recordAttempt(ctx, event.ID, attemptNumber, resp, sendErr); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	outbox := s.store.Outbox()
	if sendErr == nil {
		if err := outbox.MarkPublished(ctx, event.ID, s.now().UTC()); err != nil {
			return s.settleError(event.ID, "published", err)
		}
		s.metrics.IncOutboxPublished(sink)
		return nil
	}

	isTransient := provider.IsTransient(sendErr)
	if isTransient && attemptNumber < s.maxAttempts {
		nextAttemptAt := s.now().UTC().Add(s.computeRetryDelay(attemptNumber))
		if err := outbox.ScheduleRetry(ctx, event.ID, nextAttemptAt, sendErr.Error()); err != nil {
			return s.settleError(event.ID, "retry", err)
		}
		s.metrics.IncOutboxRetryScheduled(sink)
		return nil
	}

	if err := outbox.MarkFailed(ctx, event.ID, sendErr.Error()); err != nil {
		return s.settleError(event.ID, "failed", err)
	}
	reason := "permanent_error"
	if isTransient {
		reason = "retry_exhausted"
	}
	s.metrics.IncOutboxFailed(sink, reason)
	s.logger.Warn("outbox event failed permanently",
		zap.String("eventId", event.ID),
		zap.String("reason", reason),
		zap.Error(sendErr),
	)

	return nil
}

// settleError treats a lost compare-and-set as benign: another relay
// instance already settled the event.
func (s *OutboxRelay) settleError(eventID string, outcome string, err error) error {
	if errors.Is(err, domain.ErrConflict) {
		s.logger.Info("outbox event settled elsewhere",
			zap.String("eventId", eventID),
			zap.String("outcome", outcome),
		)
		return nil
	}
	return fmt.Errorf("failed to mark outbox event %s: %w", outcome, err)
}

func (s *OutboxRelay) computeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}

	jitterMillis := 0
	if s.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = s.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}

func (s *OutboxRelay) recordAttempt(
	ctx context.Context,
	eventID string,
	attemptNumber int,
	resp *provider.ProviderResponse,
	sendErr error,
) error {
	var statusCode *int
	var responseBody *string
	var attemptErr *string

	if resp != nil {
		if resp.StatusCode > 0 {
			value := resp.StatusCode
			statusCode = &value
		}
		if body := strings.TrimSpace(resp.Body); body != "" {
			value := resp.Body
			responseBody = &value
		}
	}

	if sendErr != nil {
		value := sendErr.Error()
		attemptErr = &value

		var providerErr *provider.ProviderError
		if errors.As(sendErr, &providerErr) && providerErr.StatusCode > 0 && statusCode == nil {
			value := providerErr.StatusCode
			statusCode = &value
		}
	}

	attempt := &domain.OutboxAttempt{
		ID:            uuid.NewString(),
		EventID:       eventID,
		AttemptNumber: attemptNumber,
		Sink:          s.provider.Name(),
		StatusCode:    statusCode,
		ResponseBody:  responseBody,
		Error:         attemptErr,
		CreatedAt:     s.now().UTC(),
	}

	return s.store.Attempts().Create(ctx, attempt)
}
