package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/observability"
	"github.com/kursadbilgin/bloodbank-workflow/internal/provider"
	"github.com/kursadbilgin/bloodbank-workflow/internal/queue"
	"github.com/kursadbilgin/bloodbank-workflow/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minNotifierConcurrency = 1

// Notifier consumes workflow events from the broker and forwards them to the
// external notification service.
type Notifier struct {
	consumer    queue.Consumer
	provider    provider.Provider
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewNotifier(
	consumer queue.Consumer,
	sink provider.Provider,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*Notifier, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if concurrency < minNotifierConcurrency {
		concurrency = minNotifierConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Notifier{
		consumer:    consumer,
		provider:    sink,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (s *Notifier) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the notification queues until context cancellation.
func (s *Notifier) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("notifier worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := s.consumer.Consume(groupCtx, queueName, func(ctx context.Context, msg queue.EventMessage) error {
				return s.processMessage(ctx, queueName, msg)
			})
			if err != nil {
				s.logger.Error("notifier worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("notifier worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

// processMessage forwards one event. A returned error makes the consumer
// nack the message; permanent failures are acked and logged instead.
func (s *Notifier) processMessage(ctx context.Context, queueName string, msg queue.EventMessage) error {
	s.metrics.IncNotifierInFlight(queueName)
	defer s.metrics.DecNotifierInFlight(queueName)

	sink := s.provider.Name()
	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, sink); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	sendStart := s.now()
	_, err := s.provider.Send(ctx, msg.OutboxEvent())
	s.metrics.ObserveOutboxPublishDuration(sink, s.now().Sub(sendStart))
	if err == nil {
		return nil
	}

	if provider.IsTransient(err) {
		return fmt.Errorf("failed to forward event %s: %w", msg.EventID, err)
	}

	s.metrics.IncOutboxFailed(sink, "permanent_error")
	s.logger.Warn("dropping event rejected by notification service",
		zap.String("eventId", msg.EventID),
		zap.String("eventType", msg.EventType.String()),
		zap.Error(err),
	)
	return nil
}
