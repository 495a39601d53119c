package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/lock"
	"github.com/kursadbilgin/bloodbank-workflow/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = 5 * time.Minute
	sweepLockKey         = "sweep:appointments"
)

// Sweeper periodically marks overdue appointments MISSED and expires stale
// inventory. With a locker only one replica sweeps per tick.
type Sweeper struct {
	appointments *AppointmentWorkflow
	inventory    *InventoryLedger
	locker       lock.Locker
	logger       *zap.Logger
	interval     time.Duration
	now          func() time.Time
}

func NewSweeper(
	appointments *AppointmentWorkflow,
	inventory *InventoryLedger,
	locker lock.Locker,
	interval time.Duration,
	logger *zap.Logger,
) (*Sweeper, error) {
	if appointments == nil {
		return nil, fmt.Errorf("appointment workflow is required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory ledger is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{
		appointments: appointments,
		inventory:    inventory,
		locker:       locker,
		logger:       logger,
		interval:     interval,
		now:          time.Now,
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.tick(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("sweeper initial run failed", zap.Error(err))
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
				s.logger.Error("sweeper run failed", zap.Error(err))
			}
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) error {
	if s.locker == nil {
		return s.run(ctx)
	}

	err := s.locker.WithLock(ctx, sweepLockKey, s.run)
	if errors.Is(err, lock.ErrNotAcquired) {
		s.logger.Debug("sweep lock held by another instance, skipping tick")
		return nil
	}
	return err
}

func (s *Sweeper) run(ctx context.Context) error {
	now := s.now().UTC()
	logger := observability.WithContextLogger(s.logger, ctx)

	result, sweepErr := s.appointments.Sweep(ctx, now)
	if sweepErr == nil {
		logger.Info("appointment sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("missed", result.Missed),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	}

	// Inventory expiry runs even when the appointment sweep failed.
	_, expireErr := s.inventory.ExpireBatches(ctx, now)

	return errors.Join(sweepErr, expireErr)
}
