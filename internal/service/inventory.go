package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/observability"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"go.uber.org/zap"
)

// InventoryLedger owns blood-bag stock. Quantities only move through the
// transaction-scoped decrement and restore used by the workflows.
type InventoryLedger struct {
	store   repository.Store
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewInventoryLedger(store repository.Store, logger *zap.Logger) (*InventoryLedger, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InventoryLedger{
		store:  store,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (l *InventoryLedger) SetMetrics(metrics *observability.Metrics) {
	if l == nil {
		return
	}
	l.metrics = metrics
}

// Register records a new batch. An empty status defaults to AVAILABLE, or
// UNAVAILABLE when the batch holds no units.
func (l *InventoryLedger) Register(ctx context.Context, batch *domain.InventoryBatch) (*domain.InventoryBatch, error) {
	if batch == nil {
		return nil, fmt.Errorf("%w: batch is required", domain.ErrValidation)
	}

	now := l.now().UTC()
	created := *batch
	created.ID = uuid.NewString()
	created.BloodBankID = strings.TrimSpace(created.BloodBankID)
	created.Version = 1
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Status == "" {
		created.Status = domain.BatchAvailable
		if created.Quantity == 0 {
			created.Status = domain.BatchUnavailable
		}
	}
	if err := created.Validate(); err != nil {
		return nil, err
	}
	if created.ExpiryDate != nil && !created.ExpiryDate.After(now) {
		return nil, fmt.Errorf("%w: expiryDate must be in the future", domain.ErrValidation)
	}

	if err := l.store.Inventory().Create(ctx, &created); err != nil {
		return nil, fmt.Errorf("failed to create inventory batch: %w", err)
	}
	l.metrics.AddInventoryUnits("registered", created.BloodType.String(), created.Quantity)
	return &created, nil
}

func (l *InventoryLedger) Get(ctx context.Context, batchID string) (*domain.InventoryBatch, error) {
	return l.store.Inventory().GetByID(ctx, batchID)
}

func (l *InventoryLedger) List(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryBatch, error) {
	if strings.TrimSpace(filter.BloodBankID) == "" {
		return nil, fmt.Errorf("%w: bloodBankId is required", domain.ErrValidation)
	}
	return l.store.Inventory().List(ctx, filter)
}

// ListAvailable returns batches that can supply at least one unit now,
// soonest expiry first.
func (l *InventoryLedger) ListAvailable(ctx context.Context, bloodBankID string, bloodType domain.BloodType) ([]domain.InventoryBatch, error) {
	if strings.TrimSpace(bloodBankID) == "" {
		return nil, fmt.Errorf("%w: bloodBankId is required", domain.ErrValidation)
	}
	if !bloodType.IsValid() {
		return nil, fmt.Errorf("%w: invalid blood type %q", domain.ErrValidation, bloodType)
	}
	return l.store.Inventory().ListAvailable(ctx, bloodBankID, bloodType, l.now().UTC())
}

// ExpireBatches marks every stocked batch past its expiry date EXPIRED.
func (l *InventoryLedger) ExpireBatches(ctx context.Context, now time.Time) (int64, error) {
	expired, err := l.store.Inventory().ExpireBefore(ctx, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire inventory batches: %w", err)
	}
	if expired > 0 {
		l.metrics.IncTransition("inventory_batch", domain.BatchExpired.String())
		observability.WithContextLogger(l.logger, ctx).Info("inventory batches expired",
			zap.Int64("count", expired),
		)
	}
	return expired, nil
}

func (l *InventoryLedger) decrement(ctx context.Context, tx repository.Store, batchID string, units int) (*domain.InventoryBatch, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batchId is required", domain.ErrValidation)
	}
	if units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", domain.ErrValidation)
	}
	return tx.Inventory().Decrement(ctx, batchID, units, l.now().UTC())
}

func (l *InventoryLedger) restore(ctx context.Context, tx repository.Store, batchID string, units int) (*domain.InventoryBatch, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batchId is required", domain.ErrValidation)
	}
	if units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", domain.ErrValidation)
	}
	return tx.Inventory().Restore(ctx, batchID, units, l.now().UTC())
}
