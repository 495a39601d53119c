package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"gorm.io/gorm"
)

type InventoryRepository interface {
	Create(ctx context.Context, b *domain.InventoryBatch) error
	GetByID(ctx context.Context, id string) (*domain.InventoryBatch, error)
	List(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryBatch, error)
	ListAvailable(ctx context.Context, bloodBankID string, bloodType domain.BloodType, now time.Time) ([]domain.InventoryBatch, error)
	Decrement(ctx context.Context, id string, units int, now time.Time) (*domain.InventoryBatch, error)
	Restore(ctx context.Context, id string, units int, now time.Time) (*domain.InventoryBatch, error)
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}

type GormInventoryRepo struct {
	db *gorm.DB
}

func NewGormInventoryRepo(db *gorm.DB) *GormInventoryRepo {
	return &GormInventoryRepo{db: db}
}

func (r *GormInventoryRepo) Create(ctx context.Context, b *domain.InventoryBatch) error {
	model := batchModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *batchModelToDomain(model)
	}
	return nil
}

func (r *GormInventoryRepo) GetByID(ctx context.Context, id string) (*domain.InventoryBatch, error) {
	var model InventoryBatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormInventoryRepo) List(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryBatch, error) {
	query := r.db.WithContext(ctx).Where("blood_bank_id = ?", filter.BloodBankID)
	if filter.BloodType != nil {
		query = query.Where("blood_type = ?", *filter.BloodType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var models []InventoryBatchModel
	if err := query.Order("blood_type ASC, created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return batchModelsToDomain(models), nil
}

// ListAvailable returns drawable batches, soonest expiry first.
func (r *GormInventoryRepo) ListAvailable(
	ctx context.Context,
	bloodBankID string,
	bloodType domain.BloodType,
	now time.Time,
) ([]domain.InventoryBatch, error) {
	var models []InventoryBatchModel
	err := r.db.WithContext(ctx).
		Where("blood_bank_id = ? AND blood_type = ? AND status = ? AND quantity > 0", bloodBankID, bloodType, domain.BatchAvailable).
		Where("(expiry_date IS NULL OR expiry_date > ?)", now.UTC()).
		Order("CASE WHEN expiry_date IS NULL THEN 1 ELSE 0 END, expiry_date ASC, created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return batchModelsToDomain(models), nil
}

// Decrement takes units out of the batch in a single guarded statement so
// concurrent callers serialise on the row. The batch flips to UNAVAILABLE when
// it runs empty.
func (r *GormInventoryRepo) Decrement(ctx context.Context, id string, units int, now time.Time) (*domain.InventoryBatch, error) {
	if units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", domain.ErrValidation)
	}

	result := r.db.WithContext(ctx).
		Model(&InventoryBatchModel{}).
		Where("id = ? AND status = ? AND quantity >= ?", id, domain.BatchAvailable, units).
		Where("(expiry_date IS NULL OR expiry_date > ?)", now.UTC()).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", units),
			"status":     gorm.Expr("CASE WHEN quantity - ? <= 0 THEN ? ELSE status END", units, domain.BatchUnavailable),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now.UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: batch %s has %d units in status %s, %d requested",
			domain.ErrInsufficientInventory, id, current.Quantity, current.Status, units)
	}

	return r.GetByID(ctx, id)
}

// Restore puts units back into the batch. An emptied batch becomes AVAILABLE
// again; an EXPIRED batch keeps its status.
func (r *GormInventoryRepo) Restore(ctx context.Context, id string, units int, now time.Time) (*domain.InventoryBatch, error) {
	if units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", domain.ErrValidation)
	}

	result := r.db.WithContext(ctx).
		Model(&InventoryBatchModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", units),
			"status":     gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", domain.BatchUnavailable, domain.BatchAvailable),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now.UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *GormInventoryRepo) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&InventoryBatchModel{}).
		Where("status IN ? AND expiry_date IS NOT NULL AND expiry_date <= ?",
			[]domain.BatchStatus{domain.BatchAvailable, domain.BatchUnavailable}, now.UTC()).
		Updates(map[string]any{
			"status":     domain.BatchExpired,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now.UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func batchModelsToDomain(models []InventoryBatchModel) []domain.InventoryBatch {
	batches := make([]domain.InventoryBatch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}
	return batches
}
