package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoucherTransition describes the fields written alongside a voucher status change.
type VoucherTransition struct {
	To               domain.VoucherStatus
	RedeemedDate     *time.Time
	AllocatedBatchID *string
	RejectionReason  *string
	At               time.Time
}

type VoucherRepository interface {
	Create(ctx context.Context, v *domain.Voucher) error
	GetByID(ctx context.Context, id string) (*domain.Voucher, error)
	GetByCode(ctx context.Context, code string) (*domain.Voucher, error)
	LockByID(ctx context.Context, id string) (*domain.Voucher, error)
	Transition(ctx context.Context, id string, from domain.VoucherStatus, change VoucherTransition) error
}

type GormVoucherRepo struct {
	db *gorm.DB
}

func NewGormVoucherRepo(db *gorm.DB) *GormVoucherRepo {
	return &GormVoucherRepo{db: db}
}

func (r *GormVoucherRepo) Create(ctx context.Context, v *domain.Voucher) error {
	model := voucherModelFromDomain(v)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if v != nil {
		*v = *voucherModelToDomain(model)
	}
	return nil
}

func (r *GormVoucherRepo) GetByID(ctx context.Context, id string) (*domain.Voucher, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *GormVoucherRepo) GetByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	return r.first(r.db.WithContext(ctx), "code = ?", code)
}

func (r *GormVoucherRepo) LockByID(ctx context.Context, id string) (*domain.Voucher, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

// Transition applies change only if the voucher is still in status from.
// It returns ErrConflict when no row matched.
func (r *GormVoucherRepo) Transition(ctx context.Context, id string, from domain.VoucherStatus, change VoucherTransition) error {
	updates := map[string]any{
		"status":     change.To,
		"updated_at": change.At.UTC(),
	}
	if change.RedeemedDate != nil {
		updates["redeemed_date"] = change.RedeemedDate.UTC()
	}
	if change.AllocatedBatchID != nil {
		updates["allocated_batch_id"] = *change.AllocatedBatchID
	}
	if change.RejectionReason != nil {
		updates["rejection_reason"] = *change.RejectionReason
	}

	result := r.db.WithContext(ctx).
		Model(&VoucherModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormVoucherRepo) first(query *gorm.DB, cond string, arg string) (*domain.Voucher, error) {
	var model VoucherModel
	err := query.First(&model, cond, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return voucherModelToDomain(&model), nil
}
