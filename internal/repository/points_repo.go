package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PointsRepository interface {
	GetAccount(ctx context.Context, donorID string) (*domain.PointsAccount, error)
	AppendEntry(ctx context.Context, e *domain.PointsEntry) (bool, error)
	FindEntry(ctx context.Context, kind domain.PointsEntryKind, referenceID string) (*domain.PointsEntry, error)
	ListEntries(ctx context.Context, donorID string) ([]domain.PointsEntry, error)
	Credit(ctx context.Context, donorID string, points int, at time.Time) error
	Debit(ctx context.Context, donorID string, points int, at time.Time) error
}

type GormPointsRepo struct {
	db *gorm.DB
}

func NewGormPointsRepo(db *gorm.DB) *GormPointsRepo {
	return &GormPointsRepo{db: db}
}

// GetAccount returns the donor's account; a donor who never earned points has
// a zero balance.
func (r *GormPointsRepo) GetAccount(ctx context.Context, donorID string) (*domain.PointsAccount, error) {
	var model PointsAccountModel
	err := r.db.WithContext(ctx).First(&model, "donor_id = ?", donorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.PointsAccount{DonorID: donorID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.PointsAccount{
		DonorID:   model.DonorID,
		Balance:   model.Balance,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

// AppendEntry inserts e unless an entry with the same kind and reference
// already exists. It reports whether a row was written.
func (r *GormPointsRepo) AppendEntry(ctx context.Context, e *domain.PointsEntry) (bool, error) {
	model := &PointsEntryModel{
		ID:          e.ID,
		DonorID:     e.DonorID,
		Kind:        e.Kind,
		Points:      e.Points,
		ReferenceID: e.ReferenceID,
		CreatedAt:   e.CreatedAt,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "reference_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *GormPointsRepo) FindEntry(ctx context.Context, kind domain.PointsEntryKind, referenceID string) (*domain.PointsEntry, error) {
	var model PointsEntryModel
	err := r.db.WithContext(ctx).
		Where("kind = ? AND reference_id = ?", kind, referenceID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return pointsEntryModelToDomain(&model), nil
}

func (r *GormPointsRepo) ListEntries(ctx context.Context, donorID string) ([]domain.PointsEntry, error) {
	var models []PointsEntryModel
	err := r.db.WithContext(ctx).
		Where("donor_id = ?", donorID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.PointsEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *pointsEntryModelToDomain(&models[i]))
	}
	return entries, nil
}

// Credit adds points to the donor's balance, opening the account if needed.
func (r *GormPointsRepo) Credit(ctx context.Context, donorID string, points int, at time.Time) error {
	at = at.UTC()
	model := &PointsAccountModel{
		DonorID:   donorID,
		Balance:   points,
		CreatedAt: at,
		UpdatedAt: at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "donor_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance":    gorm.Expr("points_accounts.balance + ?", points),
				"updated_at": at,
			}),
		}).
		Create(model).Error
}

// Debit subtracts points only if the balance covers them.
func (r *GormPointsRepo) Debit(ctx context.Context, donorID string, points int, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&PointsAccountModel{}).
		Where("donor_id = ? AND balance >= ?", donorID, points).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", points),
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: donor %s cannot spend %d points", domain.ErrInsufficientPoints, donorID, points)
	}
	return nil
}
