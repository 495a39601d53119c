package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"gorm.io/gorm"
)

type OutboxRepository interface {
	Append(ctx context.Context, e *domain.OutboxEvent) error
	GetByID(ctx context.Context, id string) (*domain.OutboxEvent, error)
	ListByAggregate(ctx context.Context, aggregateID string) ([]domain.OutboxEvent, error)
	GetDue(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	ScheduleRetry(ctx context.Context, id string, nextAttemptAt time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id string, lastErr string) error
}

type GormOutboxRepo struct {
	db *gorm.DB
}

func NewGormOutboxRepo(db *gorm.DB) *GormOutboxRepo {
	return &GormOutboxRepo{db: db}
}

func (r *GormOutboxRepo) Append(ctx context.Context, e *domain.OutboxEvent) error {
	model := outboxModelFromDomain(e)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if e != nil {
		*e = *outboxModelToDomain(model)
	}
	return nil
}

func (r *GormOutboxRepo) GetByID(ctx context.Context, id string) (*domain.OutboxEvent, error) {
	var model OutboxEventModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return outboxModelToDomain(&model), nil
}

func (r *GormOutboxRepo) ListByAggregate(ctx context.Context, aggregateID string) ([]domain.OutboxEvent, error) {
	var models []OutboxEventModel
	err := r.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return outboxModelsToDomain(models), nil
}

// GetDue returns pending events whose next attempt is due, oldest first.
func (r *GormOutboxRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEvent, error) {
	var models []OutboxEventModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", domain.OutboxPending, now.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return outboxModelsToDomain(models), nil
}

func (r *GormOutboxRepo) MarkPublished(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&OutboxEventModel{}).
		Where("id = ? AND status = ?", id, domain.OutboxPending).
		Updates(map[string]any{
			"status":        domain.OutboxPublished,
			"published_at":  at.UTC(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormOutboxRepo) ScheduleRetry(ctx context.Context, id string, nextAttemptAt time.Time, lastErr string) error {
	result := r.db.WithContext(ctx).
		Model(&OutboxEventModel{}).
		Where("id = ? AND status = ?", id, domain.OutboxPending).
		Updates(map[string]any{
			"next_attempt_at": nextAttemptAt.UTC(),
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"last_error":      lastErr,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormOutboxRepo) MarkFailed(ctx context.Context, id string, lastErr string) error {
	result := r.db.WithContext(ctx).
		Model(&OutboxEventModel{}).
		Where("id = ? AND status = ?", id, domain.OutboxPending).
		Updates(map[string]any{
			"status":        domain.OutboxFailed,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    lastErr,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func outboxModelsToDomain(models []OutboxEventModel) []domain.OutboxEvent {
	events := make([]domain.OutboxEvent, 0, len(models))
	for i := range models {
		events = append(events, *outboxModelToDomain(&models[i]))
	}
	return events
}
