package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"gorm.io/gorm"
)

// maxAttemptBody caps the sink response kept per attempt.
const maxAttemptBody = 4096

// AttemptRepository is the append-only log of outbox send attempts.
type AttemptRepository interface {
	Create(ctx context.Context, a *domain.OutboxAttempt) error
	ListByEvent(ctx context.Context, eventID string) ([]domain.OutboxAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.OutboxAttempt) error {
	if a == nil {
		return fmt.Errorf("%w: attempt is required", domain.ErrValidation)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.ResponseBody != nil && len(*a.ResponseBody) > maxAttemptBody {
		truncated := (*a.ResponseBody)[:maxAttemptBody]
		a.ResponseBody = &truncated
	}

	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to record attempt %d for event %s: %w", a.AttemptNumber, a.EventID, err)
	}
	*a = *attemptModelToDomain(model)
	return nil
}

// ListByEvent returns an event's attempts, oldest first.
func (r *GormAttemptRepo) ListByEvent(ctx context.Context, eventID string) ([]domain.OutboxAttempt, error) {
	var models []OutboxAttemptModel
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("attempt_number ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	attempts := make([]domain.OutboxAttempt, len(models))
	for i := range models {
		attempts[i] = *attemptModelToDomain(&models[i])
	}
	return attempts, nil
}
