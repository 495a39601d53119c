package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RequestRepository interface {
	Create(ctx context.Context, r *domain.HospitalRequest) error
	GetByID(ctx context.Context, id string) (*domain.HospitalRequest, error)
	LockByID(ctx context.Context, id string) (*domain.HospitalRequest, error)
	ListByBloodBank(ctx context.Context, bloodBankID string, status *domain.RequestStatus) ([]domain.HospitalRequest, error)
	TransitionStatus(ctx context.Context, id string, from domain.RequestStatus, to domain.RequestStatus, at time.Time) error

	CreateDelivery(ctx context.Context, d *domain.Delivery) error
	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
	LockDelivery(ctx context.Context, id string) (*domain.Delivery, error)
	GetDeliveryByRequestID(ctx context.Context, requestID string) (*domain.Delivery, error)
	TransitionDelivery(ctx context.Context, id string, from domain.DeliveryStatus, to domain.DeliveryStatus, at time.Time) error

	CreateAllocation(ctx context.Context, a *domain.RequestAllocation) error
	ListAllocations(ctx context.Context, requestID string) ([]domain.RequestAllocation, error)
}

type GormRequestRepo struct {
	db *gorm.DB
}

func NewGormRequestRepo(db *gorm.DB) *GormRequestRepo {
	return &GormRequestRepo{db: db}
}

func (r *GormRequestRepo) Create(ctx context.Context, req *domain.HospitalRequest) error {
	model := requestModelFromDomain(req)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if req != nil {
		*req = *requestModelToDomain(model)
	}
	return nil
}

func (r *GormRequestRepo) GetByID(ctx context.Context, id string) (*domain.HospitalRequest, error) {
	var model HospitalRequestModel
	err := r.db.WithContext(ctx).
		Preload("Items", orderItems).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return requestModelToDomain(&model), nil
}

func (r *GormRequestRepo) LockByID(ctx context.Context, id string) (*domain.HospitalRequest, error) {
	var model HospitalRequestModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Items are immutable after creation; load them without the row lock.
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", id).
		Order("id ASC").
		Find(&model.Items).Error; err != nil {
		return nil, err
	}
	return requestModelToDomain(&model), nil
}

func (r *GormRequestRepo) ListByBloodBank(
	ctx context.Context,
	bloodBankID string,
	status *domain.RequestStatus,
) ([]domain.HospitalRequest, error) {
	query := r.db.WithContext(ctx).
		Preload("Items", orderItems).
		Where("blood_bank_id = ?", bloodBankID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var models []HospitalRequestModel
	if err := query.Order("date_needed ASC, created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	requests := make([]domain.HospitalRequest, 0, len(models))
	for i := range models {
		requests = append(requests, *requestModelToDomain(&models[i]))
	}
	return requests, nil
}

func (r *GormRequestRepo) TransitionStatus(
	ctx context.Context,
	id string,
	from domain.RequestStatus,
	to domain.RequestStatus,
	at time.Time,
) error {
	result := r.db.WithContext(ctx).
		Model(&HospitalRequestModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// CreateDelivery inserts the delivery for a request. A second delivery for the
// same request violates the unique request_id index and yields ErrConflict.
func (r *GormRequestRepo) CreateDelivery(ctx context.Context, d *domain.Delivery) error {
	model := deliveryModelFromDomain(d)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "request_id"}}, DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	if d != nil {
		*d = *deliveryModelToDomain(model)
	}
	return nil
}

func (r *GormRequestRepo) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	var model DeliveryModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormRequestRepo) LockDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	var model DeliveryModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormRequestRepo) GetDeliveryByRequestID(ctx context.Context, requestID string) (*domain.Delivery, error) {
	var model DeliveryModel
	err := r.db.WithContext(ctx).First(&model, "request_id = ?", requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormRequestRepo) TransitionDelivery(
	ctx context.Context,
	id string,
	from domain.DeliveryStatus,
	to domain.DeliveryStatus,
	at time.Time,
) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormRequestRepo) CreateAllocation(ctx context.Context, a *domain.RequestAllocation) error {
	model := &RequestAllocationModel{
		ID:        a.ID,
		RequestID: a.RequestID,
		BatchID:   a.BatchID,
		BloodType: a.BloodType,
		Units:     a.Units,
		CreatedAt: a.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*a = *allocationModelToDomain(model)
	return nil
}

func (r *GormRequestRepo) ListAllocations(ctx context.Context, requestID string) ([]domain.RequestAllocation, error) {
	var models []RequestAllocationModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	allocations := make([]domain.RequestAllocation, 0, len(models))
	for i := range models {
		allocations = append(allocations, *allocationModelToDomain(&models[i]))
	}
	return allocations, nil
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
