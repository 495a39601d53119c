package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *domain.Appointment) error
	GetByID(ctx context.Context, id string) (*domain.Appointment, error)
	LockByID(ctx context.Context, id string) (*domain.Appointment, error)
	ListByBloodBank(ctx context.Context, bloodBankID string, status *domain.AppointmentStatus) ([]domain.Appointment, error)
	TransitionStatus(ctx context.Context, id string, from []domain.AppointmentStatus, to domain.AppointmentStatus, at time.Time) error
	ListOverdue(ctx context.Context, cutoff time.Time, after *OverdueCursor, limit int) ([]domain.Appointment, error)
}

// OverdueCursor is the last row of the previous ListOverdue page. Rows are
// ordered by (appointment_date_time, id).
type OverdueCursor struct {
	AppointmentDateTime time.Time
	ID                  string
}

// CursorAfter returns the cursor that continues past a.
func CursorAfter(a domain.Appointment) *OverdueCursor {
	return &OverdueCursor{AppointmentDateTime: a.AppointmentDateTime, ID: a.ID}
}

type GormAppointmentRepo struct {
	db *gorm.DB
}

func NewGormAppointmentRepo(db *gorm.DB) *GormAppointmentRepo {
	return &GormAppointmentRepo{db: db}
}

func (r *GormAppointmentRepo) Create(ctx context.Context, a *domain.Appointment) error {
	model := appointmentModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *appointmentModelToDomain(model)
	}
	return nil
}

func (r *GormAppointmentRepo) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	var model AppointmentModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return appointmentModelToDomain(&model), nil
}

func (r *GormAppointmentRepo) LockByID(ctx context.Context, id string) (*domain.Appointment, error) {
	var model AppointmentModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return appointmentModelToDomain(&model), nil
}

func (r *GormAppointmentRepo) ListByBloodBank(
	ctx context.Context,
	bloodBankID string,
	status *domain.AppointmentStatus,
) ([]domain.Appointment, error) {
	query := r.db.WithContext(ctx).Where("blood_bank_id = ?", bloodBankID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var models []AppointmentModel
	if err := query.Order("appointment_date_time ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	appointments := make([]domain.Appointment, 0, len(models))
	for i := range models {
		appointments = append(appointments, *appointmentModelToDomain(&models[i]))
	}
	return appointments, nil
}

// TransitionStatus moves the appointment to status to only if it is still in
// one of from. It returns ErrConflict when no row matched.
func (r *GormAppointmentRepo) TransitionStatus(
	ctx context.Context,
	id string,
	from []domain.AppointmentStatus,
	to domain.AppointmentStatus,
	at time.Time,
) error {
	result := r.db.WithContext(ctx).
		Model(&AppointmentModel{}).
		Where("id = ? AND status IN ?", id, from).
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

// ListOverdue pages through open appointments whose slot is before cutoff.
// A nil cursor starts from the oldest.
func (r *GormAppointmentRepo) ListOverdue(
	ctx context.Context,
	cutoff time.Time,
	after *OverdueCursor,
	limit int,
) ([]domain.Appointment, error) {
	query := r.db.WithContext(ctx).
		Where("status IN ? AND appointment_date_time < ?", domain.OpenAppointmentStatuses, cutoff.UTC())
	if after != nil {
		at := after.AppointmentDateTime.UTC()
		query = query.Where("(appointment_date_time > ? OR (appointment_date_time = ? AND id > ?))", at, at, after.ID)
	}

	var models []AppointmentModel
	err := query.
		Order("appointment_date_time ASC").
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	appointments := make([]domain.Appointment, 0, len(models))
	for i := range models {
		appointments = append(appointments, *appointmentModelToDomain(&models[i]))
	}
	return appointments, nil
}
