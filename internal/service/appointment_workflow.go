package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/observability"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultPointsPerDonation = 100
	defaultGraceWindow       = time.Hour
	defaultSweepLimit        = 500
)

// AppointmentOptions tunes the appointment workflow. Zero values fall back to
// the defaults above.
type AppointmentOptions struct {
	PointsPerDonation int
	GraceWindow       time.Duration
	SweepLimit        int
}

type AppointmentWorkflow struct {
	store             repository.Store
	points            *PointsLedger
	logger            *zap.Logger
	metrics           *observability.Metrics
	now               func() time.Time
	pointsPerDonation int
	graceWindow       time.Duration
	sweepLimit        int
}

// SweepResult counts what one sweep did with the overdue appointments it found.
type SweepResult struct {
	Scanned int
	Missed  int
	Skipped int
	Failed  int
}

func NewAppointmentWorkflow(
	store repository.Store,
	points *PointsLedger,
	opts AppointmentOptions,
	logger *zap.Logger,
) (*AppointmentWorkflow, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if points == nil {
		return nil, fmt.Errorf("points ledger is required")
	}
	if opts.PointsPerDonation <= 0 {
		opts.PointsPerDonation = defaultPointsPerDonation
	}
	if opts.GraceWindow <= 0 {
		opts.GraceWindow = defaultGraceWindow
	}
	if opts.SweepLimit <= 0 {
		opts.SweepLimit = defaultSweepLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AppointmentWorkflow{
		store:             store,
		points:            points,
		logger:            logger,
		now:               time.Now,
		pointsPerDonation: opts.PointsPerDonation,
		graceWindow:       opts.GraceWindow,
		sweepLimit:        opts.SweepLimit,
	}, nil
}

func (s *AppointmentWorkflow) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Create books an appointment. Status defaults to PENDING; SCHEDULED is also
// accepted for slots confirmed at booking time.
func (s *AppointmentWorkflow) Create(ctx context.Context, appointment *domain.Appointment) (*domain.Appointment, error) {
	if appointment == nil {
		return nil, fmt.Errorf("%w: appointment is required", domain.ErrValidation)
	}

	now := s.now().UTC()
	created := *appointment
	created.ID = uuid.NewString()
	created.DonorID = strings.TrimSpace(created.DonorID)
	created.BloodBankID = strings.TrimSpace(created.BloodBankID)
	created.Notes = strings.TrimSpace(created.Notes)
	created.AppointmentDateTime = created.AppointmentDateTime.UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Status == "" {
		created.Status = domain.AppointmentPending
	}
	if err := created.Validate(); err != nil {
		return nil, err
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Appointments().Create(ctx, &created); err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return appendEvent(ctx, tx, domain.EventAppointmentCreated, domain.AggregateAppointment, created.ID,
			newAppointmentPayload(&created, "", now), now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(domain.AggregateAppointment, created.Status.String())
	return &created, nil
}

func (s *AppointmentWorkflow) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	return s.store.Appointments().GetByID(ctx, id)
}

func (s *AppointmentWorkflow) ListByBloodBank(
	ctx context.Context,
	bloodBankID string,
	status *domain.AppointmentStatus,
) ([]domain.Appointment, error) {
	if strings.TrimSpace(bloodBankID) == "" {
		return nil, fmt.Errorf("%w: bloodBankId is required", domain.ErrValidation)
	}
	return s.store.Appointments().ListByBloodBank(ctx, bloodBankID, status)
}

// Schedule confirms a pending appointment.
func (s *AppointmentWorkflow) Schedule(ctx context.Context, id string) (*domain.Appointment, error) {
	return s.transition(ctx, id, domain.AppointmentScheduled)
}

// Complete records the donation and credits the donor in the same
// transaction. A failed credit leaves the appointment open.
func (s *AppointmentWorkflow) Complete(ctx context.Context, id string) (*domain.Appointment, error) {
	return s.transition(ctx, id, domain.AppointmentComplete)
}

func (s *AppointmentWorkflow) MarkMissed(ctx context.Context, id string) (*domain.Appointment, error) {
	return s.transition(ctx, id, domain.AppointmentMissed)
}

func (s *AppointmentWorkflow) MarkDeferred(ctx context.Context, id string) (*domain.Appointment, error) {
	return s.transition(ctx, id, domain.AppointmentDeferred)
}

// UpdateStatus dispatches a requested target status to the matching operation.
func (s *AppointmentWorkflow) UpdateStatus(ctx context.Context, id string, status domain.AppointmentStatus) (*domain.Appointment, error) {
	switch status {
	case domain.AppointmentScheduled:
		return s.Schedule(ctx, id)
	case domain.AppointmentComplete:
		return s.Complete(ctx, id)
	case domain.AppointmentMissed:
		return s.MarkMissed(ctx, id)
	case domain.AppointmentDeferred:
		return s.MarkDeferred(ctx, id)
	default:
		return nil, fmt.Errorf("%w: cannot move appointment to %s", domain.ErrInvalidTransition, status)
	}
}

// Sweep marks every open appointment more than the grace window past its
// slot as MISSED. Overdue rows are read in pages of sweepLimit behind a
// cursor, so a row that fails is not read again in the same sweep. Each
// record commits on its own; a failure is logged and the sweep moves on.
// A cancelled ctx stops the sweep and is returned with the partial result.
func (s *AppointmentWorkflow) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	now = now.UTC()
	cutoff := now.Add(-s.graceWindow)
	logger := observability.WithContextLogger(s.logger, ctx)
	defer s.recordSweep(&result)

	var cursor *repository.OverdueCursor
	for {
		if err := ctx.Err(); err != nil {
			return result, s.sweepInterrupted(logger, result, err)
		}

		page, err := s.store.Appointments().ListOverdue(ctx, cutoff, cursor, s.sweepLimit)
		if err != nil {
			return result, fmt.Errorf("failed to fetch overdue appointments: %w", err)
		}
		result.Scanned += len(page)

		for i := range page {
			if err := ctx.Err(); err != nil {
				result.Scanned -= len(page) - i
				return result, s.sweepInterrupted(logger, result, err)
			}

			switch err := s.markOverdueMissed(ctx, page[i], now); {
			case err == nil:
				result.Missed++
			case errors.Is(err, domain.ErrConflict):
				// Completed or deferred since it was listed.
				result.Skipped++
			default:
				result.Failed++
				logger.Error("failed to mark overdue appointment as missed",
					zap.String("appointmentId", page[i].ID),
					zap.Error(err),
				)
			}
		}

		if len(page) < s.sweepLimit {
			return result, nil
		}
		cursor = repository.CursorAfter(page[len(page)-1])
	}
}

func (s *AppointmentWorkflow) markOverdueMissed(ctx context.Context, appointment domain.Appointment, now time.Time) error {
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Appointments().TransitionStatus(ctx, appointment.ID,
			domain.OpenAppointmentStatuses, domain.AppointmentMissed, now); err != nil {
			return err
		}
		previous := appointment.Status
		appointment.Status = domain.AppointmentMissed
		appointment.UpdatedAt = now
		return appendEvent(ctx, tx, domain.EventAppointmentMissed, domain.AggregateAppointment, appointment.ID,
			newAppointmentPayload(&appointment, previous, now), now)
	})
}

func (s *AppointmentWorkflow) sweepInterrupted(logger *zap.Logger, result SweepResult, err error) error {
	logger.Warn("appointment sweep interrupted",
		zap.Int("scanned", result.Scanned),
		zap.Int("missed", result.Missed),
		zap.Error(err),
	)
	return fmt.Errorf("appointment sweep interrupted: %w", err)
}

func (s *AppointmentWorkflow) recordSweep(result *SweepResult) {
	s.metrics.AddSweptAppointments("missed", result.Missed)
	s.metrics.AddSweptAppointments("skipped", result.Skipped)
	s.metrics.AddSweptAppointments("failed", result.Failed)
}

func (s *AppointmentWorkflow) transition(ctx context.Context, id string, to domain.AppointmentStatus) (*domain.Appointment, error) {
	var updated *domain.Appointment
	var awarded bool

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.Appointments().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CheckAppointmentTransition(current.Status, to); err != nil {
			return err
		}

		now := s.now().UTC()
		previous := current.Status
		if err := tx.Appointments().TransitionStatus(ctx, id, []domain.AppointmentStatus{previous}, to, now); err != nil {
			return err
		}
		current.Status = to
		current.UpdatedAt = now

		if err := appendEvent(ctx, tx, domain.AppointmentEvent(to), domain.AggregateAppointment, current.ID,
			newAppointmentPayload(current, previous, now), now); err != nil {
			return err
		}

		if to == domain.AppointmentComplete {
			applied, err := s.points.award(ctx, tx, current.DonorID, s.pointsPerDonation, current.ID)
			if err != nil {
				return fmt.Errorf("failed to award donation points: %w", err)
			}
			awarded = applied
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(domain.AggregateAppointment, to.String())
	if awarded {
		s.metrics.AddPoints(string(domain.PointsAward), s.pointsPerDonation)
	}
	observability.WithContextLogger(s.logger, ctx).Info("appointment status changed",
		zap.String("appointmentId", updated.ID),
		zap.String("status", to.String()),
	)
	return updated, nil
}

func newAppointmentPayload(a *domain.Appointment, previous domain.AppointmentStatus, at time.Time) appointmentPayload {
	return appointmentPayload{
		AppointmentID:       a.ID,
		DonorID:             a.DonorID,
		BloodBankID:         a.BloodBankID,
		AppointmentDateTime: a.AppointmentDateTime,
		Status:              a.Status,
		PreviousStatus:      previous,
		OccurredAt:          at,
	}
}
