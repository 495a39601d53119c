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

// RequestWorkflow moves hospital requests and their delivery through
// PENDING, SCHEDULED, IN_TRANSIT and COMPLETE, one step at a time.
type RequestWorkflow struct {
	store     repository.Store
	inventory *InventoryLedger
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// DeliverySchedule carries the delivery details set when a request is approved.
type DeliverySchedule struct {
	ScheduledDate time.Time
	EstimatedTime string
}

func NewRequestWorkflow(store repository.Store, inventory *InventoryLedger, logger *zap.Logger) (*RequestWorkflow, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory ledger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RequestWorkflow{
		store:     store,
		inventory: inventory,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *RequestWorkflow) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *RequestWorkflow) Create(ctx context.Context, request *domain.HospitalRequest) (*domain.HospitalRequest, error) {
	if request == nil {
		return nil, fmt.Errorf("%w: request is required", domain.ErrValidation)
	}

	now := s.now().UTC()
	created := *request
	created.ID = uuid.NewString()
	created.HospitalID = strings.TrimSpace(created.HospitalID)
	created.BloodBankID = strings.TrimSpace(created.BloodBankID)
	created.Notes = strings.TrimSpace(created.Notes)
	created.BloodItems = append([]domain.BloodItem(nil), request.BloodItems...)
	created.Status = domain.RequestPending
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.RequestDate.IsZero() {
		created.RequestDate = now
	}
	created.RequestDate = created.RequestDate.UTC()
	created.DateNeeded = created.DateNeeded.UTC()
	if err := created.Validate(); err != nil {
		return nil, err
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Requests().Create(ctx, &created); err != nil {
			return fmt.Errorf("failed to create hospital request: %w", err)
		}
		return appendEvent(ctx, tx, domain.EventRequestCreated, domain.AggregateRequest, created.ID,
			newRequestPayload(&created, "", now), now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(domain.AggregateRequest, created.Status.String())
	return &created, nil
}

func (s *RequestWorkflow) Get(ctx context.Context, id string) (*domain.HospitalRequest, error) {
	return s.store.Requests().GetByID(ctx, id)
}

func (s *RequestWorkflow) ListByBloodBank(
	ctx context.Context,
	bloodBankID string,
	status *domain.RequestStatus,
) ([]domain.HospitalRequest, error) {
	if strings.TrimSpace(bloodBankID) == "" {
		return nil, fmt.Errorf("%w: bloodBankId is required", domain.ErrValidation)
	}
	return s.store.Requests().ListByBloodBank(ctx, bloodBankID, status)
}

func (s *RequestWorkflow) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	return s.store.Requests().GetDelivery(ctx, id)
}

func (s *RequestWorkflow) Allocations(ctx context.Context, requestID string) ([]domain.RequestAllocation, error) {
	if _, err := s.store.Requests().GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	return s.store.Requests().ListAllocations(ctx, requestID)
}

// ApproveAndSchedule creates the request's delivery and moves the request to
// SCHEDULED in one transaction. Only a PENDING request can be approved.
func (s *RequestWorkflow) ApproveAndSchedule(
	ctx context.Context,
	requestID string,
	schedule DeliverySchedule,
) (*domain.Delivery, error) {
	if schedule.ScheduledDate.IsZero() {
		return nil, fmt.Errorf("%w: scheduledDate is required", domain.ErrValidation)
	}
	estimatedTime, err := domain.ParseEstimatedTime(schedule.EstimatedTime)
	if err != nil {
		return nil, err
	}

	var delivery *domain.Delivery
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		request, err := tx.Requests().LockByID(ctx, requestID)
		if err != nil {
			return err
		}
		if request.Status != domain.RequestPending {
			return fmt.Errorf("%w: request is already %s", domain.ErrInvalidTransition, request.Status)
		}

		now := s.now().UTC()
		created := &domain.Delivery{
			ID:            uuid.NewString(),
			RequestID:     request.ID,
			BloodBankID:   request.BloodBankID,
			HospitalID:    request.HospitalID,
			ScheduledDate: schedule.ScheduledDate.UTC(),
			EstimatedTime: estimatedTime,
			Status:        domain.DeliveryScheduled,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Requests().CreateDelivery(ctx, created); err != nil {
			return err
		}
		if err := tx.Requests().TransitionStatus(ctx, request.ID, domain.RequestPending, domain.RequestScheduled, now); err != nil {
			return err
		}
		request.Status = domain.RequestScheduled

		payload := newRequestPayload(request, created.ID, now)
		if err := appendEvent(ctx, tx, domain.EventRequestScheduled, domain.AggregateRequest, request.ID, payload, now); err != nil {
			return err
		}

		delivery = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(domain.AggregateRequest, domain.RequestScheduled.String())
	observability.WithContextLogger(s.logger, ctx).Info("hospital request scheduled",
		zap.String("requestId", requestID),
		zap.String("deliveryId", delivery.ID),
	)
	return delivery, nil
}

// Advance moves a delivery to its immediate successor and mirrors the new
// stage onto the request.
func (s *RequestWorkflow) Advance(ctx context.Context, deliveryID string, target domain.DeliveryStatus) (*domain.Delivery, error) {
	var updated *domain.Delivery

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		delivery, err := tx.Requests().LockDelivery(ctx, deliveryID)
		if err != nil {
			return err
		}
		next, ok := delivery.Status.Next()
		if !ok {
			return fmt.Errorf("%w: delivery is already %s", domain.ErrInvalidTransition, delivery.Status)
		}
		if target != next {
			return fmt.Errorf("%w: delivery in %s can only move to %s", domain.ErrInvalidTransition, delivery.Status, next)
		}

		now := s.now().UTC()
		previous := delivery.Status
		if err := tx.Requests().TransitionDelivery(ctx, delivery.ID, previous, target, now); err != nil {
			return err
		}
		if err := tx.Requests().TransitionStatus(ctx, delivery.RequestID,
			previous.RequestStatus(), target.RequestStatus(), now); err != nil {
			return err
		}
		delivery.Status = target
		delivery.UpdatedAt = now

		if err := appendEvent(ctx, tx, domain.EventDeliveryStatus, domain.AggregateDelivery, delivery.ID, deliveryPayload{
			DeliveryID:     delivery.ID,
			RequestID:      delivery.RequestID,
			HospitalID:     delivery.HospitalID,
			BloodBankID:    delivery.BloodBankID,
			Status:         target,
			PreviousStatus: previous,
			OccurredAt:     now,
		}, now); err != nil {
			return err
		}
		if target == domain.DeliveryComplete {
			if err := appendEvent(ctx, tx, domain.EventRequestCompleted, domain.AggregateRequest, delivery.RequestID, requestPayload{
				RequestID:   delivery.RequestID,
				HospitalID:  delivery.HospitalID,
				BloodBankID: delivery.BloodBankID,
				Status:      domain.RequestComplete,
				DeliveryID:  delivery.ID,
				OccurredAt:  now,
			}, now); err != nil {
				return err
			}
		}

		updated = delivery
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(domain.AggregateDelivery, target.String())
	s.metrics.IncTransition(domain.AggregateRequest, target.RequestStatus().String())
	return updated, nil
}

// AdvanceRequest applies a request-level status change: SCHEDULED approves
// the request, later stages advance its delivery.
func (s *RequestWorkflow) AdvanceRequest(
	ctx context.Context,
	requestID string,
	target domain.RequestStatus,
	schedule *DeliverySchedule,
) (*domain.HospitalRequest, error) {
	switch target {
	case domain.RequestScheduled:
		if schedule == nil {
			return nil, fmt.Errorf("%w: scheduledDate and estimatedTime are required", domain.ErrValidation)
		}
		if _, err := s.ApproveAndSchedule(ctx, requestID, *schedule); err != nil {
			return nil, err
		}
	case domain.RequestInTransit, domain.RequestComplete:
		delivery, err := s.store.Requests().GetDeliveryByRequestID(ctx, requestID)
		if errors.Is(err, domain.ErrNotFound) {
			if _, getErr := s.store.Requests().GetByID(ctx, requestID); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("%w: request has no delivery yet", domain.ErrInvalidTransition)
		}
		if err != nil {
			return nil, err
		}
		if _, err := s.Advance(ctx, delivery.ID, domain.DeliveryStatus(target)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: cannot move request to %s", domain.ErrInvalidTransition, target)
	}

	return s.store.Requests().GetByID(ctx, requestID)
}

// Allocate sets inventory units aside for a request. The batch must belong to
// the request's blood bank and hold a requested blood type, and the total
// allocated per type may not exceed the units requested.
func (s *RequestWorkflow) Allocate(ctx context.Context, requestID string, batchID string, units int) (*domain.RequestAllocation, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batchId is required", domain.ErrValidation)
	}
	if units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", domain.ErrValidation)
	}

	var allocation *domain.RequestAllocation
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		request, err := tx.Requests().LockByID(ctx, requestID)
		if err != nil {
			return err
		}
		if request.Status != domain.RequestPending && request.Status != domain.RequestScheduled {
			return fmt.Errorf("%w: cannot allocate to a request in %s", domain.ErrInvalidTransition, request.Status)
		}

		batch, err := tx.Inventory().GetByID(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.BloodBankID != request.BloodBankID {
			return fmt.Errorf("%w: batch belongs to another blood bank", domain.ErrValidation)
		}
		if !batch.CanSupply(units, s.now().UTC()) {
			return fmt.Errorf("%w: batch %s cannot supply %d units (%d left, %s)",
				domain.ErrInsufficientInventory, batch.ID, units, batch.Quantity, batch.Status)
		}
		requested := request.UnitsFor(batch.BloodType)
		if requested == 0 {
			return fmt.Errorf("%w: request does not ask for %s", domain.ErrValidation, batch.BloodType)
		}

		existing, err := tx.Requests().ListAllocations(ctx, request.ID)
		if err != nil {
			return fmt.Errorf("failed to list allocations: %w", err)
		}
		allocated := 0
		for _, a := range existing {
			if a.BloodType == batch.BloodType {
				allocated += a.Units
			}
		}
		if allocated+units > requested {
			return fmt.Errorf("%w: %d of %d %s units already allocated", domain.ErrValidation, allocated, requested, batch.BloodType)
		}

		if _, err := s.inventory.decrement(ctx, tx, batch.ID, units); err != nil {
			return err
		}

		now := s.now().UTC()
		created := &domain.RequestAllocation{
			ID:        uuid.NewString(),
			RequestID: request.ID,
			BatchID:   batch.ID,
			BloodType: batch.BloodType,
			Units:     units,
			CreatedAt: now,
		}
		if err := tx.Requests().CreateAllocation(ctx, created); err != nil {
			return fmt.Errorf("failed to record allocation: %w", err)
		}
		if err := appendEvent(ctx, tx, domain.EventRequestAllocated, domain.AggregateRequest, request.ID, allocationPayload{
			AllocationID: created.ID,
			RequestID:    request.ID,
			BatchID:      batch.ID,
			BloodType:    batch.BloodType,
			Units:        units,
			OccurredAt:   now,
		}, now); err != nil {
			return err
		}

		allocation = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddInventoryUnits("allocated", allocation.BloodType.String(), units)
	return allocation, nil
}

func newRequestPayload(r *domain.HospitalRequest, deliveryID string, at time.Time) requestPayload {
	return requestPayload{
		RequestID:   r.ID,
		HospitalID:  r.HospitalID,
		BloodBankID: r.BloodBankID,
		Status:      r.Status,
		DeliveryID:  deliveryID,
		OccurredAt:  at,
	}
}
