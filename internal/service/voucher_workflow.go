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

const voucherCodeLength = 12

// VoucherWorkflow issues and redeems reward vouchers. Accepting a blood-bag
// voucher takes one unit from inventory in the same transaction.
type VoucherWorkflow struct {
	store     repository.Store
	inventory *InventoryLedger
	points    *PointsLedger
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	newCode   func() string
}

func NewVoucherWorkflow(
	store repository.Store,
	inventory *InventoryLedger,
	points *PointsLedger,
	logger *zap.Logger,
) (*VoucherWorkflow, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory ledger is required")
	}
	if points == nil {
		return nil, fmt.Errorf("points ledger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &VoucherWorkflow{
		store:     store,
		inventory: inventory,
		points:    points,
		logger:    logger,
		now:       time.Now,
		newCode:   newVoucherCode,
	}, nil
}

func (s *VoucherWorkflow) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Issue spends the voucher's points cost and creates it as PENDING.
func (s *VoucherWorkflow) Issue(ctx context.Context, voucher *domain.Voucher) (*domain.Voucher, error) {
	if voucher == nil {
		return nil, fmt.Errorf("%w: voucher is required", domain.ErrValidation)
	}

	now := s.now().UTC()
	created := *voucher
	created.ID = uuid.NewString()
	created.Code = s.newCode()
	created.DonorID = strings.TrimSpace(created.DonorID)
	created.RewardTitle = strings.TrimSpace(created.RewardTitle)
	created.Status = domain.VoucherPending
	created.ExpiryDate = created.ExpiryDate.UTC()
	created.RedeemedDate = nil
	created.AllocatedBatchID = nil
	created.RejectionReason = nil
	created.CreatedAt = now
	created.UpdatedAt = now
	if err := created.Validate(); err != nil {
		return nil, err
	}
	if !created.ExpiryDate.After(now) {
		return nil, fmt.Errorf("%w: expiryDate must be in the future", domain.ErrValidation)
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if created.PointsCost > 0 {
			if _, err := s.points.spend(ctx, tx, created.DonorID, created.PointsCost, created.ID); err != nil {
				return err
			}
		}
		if err := tx.Vouchers().Create(ctx, &created); err != nil {
			return fmt.Errorf("failed to create voucher: %w", err)
		}
		return appendEvent(ctx, tx, domain.EventVoucherIssued, domain.AggregateVoucher, created.ID,
			newVoucherPayload(&created, now), now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(domain.AggregateVoucher, created.Status.String())
	s.metrics.AddPoints(string(domain.PointsSpend), created.PointsCost)
	return &created, nil
}

func (s *VoucherWorkflow) Get(ctx context.Context, id string) (*domain.Voucher, error) {
	return s.store.Vouchers().GetByID(ctx, id)
}

// Validate checks that a code can still be redeemed. It never changes state.
func (s *VoucherWorkflow) Validate(ctx context.Context, code string) (*domain.Voucher, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, fmt.Errorf("%w: voucher code is required", domain.ErrValidation)
	}

	voucher, err := s.store.Vouchers().GetByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}

	switch voucher.Status {
	case domain.VoucherPending:
		if voucher.IsExpired(s.now().UTC()) {
			return nil, fmt.Errorf("%w: voucher expired on %s", domain.ErrExpired, voucher.ExpiryDate.Format(time.RFC3339))
		}
		return voucher, nil
	case domain.VoucherProcessing, domain.VoucherCompleted:
		return nil, fmt.Errorf("%w: voucher is %s", domain.ErrAlreadyRedeemed, voucher.Status)
	default:
		return nil, fmt.Errorf("%w: voucher is %s", domain.ErrConflict, voucher.Status)
	}
}

// Accept redeems a pending voucher. Blood-bag vouchers need a batch of the
// blood type named in the reward title and move to PROCESSING; any other
// reward completes at once.
func (s *VoucherWorkflow) Accept(ctx context.Context, id string, allocatedBatchID *string) (*domain.Voucher, error) {
	var updated *domain.Voucher
	var allocatedType domain.BloodType

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		voucher, err := tx.Vouchers().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if voucher.Status.IsTerminal() {
			return fmt.Errorf("%w: voucher is already %s", domain.ErrConflict, voucher.Status)
		}
		if voucher.Status != domain.VoucherPending {
			return fmt.Errorf("%w: cannot accept voucher in %s", domain.ErrInvalidTransition, voucher.Status)
		}

		now := s.now().UTC()
		if voucher.IsExpired(now) {
			return fmt.Errorf("%w: voucher expired on %s", domain.ErrExpired, voucher.ExpiryDate.Format(time.RFC3339))
		}

		change := repository.VoucherTransition{
			To:           domain.VoucherCompleted,
			RedeemedDate: &now,
			At:           now,
		}
		eventType := domain.EventVoucherCompleted

		if voucher.IsBloodBag() {
			batchID, err := s.allocateBloodBag(ctx, tx, voucher, allocatedBatchID)
			if err != nil {
				return err
			}
			change.To = domain.VoucherProcessing
			change.AllocatedBatchID = &batchID
			eventType = domain.EventVoucherAccepted
			allocatedType, _ = domain.BloodTypeFromTitle(voucher.RewardTitle)
		}

		if err := tx.Vouchers().Transition(ctx, voucher.ID, domain.VoucherPending, change); err != nil {
			return err
		}
		voucher.Status = change.To
		voucher.RedeemedDate = change.RedeemedDate
		voucher.AllocatedBatchID = change.AllocatedBatchID
		voucher.UpdatedAt = now

		if err := appendEvent(ctx, tx, eventType, domain.AggregateVoucher, voucher.ID,
			newVoucherPayload(voucher, now), now); err != nil {
			return err
		}

		updated = voucher
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(domain.AggregateVoucher, updated.Status.String())
	if updated.AllocatedBatchID != nil {
		s.metrics.AddInventoryUnits("allocated", allocatedType.String(), 1)
	}
	observability.WithContextLogger(s.logger, ctx).Info("voucher accepted",
		zap.String("voucherId", updated.ID),
		zap.String("status", updated.Status.String()),
	)
	return updated, nil
}

// MarkCompleted finishes a blood-bag redemption once the unit is handed over.
func (s *VoucherWorkflow) MarkCompleted(ctx context.Context, id string) (*domain.Voucher, error) {
	var updated *domain.Voucher

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		voucher, err := tx.Vouchers().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if voucher.Status != domain.VoucherProcessing {
			return fmt.Errorf("%w: cannot complete voucher in %s", domain.ErrInvalidTransition, voucher.Status)
		}

		now := s.now().UTC()
		change := repository.VoucherTransition{To: domain.VoucherCompleted, At: now}
		if err := tx.Vouchers().Transition(ctx, voucher.ID, domain.VoucherProcessing, change); err != nil {
			return err
		}
		voucher.Status = domain.VoucherCompleted
		voucher.UpdatedAt = now

		if err := appendEvent(ctx, tx, domain.EventVoucherCompleted, domain.AggregateVoucher, voucher.ID,
			newVoucherPayload(voucher, now), now); err != nil {
			return err
		}

		updated = voucher
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(domain.AggregateVoucher, updated.Status.String())
	return updated, nil
}

// Reject cancels a pending or processing voucher. A unit taken on accept goes
// back to its batch and the points spent on issue are refunded.
func (s *VoucherWorkflow) Reject(ctx context.Context, id string, reason string) (*domain.Voucher, error) {
	trimmed, err := domain.ValidateRejectionReason(reason)
	if err != nil {
		return nil, err
	}

	var updated *domain.Voucher
	var restoredType domain.BloodType
	var refunded int

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		voucher, err := tx.Vouchers().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if voucher.Status.IsTerminal() {
			return fmt.Errorf("%w: voucher is already %s", domain.ErrConflict, voucher.Status)
		}

		if voucher.Status == domain.VoucherProcessing && voucher.AllocatedBatchID != nil {
			batch, err := s.inventory.restore(ctx, tx, *voucher.AllocatedBatchID, 1)
			if err != nil {
				return fmt.Errorf("failed to restore allocated unit: %w", err)
			}
			restoredType = batch.BloodType
		}

		now := s.now().UTC()
		from := voucher.Status
		change := repository.VoucherTransition{
			To:              domain.VoucherCancelled,
			RejectionReason: &trimmed,
			At:              now,
		}
		if err := tx.Vouchers().Transition(ctx, voucher.ID, from, change); err != nil {
			return err
		}
		voucher.Status = domain.VoucherCancelled
		voucher.RejectionReason = &trimmed
		voucher.UpdatedAt = now

		refunded, err = s.points.refund(ctx, tx, voucher.DonorID, voucher.ID)
		if err != nil {
			return err
		}

		if err := appendEvent(ctx, tx, domain.EventVoucherRejected, domain.AggregateVoucher, voucher.ID,
			newVoucherPayload(voucher, now), now); err != nil {
			return err
		}

		updated = voucher
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(domain.AggregateVoucher, updated.Status.String())
	if restoredType != "" {
		s.metrics.AddInventoryUnits("restored", restoredType.String(), 1)
	}
	s.metrics.AddPoints(string(domain.PointsRefund), refunded)
	return updated, nil
}

func (s *VoucherWorkflow) allocateBloodBag(
	ctx context.Context,
	tx repository.Store,
	voucher *domain.Voucher,
	allocatedBatchID *string,
) (string, error) {
	if allocatedBatchID == nil || strings.TrimSpace(*allocatedBatchID) == "" {
		return "", fmt.Errorf("%w: allocatedBatchId is required for a blood bag voucher", domain.ErrValidation)
	}
	batchID := strings.TrimSpace(*allocatedBatchID)

	want, err := domain.BloodTypeFromTitle(voucher.RewardTitle)
	if err != nil {
		return "", err
	}
	batch, err := tx.Inventory().GetByID(ctx, batchID)
	if err != nil {
		return "", err
	}
	if batch.BloodType != want {
		return "", fmt.Errorf("%w: voucher needs %s but batch holds %s", domain.ErrValidation, want, batch.BloodType)
	}
	if !batch.CanSupply(1, s.now().UTC()) {
		return "", fmt.Errorf("%w: batch %s cannot supply a unit (%d left, %s)",
			domain.ErrInsufficientInventory, batch.ID, batch.Quantity, batch.Status)
	}

	if _, err := s.inventory.decrement(ctx, tx, batchID, 1); err != nil {
		return "", err
	}
	return batchID, nil
}

func newVoucherCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "BB-" + raw[:voucherCodeLength]
}
