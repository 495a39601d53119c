package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
)

type appointmentPayload struct {
	AppointmentID       string                   `json:"appointmentId"`
	DonorID             string                   `json:"donorId"`
	BloodBankID         string                   `json:"bloodBankId"`
	AppointmentDateTime time.Time                `json:"appointmentDateTime"`
	Status              domain.AppointmentStatus `json:"status"`
	PreviousStatus      domain.AppointmentStatus `json:"previousStatus,omitempty"`
	OccurredAt          time.Time                `json:"occurredAt"`
}

type pointsPayload struct {
	DonorID     string                 `json:"donorId"`
	Kind        domain.PointsEntryKind `json:"kind"`
	Points      int                    `json:"points"`
	ReferenceID string                 `json:"referenceId"`
	OccurredAt  time.Time              `json:"occurredAt"`
}

type requestPayload struct {
	RequestID   string               `json:"requestId"`
	HospitalID  string               `json:"hospitalId"`
	BloodBankID string               `json:"bloodBankId"`
	Status      domain.RequestStatus `json:"status"`
	DeliveryID  string               `json:"deliveryId,omitempty"`
	OccurredAt  time.Time            `json:"occurredAt"`
}

type deliveryPayload struct {
	DeliveryID     string                `json:"deliveryId"`
	RequestID      string                `json:"requestId"`
	HospitalID     string                `json:"hospitalId"`
	BloodBankID    string                `json:"bloodBankId"`
	Status         domain.DeliveryStatus `json:"status"`
	PreviousStatus domain.DeliveryStatus `json:"previousStatus"`
	OccurredAt     time.Time             `json:"occurredAt"`
}

type allocationPayload struct {
	AllocationID string           `json:"allocationId"`
	RequestID    string           `json:"requestId"`
	BatchID      string           `json:"batchId"`
	BloodType    domain.BloodType `json:"bloodType"`
	Units        int              `json:"units"`
	OccurredAt   time.Time        `json:"occurredAt"`
}

type voucherPayload struct {
	VoucherID        string               `json:"voucherId"`
	Code             string               `json:"code"`
	DonorID          string               `json:"donorId"`
	RewardType       domain.RewardType    `json:"rewardType"`
	Status           domain.VoucherStatus `json:"status"`
	AllocatedBatchID *string              `json:"allocatedBatchId,omitempty"`
	RejectionReason  *string              `json:"rejectionReason,omitempty"`
	OccurredAt       time.Time            `json:"occurredAt"`
}

func newVoucherPayload(v *domain.Voucher, at time.Time) voucherPayload {
	return voucherPayload{
		VoucherID:        v.ID,
		Code:             v.Code,
		DonorID:          v.DonorID,
		RewardType:       v.RewardType,
		Status:           v.Status,
		AllocatedBatchID: v.AllocatedBatchID,
		RejectionReason:  v.RejectionReason,
		OccurredAt:       at,
	}
}

// appendEvent records a workflow event in the caller's transaction so it
// commits or rolls back with the state change it describes.
func appendEvent(
	ctx context.Context,
	tx repository.Store,
	eventType domain.EventType,
	aggregateType string,
	aggregateID string,
	payload any,
	now time.Time,
) error {
	event, err := domain.NewOutboxEvent(eventType, aggregateType, aggregateID, payload, now)
	if err != nil {
		return err
	}
	if err := tx.Outbox().Append(ctx, &event); err != nil {
		return fmt.Errorf("failed to append %s event: %w", eventType, err)
	}
	return nil
}
