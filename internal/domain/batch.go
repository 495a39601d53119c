package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents whether a blood-bag batch can be drawn from.
type BatchStatus string

const (
	BatchAvailable   BatchStatus = "AVAILABLE"
	BatchUnavailable BatchStatus = "UNAVAILABLE"
	BatchExpired     BatchStatus = "EXPIRED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchAvailable, BatchUnavailable, BatchExpired:
		return true
	}
	return false
}

func ParseBatchStatus(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

// InventoryBatch is a stock of blood bags of one type held by a blood bank.
type InventoryBatch struct {
	ID          string
	BloodBankID string
	BloodType   BloodType
	Quantity    int
	Status      BatchStatus
	ExpiryDate  *time.Time
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (b *InventoryBatch) Validate() error {
	if strings.TrimSpace(b.BloodBankID) == "" {
		return fmt.Errorf("%w: bloodBankId is required", ErrValidation)
	}
	if !b.BloodType.IsValid() {
		return fmt.Errorf("%w: invalid blood type %q", ErrValidation, b.BloodType)
	}
	if b.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("%w: invalid batch status %q", ErrValidation, b.Status)
	}
	if b.Quantity == 0 && b.Status == BatchAvailable {
		return fmt.Errorf("%w: an empty batch cannot be %s", ErrValidation, BatchAvailable)
	}
	return nil
}

// CanSupply reports whether units can be drawn from the batch at now.
func (b *InventoryBatch) CanSupply(units int, now time.Time) bool {
	if b.Status != BatchAvailable || b.Quantity < units {
		return false
	}
	return b.ExpiryDate == nil || b.ExpiryDate.After(now)
}

// InventoryFilter narrows a blood bank's inventory listing.
type InventoryFilter struct {
	BloodBankID string
	BloodType   *BloodType
	Status      *BatchStatus
}
