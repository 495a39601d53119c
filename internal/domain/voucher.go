package domain

import (
	"fmt"
	"strings"
	"time"
)

// VoucherStatus represents the redemption state of a reward voucher.
type VoucherStatus string

const (
	VoucherPending    VoucherStatus = "PENDING"
	VoucherProcessing VoucherStatus = "PROCESSING"
	VoucherCompleted  VoucherStatus = "COMPLETED"
	VoucherCancelled  VoucherStatus = "CANCELLED"
)

func (s VoucherStatus) String() string { return string(s) }

func (s VoucherStatus) IsValid() bool {
	switch s {
	case VoucherPending, VoucherProcessing, VoucherCompleted, VoucherCancelled:
		return true
	}
	return false
}

func (s VoucherStatus) IsTerminal() bool {
	return s == VoucherCompleted || s == VoucherCancelled
}

// ParseVoucherStatus accepts any casing and the legacy "Complete"/"Canceled" spellings.
func ParseVoucherStatus(s string) (VoucherStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	switch normalized {
	case "COMPLETE":
		normalized = string(VoucherCompleted)
	case "CANCELED":
		normalized = string(VoucherCancelled)
	}
	st := VoucherStatus(normalized)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid voucher status %q", ErrValidation, s)
	}
	return st, nil
}

// RewardType is the kind of reward a voucher grants.
type RewardType string

const (
	RewardBloodBag    RewardType = "BLOOD_BAG_VOUCHER"
	RewardGiftCard    RewardType = "GIFT_CARD"
	RewardDiscount    RewardType = "DISCOUNT"
	RewardMerchandise RewardType = "MERCHANDISE"
)

func (r RewardType) String() string { return string(r) }

func (r RewardType) IsValid() bool {
	switch r {
	case RewardBloodBag, RewardGiftCard, RewardDiscount, RewardMerchandise:
		return true
	}
	return false
}

func ParseRewardType(s string) (RewardType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	if normalized == "BLOOD_BAG" {
		normalized = string(RewardBloodBag)
	}
	rt := RewardType(normalized)
	if !rt.IsValid() {
		return "", fmt.Errorf("%w: invalid reward type %q", ErrValidation, s)
	}
	return rt, nil
}

const (
	MaxRejectionReason = 500
	MaxRewardTitle     = 200
)

// Voucher is a donor's claim on a reward, bought with points.
type Voucher struct {
	ID               string
	Code             string
	DonorID          string
	RewardType       RewardType
	RewardTitle      string
	PointsCost       int
	Status           VoucherStatus
	RedeemedDate     *time.Time
	ExpiryDate       time.Time
	AllocatedBatchID *string
	RejectionReason  *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (v *Voucher) Validate() error {
	if strings.TrimSpace(v.DonorID) == "" {
		return fmt.Errorf("%w: donorId is required", ErrValidation)
	}
	if !v.RewardType.IsValid() {
		return fmt.Errorf("%w: invalid reward type %q", ErrValidation, v.RewardType)
	}
	title := strings.TrimSpace(v.RewardTitle)
	if title == "" {
		return fmt.Errorf("%w: rewardTitle is required", ErrValidation)
	}
	if n := len([]rune(title)); n > MaxRewardTitle {
		return fmt.Errorf("%w: rewardTitle exceeds %d characters (got %d)", ErrValidation, MaxRewardTitle, n)
	}
	if v.PointsCost < 0 {
		return fmt.Errorf("%w: pointsCost must not be negative", ErrValidation)
	}
	if v.ExpiryDate.IsZero() {
		return fmt.Errorf("%w: expiryDate is required", ErrValidation)
	}
	if v.RewardType == RewardBloodBag {
		if _, err := BloodTypeFromTitle(title); err != nil {
			return err
		}
	}
	return nil
}

func (v *Voucher) IsBloodBag() bool {
	return v.RewardType == RewardBloodBag
}

func (v *Voucher) IsExpired(now time.Time) bool {
	return !v.ExpiryDate.IsZero() && now.After(v.ExpiryDate)
}

// ValidateRejectionReason trims reason and enforces its length limit.
func ValidateRejectionReason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	if n := len([]rune(trimmed)); n > MaxRejectionReason {
		return "", fmt.Errorf("%w: rejection reason exceeds %d characters (got %d)", ErrValidation, MaxRejectionReason, n)
	}
	return trimmed, nil
}
