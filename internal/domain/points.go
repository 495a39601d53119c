package domain

import (
	"fmt"
	"strings"
	"time"
)

// PointsEntryKind classifies a reward-points ledger entry.
type PointsEntryKind string

const (
	PointsAward  PointsEntryKind = "AWARD"
	PointsSpend  PointsEntryKind = "SPEND"
	PointsRefund PointsEntryKind = "REFUND"
)

func (k PointsEntryKind) String() string { return string(k) }

func (k PointsEntryKind) IsValid() bool {
	switch k {
	case PointsAward, PointsSpend, PointsRefund:
		return true
	}
	return false
}

// PointsAccount is a donor's current reward-points balance.
type PointsAccount struct {
	DonorID   string
	Balance   int
	UpdatedAt time.Time
}

// PointsEntry is an append-only ledger line. Kind and ReferenceID together
// identify the business event that caused it.
type PointsEntry struct {
	ID          string
	DonorID     string
	Kind        PointsEntryKind
	Points      int
	ReferenceID string
	CreatedAt   time.Time
}

func (e *PointsEntry) Validate() error {
	if strings.TrimSpace(e.DonorID) == "" {
		return fmt.Errorf("%w: donorId is required", ErrValidation)
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: invalid entry kind %q", ErrValidation, e.Kind)
	}
	if e.Points <= 0 {
		return fmt.Errorf("%w: points must be positive", ErrValidation)
	}
	if strings.TrimSpace(e.ReferenceID) == "" {
		return fmt.Errorf("%w: referenceId is required", ErrValidation)
	}
	return nil
}
