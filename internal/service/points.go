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

// PointsLedger keeps donor reward balances. Every change is an entry keyed by
// (kind, referenceId), so replaying the same business event is a no-op.
type PointsLedger struct {
	store   repository.Store
	logger  *zap.Logger
	now     func() time.Time
}

// PointsStatement is a donor's balance together with its ledger entries.
type PointsStatement struct {
	Account domain.PointsAccount
	Entries []domain.PointsEntry
}

func NewPointsLedger(store repository.Store, logger *zap.Logger) (*PointsLedger, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PointsLedger{
		store:  store,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (l *PointsLedger) Balance(ctx context.Context, donorID string) (*domain.PointsAccount, error) {
	if strings.TrimSpace(donorID) == "" {
		return nil, fmt.Errorf("%w: donorId is required", domain.ErrValidation)
	}
	return l.store.Points().GetAccount(ctx, donorID)
}

func (l *PointsLedger) Statement(ctx context.Context, donorID string) (*PointsStatement, error) {
	account, err := l.Balance(ctx, donorID)
	if err != nil {
		return nil, err
	}
	entries, err := l.store.Points().ListEntries(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list points entries: %w", err)
	}
	return &PointsStatement{Account: *account, Entries: entries}, nil
}

func (l *PointsLedger) award(ctx context.Context, tx repository.Store, donorID string, points int, referenceID string) (bool, error) {
	now := l.now().UTC()
	entry, err := l.newEntry(donorID, domain.PointsAward, points, referenceID, now)
	if err != nil {
		return false, err
	}

	applied, err := tx.Points().AppendEntry(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("failed to append award entry: %w", err)
	}
	if !applied {
		observability.WithContextLogger(l.logger, ctx).Info("points already awarded for reference",
			zap.String("donorId", donorID),
			zap.String("referenceId", referenceID),
		)
		return false, nil
	}

	if err := tx.Points().Credit(ctx, entry.DonorID, points, now); err != nil {
		return false, fmt.Errorf("failed to credit points: %w", err)
	}
	if err := appendEvent(ctx, tx, domain.EventPointsAwarded, domain.AggregatePoints, donorID, pointsPayload{
		DonorID:     donorID,
		Kind:        domain.PointsAward,
		Points:      points,
		ReferenceID: referenceID,
		OccurredAt:  now,
	}, now); err != nil {
		return false, err
	}
	return true, nil
}

func (l *PointsLedger) spend(ctx context.Context, tx repository.Store, donorID string, points int, referenceID string) (bool, error) {
	now := l.now().UTC()
	entry, err := l.newEntry(donorID, domain.PointsSpend, points, referenceID, now)
	if err != nil {
		return false, err
	}

	applied, err := tx.Points().AppendEntry(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("failed to append spend entry: %w", err)
	}
	if !applied {
		return false, nil
	}

	// Debit fails on a short balance, rolling back the entry with it.
	if err := tx.Points().Debit(ctx, entry.DonorID, points, now); err != nil {
		return false, err
	}
	return true, nil
}

func (l *PointsLedger) refund(ctx context.Context, tx repository.Store, donorID string, referenceID string) (int, error) {
	spent, err := tx.Points().FindEntry(ctx, domain.PointsSpend, referenceID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find spend entry: %w", err)
	}
	if spent.DonorID != donorID {
		return 0, fmt.Errorf("%w: reference %s belongs to another donor", domain.ErrValidation, referenceID)
	}

	now := l.now().UTC()
	entry, err := l.newEntry(donorID, domain.PointsRefund, spent.Points, referenceID, now)
	if err != nil {
		return 0, err
	}
	applied, err := tx.Points().AppendEntry(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("failed to append refund entry: %w", err)
	}
	if !applied {
		return 0, nil
	}
	if err := tx.Points().Credit(ctx, entry.DonorID, spent.Points, now); err != nil {
		return 0, fmt.Errorf("failed to credit refund: %w", err)
	}
	return spent.Points, nil
}

func (l *PointsLedger) newEntry(donorID string, kind domain.PointsEntryKind, points int, referenceID string, now time.Time) (*domain.PointsEntry, error) {
	entry := &domain.PointsEntry{
		ID:          uuid.NewString(),
		DonorID:     strings.TrimSpace(donorID),
		Kind:        kind,
		Points:      points,
		ReferenceID: strings.TrimSpace(referenceID),
		CreatedAt:   now,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}
