package service

import (
	"context"
	"testing"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"github.com/kursadbilgin/bloodbank-workflow/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store        *repository.GormStore
	inventory    *InventoryLedger
	points       *PointsLedger
	appointments *AppointmentWorkflow
	requests     *RequestWorkflow
	vouchers     *VoucherWorkflow
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := repository.NewGormStore(testutil.NewDB(t))
	clock := func() time.Time { return testNow }

	inventory, err := NewInventoryLedger(store, zap.NewNop())
	require.NoError(t, err)
	inventory.now = clock

	points, err := NewPointsLedger(store, zap.NewNop())
	require.NoError(t, err)
	points.now = clock

	appointments, err := NewAppointmentWorkflow(store, points, AppointmentOptions{}, zap.NewNop())
	require.NoError(t, err)
	appointments.now = clock

	requests, err := NewRequestWorkflow(store, inventory, zap.NewNop())
	require.NoError(t, err)
	requests.now = clock

	vouchers, err := NewVoucherWorkflow(store, inventory, points, zap.NewNop())
	require.NoError(t, err)
	vouchers.now = clock

	return &testEnv{
		store:        store,
		inventory:    inventory,
		points:       points,
		appointments: appointments,
		requests:     requests,
		vouchers:     vouchers,
	}
}

func (e *testEnv) setNow(now time.Time) {
	clock := func() time.Time { return now }
	e.inventory.now = clock
	e.points.now = clock
	e.appointments.now = clock
	e.requests.now = clock
	e.vouchers.now = clock
}

func (e *testEnv) seedBatch(t *testing.T, bloodBankID string, bloodType domain.BloodType, quantity int) *domain.InventoryBatch {
	t.Helper()

	expiry := testNow.Add(30 * 24 * time.Hour)
	batch, err := e.inventory.Register(context.Background(), &domain.InventoryBatch{
		BloodBankID: bloodBankID,
		BloodType:   bloodType,
		Quantity:    quantity,
		ExpiryDate:  &expiry,
	})
	require.NoError(t, err)
	return batch
}

func (e *testEnv) eventTypes(t *testing.T, aggregateID string) []domain.EventType {
	t.Helper()

	events, err := e.store.Outbox().ListByAggregate(context.Background(), aggregateID)
	require.NoError(t, err)

	types := make([]domain.EventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.EventType)
	}
	return types
}

func (e *testEnv) balance(t *testing.T, donorID string) int {
	t.Helper()

	account, err := e.points.Balance(context.Background(), donorID)
	require.NoError(t, err)
	return account.Balance
}

func (e *testEnv) award(ctx context.Context, donorID string, points int, referenceID string) (bool, error) {
	var applied bool
	err := e.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		applied, err = e.points.award(ctx, tx, donorID, points, referenceID)
		return err
	})
	return applied, err
}

func (e *testEnv) spend(ctx context.Context, donorID string, points int, referenceID string) (bool, error) {
	var applied bool
	err := e.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		applied, err = e.points.spend(ctx, tx, donorID, points, referenceID)
		return err
	})
	return applied, err
}

func (e *testEnv) refund(ctx context.Context, donorID string, referenceID string) (int, error) {
	var refunded int
	err := e.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		refunded, err = e.points.refund(ctx, tx, donorID, referenceID)
		return err
	})
	return refunded, err
}

func (e *testEnv) decrement(ctx context.Context, batchID string, units int) (*domain.InventoryBatch, error) {
	return e.inventory.decrement(ctx, e.store, batchID, units)
}

func (e *testEnv) restore(ctx context.Context, batchID string, units int) (*domain.InventoryBatch, error) {
	return e.inventory.restore(ctx, e.store, batchID, units)
}
