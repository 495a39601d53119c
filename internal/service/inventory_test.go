package service

import (
	"context"
	"testing"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryRegisterDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stocked := env.seedBatch(t, "bb-1", domain.BloodTypeOPos, 5)
	assert.Equal(t, domain.BatchAvailable, stocked.Status)
	assert.Equal(t, 1, stocked.Version)

	empty, err := env.inventory.Register(ctx, &domain.InventoryBatch{
		BloodBankID: "bb-1",
		BloodType:   domain.BloodTypeANeg,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchUnavailable, empty.Status)
}

func TestInventoryRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	past := testNow.Add(-time.Hour)

	tests := []struct {
		name  string
		batch *domain.InventoryBatch
	}{
		{name: "nil batch", batch: nil},
		{name: "missing bank", batch: &domain.InventoryBatch{BloodType: domain.BloodTypeOPos, Quantity: 1}},
		{name: "bad blood type", batch: &domain.InventoryBatch{BloodBankID: "bb-1", BloodType: "C+", Quantity: 1}},
		{name: "negative quantity", batch: &domain.InventoryBatch{BloodBankID: "bb-1", BloodType: domain.BloodTypeOPos, Quantity: -1}},
		{name: "past expiry", batch: &domain.InventoryBatch{BloodBankID: "bb-1", BloodType: domain.BloodTypeOPos, Quantity: 1, ExpiryDate: &past}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.inventory.Register(ctx, tt.batch)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestInventoryDecrementAndRestore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	batch := env.seedBatch(t, "bb-1", domain.BloodTypeOPos, 2)

	updated, err := env.decrement(ctx, batch.ID, 2)
	require.NoError(t, err)
	assert.Zero(t, updated.Quantity)
	assert.Equal(t, domain.BatchUnavailable, updated.Status)

	_, err = env.decrement(ctx, batch.ID, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)

	restored, err := env.restore(ctx, batch.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Quantity)
	assert.Equal(t, domain.BatchAvailable, restored.Status)

	_, err = env.decrement(ctx, batch.ID, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInventoryExpireBatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	soon := testNow.Add(time.Hour)
	expiring, err := env.inventory.Register(ctx, &domain.InventoryBatch{
		BloodBankID: "bb-1",
		BloodType:   domain.BloodTypeBPos,
		Quantity:    3,
		ExpiryDate:  &soon,
	})
	require.NoError(t, err)
	fresh := env.seedBatch(t, "bb-1", domain.BloodTypeBPos, 3)

	expired, err := env.inventory.ExpireBatches(ctx, testNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	got, err := env.inventory.Get(ctx, expiring.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchExpired, got.Status)

	got, err = env.inventory.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchAvailable, got.Status)

	available, err := env.inventory.ListAvailable(ctx, "bb-1", domain.BloodTypeBPos)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, fresh.ID, available[0].ID)
}

func TestInventoryListRequiresBloodBank(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.inventory.List(ctx, domain.InventoryFilter{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.inventory.ListAvailable(ctx, "", domain.BloodTypeOPos)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.inventory.ListAvailable(ctx, "bb-1", "Z")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
