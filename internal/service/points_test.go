package service

import (
	"context"
	"testing"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsAwardIsIdempotentPerReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	applied, err := env.award(ctx, "donor-1", 100, "appt-1")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = env.award(ctx, "donor-1", 100, "appt-1")
	require.NoError(t, err)
	assert.False(t, applied)

	assert.Equal(t, 100, env.balance(t, "donor-1"))
}

func TestPointsSpendNeverOverdraws(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.award(ctx, "donor-1", 40, "appt-1")
	require.NoError(t, err)

	_, err = env.spend(ctx, "donor-1", 50, "voucher-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientPoints)
	assert.Equal(t, 40, env.balance(t, "donor-1"))

	statement, err := env.points.Statement(ctx, "donor-1")
	require.NoError(t, err)
	assert.Len(t, statement.Entries, 1, "failed spend must not leave a ledger entry")
}

func TestPointsRefundCreditsSpendOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.award(ctx, "donor-1", 100, "appt-1")
	require.NoError(t, err)
	_, err = env.spend(ctx, "donor-1", 60, "voucher-1")
	require.NoError(t, err)
	assert.Equal(t, 40, env.balance(t, "donor-1"))

	refunded, err := env.refund(ctx, "donor-1", "voucher-1")
	require.NoError(t, err)
	assert.Equal(t, 60, refunded)
	assert.Equal(t, 100, env.balance(t, "donor-1"))

	refunded, err = env.refund(ctx, "donor-1", "voucher-1")
	require.NoError(t, err)
	assert.Zero(t, refunded)
	assert.Equal(t, 100, env.balance(t, "donor-1"))
}

func TestPointsRefundWithoutSpendIsNoop(t *testing.T) {
	env := newTestEnv(t)

	refunded, err := env.refund(context.Background(), "donor-1", "voucher-unknown")
	require.NoError(t, err)
	assert.Zero(t, refunded)
}

func TestPointsRefundRejectsForeignReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.award(ctx, "donor-1", 100, "appt-1")
	require.NoError(t, err)
	_, err = env.spend(ctx, "donor-1", 60, "voucher-1")
	require.NoError(t, err)

	_, err = env.refund(ctx, "donor-2", "voucher-1")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, env.balance(t, "donor-2"))
}

func TestPointsRejectsInvalidEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.award(ctx, "donor-1", 0, "appt-1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.award(ctx, " ", 10, "appt-1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.spend(ctx, "donor-1", 10, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.points.Balance(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPointsBalanceOfUnknownDonorIsZero(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, 0, env.balance(t, "nobody"))
}
