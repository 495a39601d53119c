package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchedule = DeliverySchedule{
	ScheduledDate: testNow.Add(24 * time.Hour),
	EstimatedTime: "2:30 pm",
}

func createRequest(t *testing.T, env *testEnv, items ...domain.BloodItem) *domain.HospitalRequest {
	t.Helper()

	request, err := env.requests.Create(context.Background(), &domain.HospitalRequest{
		HospitalID:  "hospital-1",
		BloodBankID: "bb-1",
		BloodItems:  items,
		DateNeeded:  testNow.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return request
}

func TestRequestCreate(t *testing.T) {
	env := newTestEnv(t)

	request := createRequest(t, env, domain.BloodItem{BloodType: domain.BloodTypeOPos, Units: 3})
	assert.Equal(t, domain.RequestPending, request.Status)
	assert.Equal(t, testNow, request.RequestDate)
	assert.Equal(t, []domain.EventType{domain.EventRequestCreated}, env.eventTypes(t, request.ID))

	_, err := env.requests.Create(context.Background(), &domain.HospitalRequest{
		HospitalID:  "hospital-1",
		BloodBankID: "bb-1",
		DateNeeded:  testNow,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRequestApproveCreatesSingleDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := createRequest(t, env, domain.BloodItem{BloodType: domain.BloodTypeOPos, Units: 3})

	delivery, err := env.requests.ApproveAndSchedule(ctx, request.ID, testSchedule)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryScheduled, delivery.Status)
	assert.Equal(t, "2:30 PM", delivery.EstimatedTime)
	assert.Equal(t, request.HospitalID, delivery.HospitalID)

	_, err = env.requests.ApproveAndSchedule(ctx, request.ID, testSchedule)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := env.requests.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestScheduled, got.Status)

	byRequest, err := env.store.Requests().GetDeliveryByRequestID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.ID, byRequest.ID)

	assert.ElementsMatch(t,
		[]domain.EventType{domain.EventRequestCreated, domain.EventRequestScheduled},
		env.eventTypes(t, request.ID),
	)
}

func TestRequestApproveValidatesSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := createRequest(t, env, domain.BloodItem{BloodType: domain.BloodTypeOPos, Units: 1})

	_, err := env.requests.ApproveAndSchedule(ctx, request.ID, DeliverySchedule{EstimatedTime: "10:00"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.requests.ApproveAndSchedule(ctx, request.ID, DeliverySchedule{
		ScheduledDate: testNow,
		EstimatedTime: "quarter past",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.requests.ApproveAndSchedule(ctx, "missing", testSchedule)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveryAdvancesOneStepAtATime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := createRequest(t, env, domain.BloodItem{BloodType: domain.BloodTypeOPos, Units: 1})
	delivery, err := env.requests.ApproveAndSchedule(ctx, request.ID, testSchedule)
	require.NoError(t, err)

	_, err = env.requests.Advance(ctx, delivery.ID, domain.DeliveryComplete)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	inTransit, err := env.requests.Advance(ctx, delivery.ID, domain.DeliveryInTransit)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryInTransit, inTransit.Status)

	got, err := env.requests.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestInTransit, got.Status)

	_, err = env.requests.Advance(ctx, delivery.ID, domain.DeliveryScheduled)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	complete, err := env.requests.Advance(ctx, delivery.ID, domain.DeliveryComplete)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryComplete, complete.Status)

	got, err = env.requests.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestComplete, got.Status)

	_, err = env.requests.Advance(ctx, delivery.ID, domain.DeliveryComplete)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Contains(t, env.eventTypes(t, request.ID), domain.EventRequestCompleted)
	assert.Equal(t,
		[]domain.EventType{domain.EventDeliveryStatus, domain.EventDeliveryStatus},
		env.eventTypes(t, delivery.ID),
	)
}

func TestRequestAdvanceRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := createRequest(t, env, domain.BloodItem{BloodType: domain.BloodTypeAPos, Units: 2})

	_, err := env.requests.AdvanceRequest(ctx, request.ID, domain.RequestInTransit, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.requests.AdvanceRequest(ctx, request.ID, domain.RequestScheduled, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	scheduled, err := env.requests.AdvanceRequest(ctx, request.ID, domain.RequestScheduled, &testSchedule)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestScheduled, scheduled.Status)

	_, err = env.requests.AdvanceRequest(ctx, request.ID, domain.RequestComplete, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	inTransit, err := env.requests.AdvanceRequest(ctx, request.ID, domain.RequestInTransit, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestInTransit, inTransit.Status)

	_, err = env.requests.AdvanceRequest(ctx, request.ID, domain.RequestPending, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.requests.AdvanceRequest(ctx, "missing", domain.RequestInTransit, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestAllocateStaysWithinRequestedUnits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := createRequest(t, env, domain.BloodItem{BloodType: domain.BloodTypeOPos, Units: 3})
	batch := env.seedBatch(t, "bb-1", domain.BloodTypeOPos, 10)

	allocation, err := env.requests.Allocate(ctx, request.ID, batch.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.BloodTypeOPos, allocation.BloodType)

	_, err = env.requests.Allocate(ctx, request.ID, batch.ID, 2)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.requests.Allocate(ctx, request.ID, batch.ID, 1)
	require.NoError(t, err)

	got, err := env.inventory.Get(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Quantity)

	allocations, err := env.requests.Allocations(ctx, request.ID)
	require.NoError(t, err)
	assert.Len(t, allocations, 2)
	assert.Contains(t, env.eventTypes(t, request.ID), domain.EventRequestAllocated)
}

func TestRequestAllocateRejectsMismatchedBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := createRequest(t, env, domain.BloodItem{BloodType: domain.BloodTypeOPos, Units: 3})

	wrongType := env.seedBatch(t, "bb-1", domain.BloodTypeAPos, 5)
	_, err := env.requests.Allocate(ctx, request.ID, wrongType.ID, 1)
	assert.ErrorIs(t, err, domain.ErrValidation)

	otherBank := env.seedBatch(t, "bb-2", domain.BloodTypeOPos, 5)
	_, err = env.requests.Allocate(ctx, request.ID, otherBank.ID, 1)
	assert.ErrorIs(t, err, domain.ErrValidation)

	small := env.seedBatch(t, "bb-1", domain.BloodTypeOPos, 1)
	_, err = env.requests.Allocate(ctx, request.ID, small.ID, 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)

	want := map[string]int{wrongType.ID: 5, otherBank.ID: 5, small.ID: 1}
	for id, quantity := range want {
		got, err := env.inventory.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, quantity, got.Quantity, "batch %s", id)
	}

	allocations, err := env.requests.Allocations(ctx, request.ID)
	require.NoError(t, err)
	assert.Empty(t, allocations)
}

func TestRequestAllocateRejectsCompletedRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := createRequest(t, env, domain.BloodItem{BloodType: domain.BloodTypeOPos, Units: 3})
	batch := env.seedBatch(t, "bb-1", domain.BloodTypeOPos, 5)

	_, err := env.requests.AdvanceRequest(ctx, request.ID, domain.RequestScheduled, &testSchedule)
	require.NoError(t, err)
	_, err = env.requests.AdvanceRequest(ctx, request.ID, domain.RequestInTransit, nil)
	require.NoError(t, err)

	_, err = env.requests.Allocate(ctx, request.ID, batch.ID, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRequestApproveRollsBackWhenHalfFails(t *testing.T) {
	tests := []struct {
		name string
		repo func(repository.RequestRepository) repository.RequestRepository
	}{
		{
			name: "delivery insert fails",
			repo: func(r repository.RequestRepository) repository.RequestRepository {
				return faultyRequestRepo{RequestRepository: r, createDeliveryErr: errors.New("insert failed")}
			},
		},
		{
			name: "status update fails after delivery insert",
			repo: func(r repository.RequestRepository) repository.RequestRepository {
				return faultyRequestRepo{RequestRepository: r, transitionErr: errors.New("update failed")}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			request := createRequest(t, env, domain.BloodItem{BloodType: domain.BloodTypeOPos, Units: 2})

			env.requests.store = &faultyStore{Store: env.store, requests: tt.repo}

			_, err := env.requests.ApproveAndSchedule(ctx, request.ID, testSchedule)
			require.Error(t, err)

			got, err := env.store.Requests().GetByID(ctx, request.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.RequestPending, got.Status)

			_, err = env.store.Requests().GetDeliveryByRequestID(ctx, request.ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			assert.NotContains(t, env.eventTypes(t, request.ID), domain.EventRequestScheduled)

			env.requests.store = env.store
			delivery, err := env.requests.ApproveAndSchedule(ctx, request.ID, testSchedule)
			require.NoError(t, err)
			assert.Equal(t, request.ID, delivery.RequestID)
		})
	}
}

func TestRequestAllocateRejectsExpiredBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := createRequest(t, env, domain.BloodItem{BloodType: domain.BloodTypeOPos, Units: 2})
	batch := env.seedBatch(t, "bb-1", domain.BloodTypeOPos, 5)

	env.setNow(testNow.Add(31 * 24 * time.Hour))

	_, err := env.requests.Allocate(ctx, request.ID, batch.ID, 1)
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)
	assert.Contains(t, err.Error(), "cannot supply")

	got, err := env.inventory.Get(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
}
