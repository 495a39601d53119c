package service

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/lock"
	"github.com/kursadbilgin/bloodbank-workflow/internal/provider"
	"github.com/kursadbilgin/bloodbank-workflow/internal/queue"
	"github.com/kursadbilgin/bloodbank-workflow/internal/ratelimit"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
)

type fakeProvider struct {
	mu     sync.Mutex
	sent   []domain.OutboxEvent
	sendFn func(ctx context.Context, event domain.OutboxEvent) (*provider.ProviderResponse, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Send(ctx context.Context, event domain.OutboxEvent) (*provider.ProviderResponse, error) {
	f.mu.Lock()
	f.sent = append(f.sent, event)
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, event)
	}
	return &provider.ProviderResponse{StatusCode: 202, MessageID: event.ID}, nil
}

func (f *fakeProvider) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var _ provider.Provider = (*fakeProvider)(nil)

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, key string) (bool, error)
	waitFn  func(ctx context.Context, key string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, key)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, key string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, key)
	}
	return nil
}

var _ ratelimit.RateLimiter = (*fakeRateLimiter)(nil)

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queue string, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	keys []string
	held bool
}

func (f *fakeLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	held := f.held
	f.mu.Unlock()

	if held {
		return lock.ErrNotAcquired
	}
	return fn(ctx)
}

var _ lock.Locker = (*fakeLocker)(nil)

// faultyStore wraps a real store and swaps in failing repositories, including
// inside transactions, so a workflow can be broken halfway through.
type faultyStore struct {
	repository.Store
	appointments func(repository.AppointmentRepository) repository.AppointmentRepository
	points       func(repository.PointsRepository) repository.PointsRepository
	requests     func(repository.RequestRepository) repository.RequestRepository
}

func (s *faultyStore) Appointments() repository.AppointmentRepository {
	if s.appointments != nil {
		return s.appointments(s.Store.Appointments())
	}
	return s.Store.Appointments()
}

func (s *faultyStore) Points() repository.PointsRepository {
	if s.points != nil {
		return s.points(s.Store.Points())
	}
	return s.Store.Points()
}

func (s *faultyStore) Requests() repository.RequestRepository {
	if s.requests != nil {
		return s.requests(s.Store.Requests())
	}
	return s.Store.Requests()
}

func (s *faultyStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(&faultyStore{
			Store:        tx,
			appointments: s.appointments,
			points:       s.points,
			requests:     s.requests,
		})
	})
}

type faultyPointsRepo struct {
	repository.PointsRepository
	creditErr error
}

func (r faultyPointsRepo) Credit(ctx context.Context, donorID string, points int, at time.Time) error {
	if r.creditErr != nil {
		return r.creditErr
	}
	return r.PointsRepository.Credit(ctx, donorID, points, at)
}

type faultyRequestRepo struct {
	repository.RequestRepository
	createDeliveryErr error
	transitionErr     error
}

func (r faultyRequestRepo) CreateDelivery(ctx context.Context, d *domain.Delivery) error {
	if r.createDeliveryErr != nil {
		return r.createDeliveryErr
	}
	return r.RequestRepository.CreateDelivery(ctx, d)
}

func (r faultyRequestRepo) TransitionStatus(
	ctx context.Context,
	id string,
	from domain.RequestStatus,
	to domain.RequestStatus,
	at time.Time,
) error {
	if r.transitionErr != nil {
		return r.transitionErr
	}
	return r.RequestRepository.TransitionStatus(ctx, id, from, to, at)
}

type faultyAppointmentRepo struct {
	repository.AppointmentRepository
	failIDs map[string]error
}

func (r faultyAppointmentRepo) TransitionStatus(
	ctx context.Context,
	id string,
	from []domain.AppointmentStatus,
	to domain.AppointmentStatus,
	at time.Time,
) error {
	if err, ok := r.failIDs[id]; ok {
		return err
	}
	return r.AppointmentRepository.TransitionStatus(ctx, id, from, to, at)
}
