package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store exposes every repository over one database handle. Repositories
// obtained from the Store passed to a WithinTx callback share its transaction.
type Store interface {
	Appointments() AppointmentRepository
	Requests() RequestRepository
	Inventory() InventoryRepository
	Vouchers() VoucherRepository
	Points() PointsRepository
	Outbox() OutboxRepository
	Attempts() AttemptRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Appointments() AppointmentRepository { return NewGormAppointmentRepo(s.db) }
func (s *GormStore) Requests() RequestRepository         { return NewGormRequestRepo(s.db) }
func (s *GormStore) Inventory() InventoryRepository      { return NewGormInventoryRepo(s.db) }
func (s *GormStore) Vouchers() VoucherRepository         { return NewGormVoucherRepo(s.db) }
func (s *GormStore) Points() PointsRepository            { return NewGormPointsRepo(s.db) }
func (s *GormStore) Outbox() OutboxRepository            { return NewGormOutboxRepo(s.db) }
func (s *GormStore) Attempts() AttemptRepository         { return NewGormAttemptRepo(s.db) }

// WithinTx runs fn in a single database transaction. Returning an error
// from fn rolls back every write made through tx.
func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
