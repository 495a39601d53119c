package repository

import (
	"time"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
)

// AppointmentModel is the persistence model for the appointments table.
type AppointmentModel struct {
	ID                  string                   `gorm:"type:uuid;primaryKey"`
	DonorID             string                   `gorm:"type:varchar(64);not null;index"`
	BloodBankID         string                   `gorm:"type:varchar(64);not null"`
	AppointmentDateTime time.Time                `gorm:"not null"`
	Status              domain.AppointmentStatus `gorm:"type:varchar(20);not null"`
	BloodType           *domain.BloodType        `gorm:"type:varchar(3)"`
	Notes               string                   `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (AppointmentModel) TableName() string {
	return "appointments"
}

// HospitalRequestModel is the persistence model for hospital_requests.
type HospitalRequestModel struct {
	ID          string                     `gorm:"type:uuid;primaryKey"`
	HospitalID  string                     `gorm:"type:varchar(64);not null"`
	BloodBankID string                     `gorm:"type:varchar(64);not null"`
	RequestDate time.Time                  `gorm:"not null"`
	DateNeeded  time.Time                  `gorm:"not null"`
	Status      domain.RequestStatus       `gorm:"type:varchar(20);not null"`
	Notes       string                     `gorm:"type:text"`
	Items       []HospitalRequestItemModel `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (HospitalRequestModel) TableName() string {
	return "hospital_requests"
}

// HospitalRequestItemModel is one requested blood type of a hospital request.
type HospitalRequestItemModel struct {
	ID        uint             `gorm:"primaryKey"`
	RequestID string           `gorm:"type:uuid;not null;uniqueIndex:idx_request_items_request_type"`
	BloodType domain.BloodType `gorm:"type:varchar(3);not null;uniqueIndex:idx_request_items_request_type"`
	Units     int              `gorm:"not null"`
}

func (HospitalRequestItemModel) TableName() string {
	return "hospital_request_items"
}

// DeliveryModel is the persistence model for deliveries.
type DeliveryModel struct {
	ID            string                `gorm:"type:uuid;primaryKey"`
	RequestID     string                `gorm:"type:uuid;not null;uniqueIndex"`
	BloodBankID   string                `gorm:"type:varchar(64);not null"`
	HospitalID    string                `gorm:"type:varchar(64);not null"`
	ScheduledDate time.Time             `gorm:"not null"`
	EstimatedTime string                `gorm:"type:varchar(16);not null"`
	Status        domain.DeliveryStatus `gorm:"type:varchar(20);not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (DeliveryModel) TableName() string {
	return "deliveries"
}

// RequestAllocationModel is the persistence model for request_allocations.
type RequestAllocationModel struct {
	ID        string           `gorm:"type:uuid;primaryKey"`
	RequestID string           `gorm:"type:uuid;not null;index"`
	BatchID   string           `gorm:"type:uuid;not null"`
	BloodType domain.BloodType `gorm:"type:varchar(3);not null"`
	Units     int              `gorm:"not null"`
	CreatedAt time.Time
}

func (RequestAllocationModel) TableName() string {
	return "request_allocations"
}

// InventoryBatchModel is the persistence model for inventory_batches.
type InventoryBatchModel struct {
	ID          string             `gorm:"type:uuid;primaryKey"`
	BloodBankID string             `gorm:"type:varchar(64);not null"`
	BloodType   domain.BloodType   `gorm:"type:varchar(3);not null"`
	Quantity    int                `gorm:"not null;check:chk_inventory_quantity_non_negative,quantity >= 0"`
	Status      domain.BatchStatus `gorm:"type:varchar(20);not null"`
	ExpiryDate  *time.Time
	Version     int                `gorm:"not null;default:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (InventoryBatchModel) TableName() string {
	return "inventory_batches"
}

// VoucherModel is the persistence model for vouchers.
type VoucherModel struct {
	ID               string               `gorm:"type:uuid;primaryKey"`
	Code             string               `gorm:"type:varchar(32);not null;uniqueIndex"`
	DonorID          string               `gorm:"type:varchar(64);not null;index"`
	RewardType       domain.RewardType    `gorm:"type:varchar(32);not null"`
	RewardTitle      string               `gorm:"type:varchar(200);not null"`
	PointsCost       int                  `gorm:"not null"`
	Status           domain.VoucherStatus `gorm:"type:varchar(20);not null"`
	RedeemedDate     *time.Time
	ExpiryDate       time.Time            `gorm:"not null"`
	AllocatedBatchID *string              `gorm:"type:uuid"`
	RejectionReason  *string              `gorm:"type:varchar(500)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (VoucherModel) TableName() string {
	return "vouchers"
}

// PointsAccountModel is the persistence model for points_accounts.
type PointsAccountModel struct {
	DonorID   string `gorm:"type:varchar(64);primaryKey"`
	Balance   int    `gorm:"not null;default:0;check:chk_points_balance_non_negative,balance >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PointsAccountModel) TableName() string {
	return "points_accounts"
}

// PointsEntryModel is the persistence model for the append-only points_entries.
type PointsEntryModel struct {
	ID          string                 `gorm:"type:uuid;primaryKey"`
	DonorID     string                 `gorm:"type:varchar(64);not null;index"`
	Kind        domain.PointsEntryKind `gorm:"type:varchar(10);not null;uniqueIndex:idx_points_entries_kind_reference"`
	Points      int                    `gorm:"not null"`
	ReferenceID string                 `gorm:"type:varchar(64);not null;uniqueIndex:idx_points_entries_kind_reference"`
	CreatedAt   time.Time
}

func (PointsEntryModel) TableName() string {
	return "points_entries"
}

// OutboxEventModel is the persistence model for outbox_events.
type OutboxEventModel struct {
	ID            string              `gorm:"type:uuid;primaryKey"`
	EventType     domain.EventType    `gorm:"type:varchar(40);not null"`
	AggregateType string              `gorm:"type:varchar(32);not null"`
	AggregateID   string              `gorm:"type:varchar(64);not null;index"`
	Payload       []byte              `gorm:"not null"`
	Status        domain.OutboxStatus `gorm:"type:varchar(20);not null"`
	AttemptCount  int                 `gorm:"not null;default:0"`
	LastError     *string             `gorm:"type:text"`
	NextAttemptAt time.Time           `gorm:"not null"`
	PublishedAt   *time.Time
	CreatedAt     time.Time
}

func (OutboxEventModel) TableName() string {
	return "outbox_events"
}

// OutboxAttemptModel is the persistence model for outbox_attempts.
type OutboxAttemptModel struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	EventID       string  `gorm:"type:uuid;not null;index"`
	AttemptNumber int     `gorm:"not null"`
	Sink          string  `gorm:"type:varchar(20);not null"`
	StatusCode    *int    `gorm:"type:int"`
	ResponseBody  *string `gorm:"type:text"`
	Error         *string `gorm:"type:text"`
	CreatedAt     time.Time
}

func (OutboxAttemptModel) TableName() string {
	return "outbox_attempts"
}

func appointmentModelFromDomain(a *domain.Appointment) *AppointmentModel {
	if a == nil {
		return nil
	}

	return &AppointmentModel{
		ID:                  a.ID,
		DonorID:             a.DonorID,
		BloodBankID:         a.BloodBankID,
		AppointmentDateTime: a.AppointmentDateTime.UTC(),
		Status:              a.Status,
		BloodType:           a.BloodType,
		Notes:               a.Notes,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

func appointmentModelToDomain(m *AppointmentModel) *domain.Appointment {
	if m == nil {
		return nil
	}

	return &domain.Appointment{
		ID:                  m.ID,
		DonorID:             m.DonorID,
		BloodBankID:         m.BloodBankID,
		AppointmentDateTime: m.AppointmentDateTime.UTC(),
		Status:              m.Status,
		BloodType:           m.BloodType,
		Notes:               m.Notes,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func requestModelFromDomain(r *domain.HospitalRequest) *HospitalRequestModel {
	if r == nil {
		return nil
	}

	items := make([]HospitalRequestItemModel, 0, len(r.BloodItems))
	for _, item := range r.BloodItems {
		items = append(items, HospitalRequestItemModel{
			RequestID: r.ID,
			BloodType: item.BloodType,
			Units:     item.Units,
		})
	}

	return &HospitalRequestModel{
		ID:          r.ID,
		HospitalID:  r.HospitalID,
		BloodBankID: r.BloodBankID,
		RequestDate: r.RequestDate.UTC(),
		DateNeeded:  r.DateNeeded.UTC(),
		Status:      r.Status,
		Notes:       r.Notes,
		Items:       items,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func requestModelToDomain(m *HospitalRequestModel) *domain.HospitalRequest {
	if m == nil {
		return nil
	}

	items := make([]domain.BloodItem, 0, len(m.Items))
	for _, item := range m.Items {
		items = append(items, domain.BloodItem{BloodType: item.BloodType, Units: item.Units})
	}

	return &domain.HospitalRequest{
		ID:          m.ID,
		HospitalID:  m.HospitalID,
		BloodBankID: m.BloodBankID,
		BloodItems:  items,
		RequestDate: m.RequestDate.UTC(),
		DateNeeded:  m.DateNeeded.UTC(),
		Status:      m.Status,
		Notes:       m.Notes,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func deliveryModelFromDomain(d *domain.Delivery) *DeliveryModel {
	if d == nil {
		return nil
	}

	return &DeliveryModel{
		ID:            d.ID,
		RequestID:     d.RequestID,
		BloodBankID:   d.BloodBankID,
		HospitalID:    d.HospitalID,
		ScheduledDate: d.ScheduledDate.UTC(),
		EstimatedTime: d.EstimatedTime,
		Status:        d.Status,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func deliveryModelToDomain(m *DeliveryModel) *domain.Delivery {
	if m == nil {
		return nil
	}

	return &domain.Delivery{
		ID:            m.ID,
		RequestID:     m.RequestID,
		BloodBankID:   m.BloodBankID,
		HospitalID:    m.HospitalID,
		ScheduledDate: m.ScheduledDate.UTC(),
		EstimatedTime: m.EstimatedTime,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func allocationModelToDomain(m *RequestAllocationModel) *domain.RequestAllocation {
	if m == nil {
		return nil
	}

	return &domain.RequestAllocation{
		ID:        m.ID,
		RequestID: m.RequestID,
		BatchID:   m.BatchID,
		BloodType: m.BloodType,
		Units:     m.Units,
		CreatedAt: m.CreatedAt,
	}
}

func batchModelFromDomain(b *domain.InventoryBatch) *InventoryBatchModel {
	if b == nil {
		return nil
	}

	version := b.Version
	if version < 1 {
		version = 1
	}

	return &InventoryBatchModel{
		ID:          b.ID,
		BloodBankID: b.BloodBankID,
		BloodType:   b.BloodType,
		Quantity:    b.Quantity,
		Status:      b.Status,
		ExpiryDate:  utcPtr(b.ExpiryDate),
		Version:     version,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func batchModelToDomain(m *InventoryBatchModel) *domain.InventoryBatch {
	if m == nil {
		return nil
	}

	return &domain.InventoryBatch{
		ID:          m.ID,
		BloodBankID: m.BloodBankID,
		BloodType:   m.BloodType,
		Quantity:    m.Quantity,
		Status:      m.Status,
		ExpiryDate:  utcPtr(m.ExpiryDate),
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func voucherModelFromDomain(v *domain.Voucher) *VoucherModel {
	if v == nil {
		return nil
	}

	return &VoucherModel{
		ID:               v.ID,
		Code:             v.Code,
		DonorID:          v.DonorID,
		RewardType:       v.RewardType,
		RewardTitle:      v.RewardTitle,
		PointsCost:       v.PointsCost,
		Status:           v.Status,
		RedeemedDate:     utcPtr(v.RedeemedDate),
		ExpiryDate:       v.ExpiryDate.UTC(),
		AllocatedBatchID: v.AllocatedBatchID,
		RejectionReason:  v.RejectionReason,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}

func voucherModelToDomain(m *VoucherModel) *domain.Voucher {
	if m == nil {
		return nil
	}

	return &domain.Voucher{
		ID:               m.ID,
		Code:             m.Code,
		DonorID:          m.DonorID,
		RewardType:       m.RewardType,
		RewardTitle:      m.RewardTitle,
		PointsCost:       m.PointsCost,
		Status:           m.Status,
		RedeemedDate:     utcPtr(m.RedeemedDate),
		ExpiryDate:       m.ExpiryDate.UTC(),
		AllocatedBatchID: m.AllocatedBatchID,
		RejectionReason:  m.RejectionReason,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func pointsEntryModelToDomain(m *PointsEntryModel) *domain.PointsEntry {
	if m == nil {
		return nil
	}

	return &domain.PointsEntry{
		ID:          m.ID,
		DonorID:     m.DonorID,
		Kind:        m.Kind,
		Points:      m.Points,
		ReferenceID: m.ReferenceID,
		CreatedAt:   m.CreatedAt,
	}
}

func outboxModelFromDomain(e *domain.OutboxEvent) *OutboxEventModel {
	if e == nil {
		return nil
	}

	return &OutboxEventModel{
		ID:            e.ID,
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       []byte(e.Payload),
		Status:        e.Status,
		AttemptCount:  e.AttemptCount,
		LastError:     e.LastError,
		NextAttemptAt: e.NextAttemptAt.UTC(),
		PublishedAt:   utcPtr(e.PublishedAt),
		CreatedAt:     e.CreatedAt,
	}
}

func outboxModelToDomain(m *OutboxEventModel) *domain.OutboxEvent {
	if m == nil {
		return nil
	}

	return &domain.OutboxEvent{
		ID:            m.ID,
		EventType:     m.EventType,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		Payload:       m.Payload,
		Status:        m.Status,
		AttemptCount:  m.AttemptCount,
		LastError:     m.LastError,
		NextAttemptAt: m.NextAttemptAt.UTC(),
		PublishedAt:   utcPtr(m.PublishedAt),
		CreatedAt:     m.CreatedAt,
	}
}

func attemptModelFromDomain(a *domain.OutboxAttempt) *OutboxAttemptModel {
	if a == nil {
		return nil
	}

	return &OutboxAttemptModel{
		ID:            a.ID,
		EventID:       a.EventID,
		AttemptNumber: a.AttemptNumber,
		Sink:          a.Sink,
		StatusCode:    a.StatusCode,
		ResponseBody:  a.ResponseBody,
		Error:         a.Error,
		CreatedAt:     a.CreatedAt,
	}
}

func attemptModelToDomain(m *OutboxAttemptModel) *domain.OutboxAttempt {
	if m == nil {
		return nil
	}

	return &domain.OutboxAttempt{
		ID:            m.ID,
		EventID:       m.EventID,
		AttemptNumber: m.AttemptNumber,
		Sink:          m.Sink,
		StatusCode:    m.StatusCode,
		ResponseBody:  m.ResponseBody,
		Error:         m.Error,
		CreatedAt:     m.CreatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
