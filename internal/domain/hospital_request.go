package domain

import (
	"fmt"
	"strings"
	"time"
)

// RequestStatus represents the lifecycle state of a hospital blood request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestScheduled RequestStatus = "SCHEDULED"
	RequestInTransit RequestStatus = "IN_TRANSIT"
	RequestComplete  RequestStatus = "COMPLETE"
)

func (s RequestStatus) String() string { return string(s) }

func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestPending, RequestScheduled, RequestInTransit, RequestComplete:
		return true
	}
	return false
}

// ParseRequestStatus accepts any casing and "IN TRANSIT"/"IN-TRANSIT".
func ParseRequestStatus(s string) (RequestStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	if normalized == "COMPLETED" {
		normalized = string(RequestComplete)
	}
	st := RequestStatus(normalized)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid request status %q", ErrValidation, s)
	}
	return st, nil
}

// DeliveryStatus represents the lifecycle state of a delivery.
type DeliveryStatus string

const (
	DeliveryScheduled DeliveryStatus = "SCHEDULED"
	DeliveryInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryComplete  DeliveryStatus = "COMPLETE"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryScheduled, DeliveryInTransit, DeliveryComplete:
		return true
	}
	return false
}

// Next returns the only status a delivery may move to from s.
func (s DeliveryStatus) Next() (DeliveryStatus, bool) {
	switch s {
	case DeliveryScheduled:
		return DeliveryInTransit, true
	case DeliveryInTransit:
		return DeliveryComplete, true
	}
	return "", false
}

// RequestStatus is the request status mirrored by a delivery in status s.
func (s DeliveryStatus) RequestStatus() RequestStatus {
	switch s {
	case DeliveryInTransit:
		return RequestInTransit
	case DeliveryComplete:
		return RequestComplete
	default:
		return RequestScheduled
	}
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	if normalized == "COMPLETED" {
		normalized = string(DeliveryComplete)
	}
	st := DeliveryStatus(normalized)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// BloodItem is one line of a hospital request.
type BloodItem struct {
	BloodType BloodType
	Units     int
}

// HospitalRequest asks a blood bank for one or more blood types.
type HospitalRequest struct {
	ID          string
	HospitalID  string
	BloodBankID string
	BloodItems  []BloodItem
	RequestDate time.Time
	DateNeeded  time.Time
	Status      RequestStatus
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *HospitalRequest) Validate() error {
	if strings.TrimSpace(r.HospitalID) == "" {
		return fmt.Errorf("%w: hospitalId is required", ErrValidation)
	}
	if strings.TrimSpace(r.BloodBankID) == "" {
		return fmt.Errorf("%w: bloodBankId is required", ErrValidation)
	}
	if len(r.BloodItems) == 0 {
		return fmt.Errorf("%w: bloodItems must not be empty", ErrValidation)
	}
	seen := make(map[BloodType]struct{}, len(r.BloodItems))
	for _, item := range r.BloodItems {
		if !item.BloodType.IsValid() {
			return fmt.Errorf("%w: invalid blood type %q", ErrValidation, item.BloodType)
		}
		if item.Units < 1 {
			return fmt.Errorf("%w: units for %s must be at least 1", ErrValidation, item.BloodType)
		}
		if _, dup := seen[item.BloodType]; dup {
			return fmt.Errorf("%w: blood type %s listed more than once", ErrValidation, item.BloodType)
		}
		seen[item.BloodType] = struct{}{}
	}
	if r.DateNeeded.IsZero() {
		return fmt.Errorf("%w: dateNeeded is required", ErrValidation)
	}
	if !r.RequestDate.IsZero() && r.DateNeeded.Before(truncateDay(r.RequestDate)) {
		return fmt.Errorf("%w: dateNeeded is before requestDate", ErrValidation)
	}
	return nil
}

// UnitsFor returns the requested units of bloodType, or zero.
func (r *HospitalRequest) UnitsFor(bloodType BloodType) int {
	for _, item := range r.BloodItems {
		if item.BloodType == bloodType {
			return item.Units
		}
	}
	return 0
}

// Delivery is the shipment fulfilling an approved hospital request.
type Delivery struct {
	ID            string
	RequestID     string
	BloodBankID   string
	HospitalID    string
	ScheduledDate time.Time
	EstimatedTime string
	Status        DeliveryStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var estimatedTimeLayouts = []string{"3:04 PM", "03:04 PM", "15:04"}

// ParseEstimatedTime validates a clock time such as "2:30 PM" or "14:30" and
// returns it in canonical "3:04 PM" form.
func ParseEstimatedTime(s string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range estimatedTimeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("3:04 PM"), nil
		}
	}
	return "", fmt.Errorf("%w: invalid estimatedTime %q", ErrValidation, s)
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseDate accepts an RFC 3339 instant or a calendar date and returns UTC.
func ParseDate(s string, field string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD or RFC3339", ErrValidation, field)
}

// RequestAllocation records inventory units a bank has set aside for a request.
type RequestAllocation struct {
	ID        string
	RequestID string
	BatchID   string
	BloodType BloodType
	Units     int
	CreatedAt time.Time
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
