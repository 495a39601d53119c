package domain

import (
	"fmt"
	"strings"
	"time"
)

// AppointmentStatus represents the lifecycle state of a donor appointment.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "PENDING"
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentComplete  AppointmentStatus = "COMPLETE"
	AppointmentMissed    AppointmentStatus = "MISSED"
	AppointmentDeferred  AppointmentStatus = "DEFERRED"
)

// OpenAppointmentStatuses are the states an appointment may leave.
var OpenAppointmentStatuses = []AppointmentStatus{AppointmentPending, AppointmentScheduled}

func (s AppointmentStatus) String() string { return string(s) }

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentPending, AppointmentScheduled, AppointmentComplete, AppointmentMissed, AppointmentDeferred:
		return true
	}
	return false
}

func (s AppointmentStatus) IsOpen() bool {
	return s == AppointmentPending || s == AppointmentScheduled
}

func (s AppointmentStatus) IsTerminal() bool {
	return s.IsValid() && !s.IsOpen()
}

// ParseAppointmentStatus accepts any casing and the legacy "Completed" spelling.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	if normalized == "COMPLETED" {
		normalized = string(AppointmentComplete)
	}
	st := AppointmentStatus(normalized)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid appointment status %q", ErrValidation, s)
	}
	return st, nil
}

const MaxAppointmentNotes = 1000

// Appointment is a donor's booked donation slot at a blood bank.
type Appointment struct {
	ID                  string
	DonorID             string
	BloodBankID         string
	AppointmentDateTime time.Time
	Status              AppointmentStatus
	BloodType           *BloodType
	Notes               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (a *Appointment) Validate() error {
	if strings.TrimSpace(a.DonorID) == "" {
		return fmt.Errorf("%w: donorId is required", ErrValidation)
	}
	if strings.TrimSpace(a.BloodBankID) == "" {
		return fmt.Errorf("%w: bloodBankId is required", ErrValidation)
	}
	if a.AppointmentDateTime.IsZero() {
		return fmt.Errorf("%w: appointmentDateTime is required", ErrValidation)
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("%w: invalid appointment status %q", ErrValidation, a.Status)
	}
	if !a.Status.IsOpen() {
		return fmt.Errorf("%w: new appointments must be %s or %s", ErrValidation, AppointmentPending, AppointmentScheduled)
	}
	if a.BloodType != nil && !a.BloodType.IsValid() {
		return fmt.Errorf("%w: invalid blood type %q", ErrValidation, *a.BloodType)
	}
	if n := len([]rune(a.Notes)); n > MaxAppointmentNotes {
		return fmt.Errorf("%w: notes exceed %d characters (got %d)", ErrValidation, MaxAppointmentNotes, n)
	}
	return nil
}

// CheckAppointmentTransition reports whether from may move to to.
func CheckAppointmentTransition(from, to AppointmentStatus) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: appointment is already %s", ErrInvalidTransition, from)
	}
	switch to {
	case AppointmentScheduled:
		if from != AppointmentPending {
			return fmt.Errorf("%w: cannot schedule appointment in %s", ErrInvalidTransition, from)
		}
	case AppointmentComplete, AppointmentMissed, AppointmentDeferred:
	default:
		return fmt.Errorf("%w: cannot move appointment from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}
