package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
)

type AppointmentService interface {
	Create(ctx context.Context, appointment *domain.Appointment) (*domain.Appointment, error)
	Get(ctx context.Context, id string) (*domain.Appointment, error)
	ListByBloodBank(ctx context.Context, bloodBankID string, status *domain.AppointmentStatus) ([]domain.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status domain.AppointmentStatus) (*domain.Appointment, error)
	MarkMissed(ctx context.Context, id string) (*domain.Appointment, error)
}

type AppointmentHandler struct {
	service AppointmentService
}

func NewAppointmentHandler(service AppointmentService) (*AppointmentHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("appointment service is required")
	}
	return &AppointmentHandler{service: service}, nil
}

func RegisterAppointmentRoutes(router fiber.Router, service AppointmentService) error {
	h, err := NewAppointmentHandler(service)
	if err != nil {
		return err
	}

	router.Post("/appointments", h.CreateAppointment)
	router.Get("/appointments/bloodbank/:bankId", h.ListByBloodBank)
	router.Get("/appointments/:id", h.GetAppointment)
	router.Put("/appointments/:id/status", h.UpdateStatus)
	router.Post("/appointments/:id/mark-missed", h.MarkMissed)

	return nil
}

type createAppointmentRequest struct {
	DonorID             string  `json:"donorId"`
	BloodBankID         string  `json:"bloodBankId"`
	AppointmentDateTime string  `json:"appointmentDateTime"`
	Status              string  `json:"status"`
	BloodType           *string `json:"bloodType,omitempty"`
	Notes               string  `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type appointmentResponse struct {
	ID                  string    `json:"id"`
	DonorID             string    `json:"donorId"`
	BloodBankID         string    `json:"bloodBankId"`
	AppointmentDateTime time.Time `json:"appointmentDateTime"`
	Status              string    `json:"status"`
	BloodType           *string   `json:"bloodType,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func (h *AppointmentHandler) CreateAppointment(c *fiber.Ctx) error {
	var req createAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	appointment, err := requestToDomainAppointment(req)
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(c.UserContext(), &appointment)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toAppointmentResponse(created))
}

func (h *AppointmentHandler) GetAppointment(c *fiber.Ctx) error {
	appointment, err := h.service.Get(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toAppointmentResponse(appointment))
}

func (h *AppointmentHandler) ListByBloodBank(c *fiber.Ctx) error {
	var status *domain.AppointmentStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		parsed, err := domain.ParseAppointmentStatus(raw)
		if err != nil {
			return toHTTPError(err)
		}
		status = &parsed
	}

	appointments, err := h.service.ListByBloodBank(c.UserContext(), strings.TrimSpace(c.Params("bankId")), status)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]appointmentResponse, 0, len(appointments))
	for i := range appointments {
		responses = append(responses, toAppointmentResponse(&appointments[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *AppointmentHandler) UpdateStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	status, err := domain.ParseAppointmentStatus(req.Status)
	if err != nil {
		return toHTTPError(err)
	}

	updated, err := h.service.UpdateStatus(c.UserContext(), strings.TrimSpace(c.Params("id")), status)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toAppointmentResponse(updated))
}

func (h *AppointmentHandler) MarkMissed(c *fiber.Ctx) error {
	updated, err := h.service.MarkMissed(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toAppointmentResponse(updated))
}

func requestToDomainAppointment(req createAppointmentRequest) (domain.Appointment, error) {
	at, err := domain.ParseDate(req.AppointmentDateTime, "appointmentDateTime")
	if err != nil {
		return domain.Appointment{}, err
	}

	appointment := domain.Appointment{
		DonorID:             strings.TrimSpace(req.DonorID),
		BloodBankID:         strings.TrimSpace(req.BloodBankID),
		AppointmentDateTime: at,
		Notes:               req.Notes,
	}

	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, err := domain.ParseAppointmentStatus(raw)
		if err != nil {
			return domain.Appointment{}, err
		}
		appointment.Status = status
	}
	if req.BloodType != nil && strings.TrimSpace(*req.BloodType) != "" {
		bloodType, err := domain.ParseBloodType(*req.BloodType)
		if err != nil {
			return domain.Appointment{}, err
		}
		appointment.BloodType = &bloodType
	}

	return appointment, nil
}

func toAppointmentResponse(a *domain.Appointment) appointmentResponse {
	if a == nil {
		return appointmentResponse{}
	}

	resp := appointmentResponse{
		ID:                  a.ID,
		DonorID:             a.DonorID,
		BloodBankID:         a.BloodBankID,
		AppointmentDateTime: a.AppointmentDateTime,
		Status:              a.Status.String(),
		Notes:               a.Notes,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
	if a.BloodType != nil {
		value := a.BloodType.String()
		resp.BloodType = &value
	}
	return resp
}
