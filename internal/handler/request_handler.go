package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/service"
)

type RequestService interface {
	Create(ctx context.Context, request *domain.HospitalRequest) (*domain.HospitalRequest, error)
	Get(ctx context.Context, id string) (*domain.HospitalRequest, error)
	ListByBloodBank(ctx context.Context, bloodBankID string, status *domain.RequestStatus) ([]domain.HospitalRequest, error)
	AdvanceRequest(ctx context.Context, requestID string, target domain.RequestStatus, schedule *service.DeliverySchedule) (*domain.HospitalRequest, error)
	Allocate(ctx context.Context, requestID string, batchID string, units int) (*domain.RequestAllocation, error)
	Allocations(ctx context.Context, requestID string) ([]domain.RequestAllocation, error)
	ApproveAndSchedule(ctx context.Context, requestID string, schedule service.DeliverySchedule) (*domain.Delivery, error)
	Advance(ctx context.Context, deliveryID string, target domain.DeliveryStatus) (*domain.Delivery, error)
	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
}

type RequestHandler struct {
	service RequestService
}

func NewRequestHandler(service RequestService) (*RequestHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("request service is required")
	}
	return &RequestHandler{service: service}, nil
}

// RegisterRequestRoutes mounts hospital request and delivery routes.
func RegisterRequestRoutes(router fiber.Router, service RequestService) error {
	h, err := NewRequestHandler(service)
	if err != nil {
		return err
	}

	router.Post("/hospital-requests", h.CreateRequest)
	router.Get("/hospital-requests/bloodbank/:bankId", h.ListByBloodBank)
	router.Get("/hospital-requests/:id", h.GetRequest)
	router.Put("/hospital-requests/:id/status", h.UpdateStatus)
	router.Post("/hospital-requests/:id/allocations", h.Allocate)
	router.Get("/hospital-requests/:id/allocations", h.ListAllocations)

	router.Post("/deliveries", h.CreateDelivery)
	router.Get("/deliveries/:id", h.GetDelivery)
	router.Put("/deliveries/:id/status", h.UpdateDeliveryStatus)

	return nil
}

type bloodItemPayload struct {
	BloodType string `json:"bloodType"`
	Units     int    `json:"units"`
}

type createRequestRequest struct {
	HospitalID  string             `json:"hospitalId"`
	BloodBankID string             `json:"bloodBankId"`
	BloodItems  []bloodItemPayload `json:"bloodItems"`
	RequestDate string             `json:"requestDate"`
	DateNeeded  string             `json:"dateNeeded"`
	Notes       string             `json:"notes"`
}

type updateRequestStatusRequest struct {
	Status        string `json:"status"`
	ScheduledDate string `json:"scheduledDate"`
	EstimatedTime string `json:"estimatedTime"`
}

type allocateRequest struct {
	BatchID string `json:"batchId"`
	Units   int    `json:"units"`
}

type createDeliveryRequest struct {
	RequestID     string `json:"requestId"`
	ScheduledDate string `json:"scheduledDate"`
	EstimatedTime string `json:"estimatedTime"`
}

type requestResponse struct {
	ID          string             `json:"id"`
	HospitalID  string             `json:"hospitalId"`
	BloodBankID string             `json:"bloodBankId"`
	BloodItems  []bloodItemPayload `json:"bloodItems"`
	RequestDate time.Time          `json:"requestDate"`
	DateNeeded  time.Time          `json:"dateNeeded"`
	Status      string             `json:"status"`
	Notes       string             `json:"notes,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type allocationResponse struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	BatchID   string    `json:"batchId"`
	BloodType string    `json:"bloodType"`
	Units     int       `json:"units"`
	CreatedAt time.Time `json:"createdAt"`
}

type deliveryResponse struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"requestId"`
	BloodBankID   string    `json:"bloodBankId"`
	HospitalID    string    `json:"hospitalId"`
	ScheduledDate time.Time `json:"scheduledDate"`
	EstimatedTime string    `json:"estimatedTime"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (h *RequestHandler) CreateRequest(c *fiber.Ctx) error {
	var req createRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	request, err := requestToDomainRequest(req)
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(c.UserContext(), &request)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toRequestResponse(created))
}

func (h *RequestHandler) GetRequest(c *fiber.Ctx) error {
	request, err := h.service.Get(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toRequestResponse(request))
}

func (h *RequestHandler) ListByBloodBank(c *fiber.Ctx) error {
	var status *domain.RequestStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		parsed, err := domain.ParseRequestStatus(raw)
		if err != nil {
			return toHTTPError(err)
		}
		status = &parsed
	}

	requests, err := h.service.ListByBloodBank(c.UserContext(), strings.TrimSpace(c.Params("bankId")), status)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]requestResponse, 0, len(requests))
	for i := range requests {
		responses = append(responses, toRequestResponse(&requests[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

// UpdateStatus moves a request forward. SCHEDULED needs the delivery
// schedule in the body; later stages advance the existing delivery.
func (h *RequestHandler) UpdateStatus(c *fiber.Ctx) error {
	var req updateRequestStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	status, err := domain.ParseRequestStatus(req.Status)
	if err != nil {
		return toHTTPError(err)
	}

	var schedule *service.DeliverySchedule
	if status == domain.RequestScheduled {
		parsed, err := parseSchedule(req.ScheduledDate, req.EstimatedTime)
		if err != nil {
			return toHTTPError(err)
		}
		schedule = &parsed
	}

	updated, err := h.service.AdvanceRequest(c.UserContext(), strings.TrimSpace(c.Params("id")), status, schedule)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toRequestResponse(updated))
}

func (h *RequestHandler) Allocate(c *fiber.Ctx) error {
	var req allocateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	allocation, err := h.service.Allocate(c.UserContext(), strings.TrimSpace(c.Params("id")), strings.TrimSpace(req.BatchID), req.Units)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toAllocationResponse(allocation))
}

func (h *RequestHandler) ListAllocations(c *fiber.Ctx) error {
	allocations, err := h.service.Allocations(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]allocationResponse, 0, len(allocations))
	for i := range allocations {
		responses = append(responses, toAllocationResponse(&allocations[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *RequestHandler) CreateDelivery(c *fiber.Ctx) error {
	var req createDeliveryRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	if strings.TrimSpace(req.RequestID) == "" {
		return toHTTPError(fmt.Errorf("%w: requestId is required", domain.ErrValidation))
	}
	schedule, err := parseSchedule(req.ScheduledDate, req.EstimatedTime)
	if err != nil {
		return toHTTPError(err)
	}

	delivery, err := h.service.ApproveAndSchedule(c.UserContext(), strings.TrimSpace(req.RequestID), schedule)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDeliveryResponse(delivery))
}

func (h *RequestHandler) GetDelivery(c *fiber.Ctx) error {
	delivery, err := h.service.GetDelivery(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toDeliveryResponse(delivery))
}

func (h *RequestHandler) UpdateDeliveryStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	status, err := domain.ParseDeliveryStatus(req.Status)
	if err != nil {
		return toHTTPError(err)
	}

	delivery, err := h.service.Advance(c.UserContext(), strings.TrimSpace(c.Params("id")), status)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toDeliveryResponse(delivery))
}

func parseSchedule(scheduledDate string, estimatedTime string) (service.DeliverySchedule, error) {
	if strings.TrimSpace(scheduledDate) == "" || strings.TrimSpace(estimatedTime) == "" {
		return service.DeliverySchedule{}, fmt.Errorf("%w: scheduledDate and estimatedTime are required", domain.ErrValidation)
	}
	date, err := domain.ParseDate(scheduledDate, "scheduledDate")
	if err != nil {
		return service.DeliverySchedule{}, err
	}
	return service.DeliverySchedule{ScheduledDate: date, EstimatedTime: estimatedTime}, nil
}

func requestToDomainRequest(req createRequestRequest) (domain.HospitalRequest, error) {
	items := make([]domain.BloodItem, 0, len(req.BloodItems))
	for _, item := range req.BloodItems {
		bloodType, err := domain.ParseBloodType(item.BloodType)
		if err != nil {
			return domain.HospitalRequest{}, err
		}
		items = append(items, domain.BloodItem{BloodType: bloodType, Units: item.Units})
	}

	if strings.TrimSpace(req.DateNeeded) == "" {
		return domain.HospitalRequest{}, fmt.Errorf("%w: dateNeeded is required", domain.ErrValidation)
	}
	dateNeeded, err := domain.ParseDate(req.DateNeeded, "dateNeeded")
	if err != nil {
		return domain.HospitalRequest{}, err
	}

	request := domain.HospitalRequest{
		HospitalID:  strings.TrimSpace(req.HospitalID),
		BloodBankID: strings.TrimSpace(req.BloodBankID),
		BloodItems:  items,
		DateNeeded:  dateNeeded,
		Notes:       req.Notes,
	}
	if strings.TrimSpace(req.RequestDate) != "" {
		requestDate, err := domain.ParseDate(req.RequestDate, "requestDate")
		if err != nil {
			return domain.HospitalRequest{}, err
		}
		request.RequestDate = requestDate
	}

	return request, nil
}

func toRequestResponse(r *domain.HospitalRequest) requestResponse {
	if r == nil {
		return requestResponse{}
	}

	items := make([]bloodItemPayload, 0, len(r.BloodItems))
	for _, item := range r.BloodItems {
		items = append(items, bloodItemPayload{BloodType: item.BloodType.String(), Units: item.Units})
	}

	return requestResponse{
		ID:          r.ID,
		HospitalID:  r.HospitalID,
		BloodBankID: r.BloodBankID,
		BloodItems:  items,
		RequestDate: r.RequestDate,
		DateNeeded:  r.DateNeeded,
		Status:      r.Status.String(),
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toAllocationResponse(a *domain.RequestAllocation) allocationResponse {
	if a == nil {
		return allocationResponse{}
	}
	return allocationResponse{
		ID:        a.ID,
		RequestID: a.RequestID,
		BatchID:   a.BatchID,
		BloodType: a.BloodType.String(),
		Units:     a.Units,
		CreatedAt: a.CreatedAt,
	}
}

func toDeliveryResponse(d *domain.Delivery) deliveryResponse {
	if d == nil {
		return deliveryResponse{}
	}
	return deliveryResponse{
		ID:            d.ID,
		RequestID:     d.RequestID,
		BloodBankID:   d.BloodBankID,
		HospitalID:    d.HospitalID,
		ScheduledDate: d.ScheduledDate,
		EstimatedTime: d.EstimatedTime,
		Status:        d.Status.String(),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}
