package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
)

type InventoryService interface {
	Register(ctx context.Context, batch *domain.InventoryBatch) (*domain.InventoryBatch, error)
	List(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryBatch, error)
	ListAvailable(ctx context.Context, bloodBankID string, bloodType domain.BloodType) ([]domain.InventoryBatch, error)
}

type InventoryHandler struct {
	service InventoryService
}

func NewInventoryHandler(service InventoryService) (*InventoryHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("inventory service is required")
	}
	return &InventoryHandler{service: service}, nil
}

func RegisterInventoryRoutes(router fiber.Router, service InventoryService) error {
	h, err := NewInventoryHandler(service)
	if err != nil {
		return err
	}

	router.Post("/inventory", h.RegisterBatch)
	router.Get("/inventory/bloodbank/:bankId/available", h.ListAvailable)
	router.Get("/inventory/bloodbank/:bankId", h.List)

	return nil
}

type registerBatchRequest struct {
	BloodBankID string  `json:"bloodBankId"`
	BloodType   string  `json:"bloodType"`
	Quantity    int     `json:"quantity"`
	Status      string  `json:"status"`
	ExpiryDate  *string `json:"expiryDate,omitempty"`
}

type batchResponse struct {
	ID          string     `json:"id"`
	BloodBankID string     `json:"bloodBankId"`
	BloodType   string     `json:"bloodType"`
	Quantity    int        `json:"quantity"`
	Status      string     `json:"status"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (h *InventoryHandler) RegisterBatch(c *fiber.Ctx) error {
	var req registerBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	bloodType, err := domain.ParseBloodType(req.BloodType)
	if err != nil {
		return toHTTPError(err)
	}
	batch := domain.InventoryBatch{
		BloodBankID: req.BloodBankID,
		BloodType:   bloodType,
		Quantity:    req.Quantity,
	}
	if strings.TrimSpace(req.Status) != "" {
		status, err := domain.ParseBatchStatus(req.Status)
		if err != nil {
			return toHTTPError(err)
		}
		batch.Status = status
	}
	if req.ExpiryDate != nil && strings.TrimSpace(*req.ExpiryDate) != "" {
		expiry, err := domain.ParseDate(*req.ExpiryDate, "expiryDate")
		if err != nil {
			return toHTTPError(err)
		}
		batch.ExpiryDate = &expiry
	}

	created, err := h.service.Register(c.UserContext(), &batch)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toBatchResponse(created))
}

func (h *InventoryHandler) List(c *fiber.Ctx) error {
	filter := domain.InventoryFilter{BloodBankID: strings.TrimSpace(c.Params("bankId"))}
	if raw := strings.TrimSpace(c.Query("bloodType")); raw != "" {
		bloodType, err := domain.ParseBloodType(raw)
		if err != nil {
			return toHTTPError(err)
		}
		filter.BloodType = &bloodType
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := domain.ParseBatchStatus(raw)
		if err != nil {
			return toHTTPError(err)
		}
		filter.Status = &status
	}

	batches, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": toBatchResponses(batches)})
}

func (h *InventoryHandler) ListAvailable(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Query("bloodType"))
	if raw == "" {
		return toHTTPError(fmt.Errorf("%w: bloodType query parameter is required", domain.ErrValidation))
	}
	bloodType, err := domain.ParseBloodType(raw)
	if err != nil {
		return toHTTPError(err)
	}

	batches, err := h.service.ListAvailable(c.UserContext(), strings.TrimSpace(c.Params("bankId")), bloodType)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": toBatchResponses(batches)})
}

func toBatchResponses(batches []domain.InventoryBatch) []batchResponse {
	responses := make([]batchResponse, 0, len(batches))
	for i := range batches {
		responses = append(responses, toBatchResponse(&batches[i]))
	}
	return responses
}

func toBatchResponse(b *domain.InventoryBatch) batchResponse {
	if b == nil {
		return batchResponse{}
	}
	return batchResponse{
		ID:          b.ID,
		BloodBankID: b.BloodBankID,
		BloodType:   b.BloodType.String(),
		Quantity:    b.Quantity,
		Status:      b.Status.String(),
		ExpiryDate:  b.ExpiryDate,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}
