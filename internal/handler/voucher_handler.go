package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
)

type VoucherService interface {
	Issue(ctx context.Context, voucher *domain.Voucher) (*domain.Voucher, error)
	Get(ctx context.Context, id string) (*domain.Voucher, error)
	Validate(ctx context.Context, code string) (*domain.Voucher, error)
	Accept(ctx context.Context, id string, allocatedBatchID *string) (*domain.Voucher, error)
	MarkCompleted(ctx context.Context, id string) (*domain.Voucher, error)
	Reject(ctx context.Context, id string, reason string) (*domain.Voucher, error)
}

type VoucherHandler struct {
	service VoucherService
}

func NewVoucherHandler(service VoucherService) (*VoucherHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("voucher service is required")
	}
	return &VoucherHandler{service: service}, nil
}

// RegisterVoucherRoutes mounts voucher routes. validateLimit guards the
// public code lookup and may be nil.
func RegisterVoucherRoutes(router fiber.Router, service VoucherService, validateLimit fiber.Handler) error {
	h, err := NewVoucherHandler(service)
	if err != nil {
		return err
	}

	if validateLimit != nil {
		router.Get("/vouchers/validate/:code", validateLimit, h.ValidateCode)
	} else {
		router.Get("/vouchers/validate/:code", h.ValidateCode)
	}
	router.Post("/vouchers", h.IssueVoucher)
	router.Get("/vouchers/:id", h.GetVoucher)
	router.Post("/vouchers/:id/accept", h.Accept)
	router.Post("/vouchers/:id/complete", h.Complete)
	router.Post("/vouchers/:id/reject", h.Reject)

	return nil
}

type issueVoucherRequest struct {
	DonorID     string `json:"donorId"`
	RewardType  string `json:"rewardType"`
	RewardTitle string `json:"rewardTitle"`
	PointsCost  int    `json:"pointsCost"`
	ExpiryDate  string `json:"expiryDate"`
}

type acceptVoucherRequest struct {
	AllocatedBatchID *string `json:"allocatedBatchId,omitempty"`
}

type rejectVoucherRequest struct {
	Reason string `json:"reason"`
}

type voucherResponse struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"`
	DonorID          string     `json:"donorId"`
	RewardType       string     `json:"rewardType"`
	RewardTitle      string     `json:"rewardTitle"`
	PointsCost       int        `json:"pointsCost"`
	Status           string     `json:"status"`
	ExpiryDate       time.Time  `json:"expiryDate"`
	RedeemedDate     *time.Time `json:"redeemedDate,omitempty"`
	AllocatedBatchID *string    `json:"allocatedBatchId,omitempty"`
	RejectionReason  *string    `json:"rejectionReason,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (h *VoucherHandler) IssueVoucher(c *fiber.Ctx) error {
	var req issueVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	rewardType, err := domain.ParseRewardType(req.RewardType)
	if err != nil {
		return toHTTPError(err)
	}
	if strings.TrimSpace(req.ExpiryDate) == "" {
		return toHTTPError(fmt.Errorf("%w: expiryDate is required", domain.ErrValidation))
	}
	expiry, err := domain.ParseDate(req.ExpiryDate, "expiryDate")
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Issue(c.UserContext(), &domain.Voucher{
		DonorID:     req.DonorID,
		RewardType:  rewardType,
		RewardTitle: req.RewardTitle,
		PointsCost:  req.PointsCost,
		ExpiryDate:  expiry,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toVoucherResponse(created))
}

func (h *VoucherHandler) GetVoucher(c *fiber.Ctx) error {
	voucher, err := h.service.Get(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toVoucherResponse(voucher))
}

func (h *VoucherHandler) ValidateCode(c *fiber.Ctx) error {
	voucher, err := h.service.Validate(c.UserContext(), c.Params("code"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"valid":   true,
		"voucher": toVoucherResponse(voucher),
	})
}

func (h *VoucherHandler) Accept(c *fiber.Ctx) error {
	var req acceptVoucherRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody()
		}
	}

	voucher, err := h.service.Accept(c.UserContext(), strings.TrimSpace(c.Params("id")), req.AllocatedBatchID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toVoucherResponse(voucher))
}

func (h *VoucherHandler) Complete(c *fiber.Ctx) error {
	voucher, err := h.service.MarkCompleted(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toVoucherResponse(voucher))
}

func (h *VoucherHandler) Reject(c *fiber.Ctx) error {
	var req rejectVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	voucher, err := h.service.Reject(c.UserContext(), strings.TrimSpace(c.Params("id")), req.Reason)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toVoucherResponse(voucher))
}

func toVoucherResponse(v *domain.Voucher) voucherResponse {
	if v == nil {
		return voucherResponse{}
	}
	return voucherResponse{
		ID:               v.ID,
		Code:             v.Code,
		DonorID:          v.DonorID,
		RewardType:       v.RewardType.String(),
		RewardTitle:      v.RewardTitle,
		PointsCost:       v.PointsCost,
		Status:           v.Status.String(),
		ExpiryDate:       v.ExpiryDate,
		RedeemedDate:     v.RedeemedDate,
		AllocatedBatchID: v.AllocatedBatchID,
		RejectionReason:  v.RejectionReason,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}
