package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/service"
)

type PointsService interface {
	Statement(ctx context.Context, donorID string) (*service.PointsStatement, error)
}

type PointsHandler struct {
	service PointsService
}

func NewPointsHandler(service PointsService) (*PointsHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("points service is required")
	}
	return &PointsHandler{service: service}, nil
}

func RegisterPointsRoutes(router fiber.Router, service PointsService) error {
	h, err := NewPointsHandler(service)
	if err != nil {
		return err
	}
	router.Get("/donors/:donorId/points", h.GetPoints)
	return nil
}

type pointsEntryResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Points      int       `json:"points"`
	ReferenceID string    `json:"referenceId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type pointsResponse struct {
	DonorID string                `json:"donorId"`
	Balance int                   `json:"balance"`
	Entries []pointsEntryResponse `json:"entries"`
}

func (h *PointsHandler) GetPoints(c *fiber.Ctx) error {
	statement, err := h.service.Statement(c.UserContext(), strings.TrimSpace(c.Params("donorId")))
	if err != nil {
		return toHTTPError(err)
	}

	entries := make([]pointsEntryResponse, 0, len(statement.Entries))
	for _, e := range statement.Entries {
		entries = append(entries, pointsEntryResponse{
			ID:          e.ID,
			Kind:        e.Kind.String(),
			Points:      e.Points,
			ReferenceID: e.ReferenceID,
			CreatedAt:   e.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(pointsResponse{
		DonorID: statement.Account.DonorID,
		Balance: statement.Account.Balance,
		Entries: entries,
	})
}
