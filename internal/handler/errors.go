package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/transport"
)

// toHTTPError maps domain errors onto HTTP statuses and taxonomy codes.
// Anything unrecognized passes through and renders as a 500.
func toHTTPError(err error) error {
	retryable := domain.IsRetryable(err)

	switch {
	case errors.Is(err, domain.ErrValidation):
		return transport.NewError(fiber.StatusBadRequest, "validation_failed", err.Error(), false)
	case errors.Is(err, domain.ErrNotFound):
		return transport.NewError(fiber.StatusNotFound, "not_found", err.Error(), false)
	case errors.Is(err, domain.ErrInvalidTransition):
		return transport.NewError(fiber.StatusConflict, "invalid_transition", err.Error(), false)
	case errors.Is(err, domain.ErrConflict):
		return transport.NewError(fiber.StatusConflict, "conflict", err.Error(), retryable)
	case errors.Is(err, domain.ErrInsufficientInventory):
		return transport.NewError(fiber.StatusConflict, "insufficient_inventory", err.Error(), retryable)
	case errors.Is(err, domain.ErrInsufficientPoints):
		return transport.NewError(fiber.StatusConflict, "insufficient_points", err.Error(), false)
	case errors.Is(err, domain.ErrAlreadyRedeemed):
		return transport.NewError(fiber.StatusConflict, "already_redeemed", err.Error(), false)
	case errors.Is(err, domain.ErrExpired):
		return transport.NewError(fiber.StatusGone, "expired", err.Error(), false)
	default:
		return err
	}
}

func invalidBody() error {
	return toHTTPError(fmt.Errorf("%w: invalid request body", domain.ErrValidation))
}
