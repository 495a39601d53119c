package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrValidation            = errors.New("validation failed")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrConflict              = errors.New("concurrent modification")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInsufficientPoints    = errors.New("insufficient points")
	ErrExpired               = errors.New("expired")
	ErrAlreadyRedeemed       = errors.New("already redeemed")
)

// IsRetryable reports whether the caller may retry the same operation
// after re-reading state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrInsufficientInventory)
}
