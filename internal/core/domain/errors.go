package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrCartLineNotFound = errors.New("cart line not found")

	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStaleWrite signals an optimistic-lock conflict; callers retry a
	// bounded number of times before surfacing it.
	ErrStaleWrite = errors.New("stale write")

	ErrUnknownShippingMethod = errors.New("unknown shipping method")
	ErrCurrencyMismatch      = errors.New("currency mismatch")
)

// InsufficientStockError wraps ErrInsufficientStock with the detail a caller
// needs for a user-facing message.
func InsufficientStockError(available, requested int) error {
	return fmt.Errorf("%w: %d available, %d requested", ErrInsufficientStock, available, requested)
}
