// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Ledger errors.
	ErrItemNotFound = errors.New("item not found in catalog")

	// Pipeline errors. These abort the whole order.
	ErrUnparseableOrder      = errors.New("order could not be parsed")
	ErrInventoryUnavailable  = errors.New("inventory ledger unavailable")
	ErrToolNotPermitted      = errors.New("operation not permitted for stage")
	ErrMissingItemProtection = errors.New("operation rejected for missing item")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// PricingGapError marks a per-item pricing lookup miss. The order continues
// without the item.
type PricingGapError struct {
	Item string
}

func (e *PricingGapError) Error() string {
	return fmt.Sprintf("no price available for %q", e.Item)
}

// InsufficientStockError marks a sale that would have driven stock negative.
// Reported on the response, not fatal.
type InsufficientStockError struct {
	Item     string
	Quantity int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock to sell %d of %q", e.Quantity, e.Item)
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
