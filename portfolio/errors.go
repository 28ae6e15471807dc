/*
errors.go - Error types for the portfolio service

PURPOSE:
  Sentinels the API maps onto HTTP statuses, plus a structured error for
  the one business rule with numbers worth reporting (underpayment).

ERROR CATEGORIES:
  1. Not found - account lookups
  2. Conflicts - idempotency key reuse, second snapshot for a date
  3. Client errors - underpayment, closed accounts, engine argument errors

SEE ALSO:
  - engine/errors.go: ErrInvalidArgument for malformed engine input
  - api/handlers.go: statusFor maps these to HTTP codes
*/
package portfolio

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payoff-engine/engine"
	"github.com/warp/payoff-engine/fx"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountNotFound is returned when a referenced loan or card doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountClosed is returned when paying into a closed account.
	ErrAccountClosed = errors.New("account is closed")

	// ErrUnderpayment is returned when a payment would not cover accrued
	// penalty and interest.
	ErrUnderpayment = errors.New("payment does not cover accrued penalty and interest")

	// ErrDuplicatePayment is returned by repositories when an idempotency key
	// is reused. Retries of the same request surface as this error.
	ErrDuplicatePayment = errors.New("duplicate payment idempotency key")

	// ErrDuplicateSnapshot is returned when a snapshot already exists for the date.
	ErrDuplicateSnapshot = errors.New("snapshot already exists for date")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// UnderpaymentError reports how far short a payment fell.
type UnderpaymentError struct {
	Target   engine.AccountRef
	Amount   decimal.Decimal
	Required decimal.Decimal
}

func (e *UnderpaymentError) Error() string {
	return fmt.Sprintf("payment %s to %s %d is below accrued penalty and interest %s",
		e.Amount.StringFixed(2), e.Target.Kind, e.Target.ID, e.Required.StringFixed(2))
}

func (e *UnderpaymentError) Unwrap() error {
	return ErrUnderpayment
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnderpayment) ||
		errors.Is(err, ErrAccountClosed) ||
		errors.Is(err, engine.ErrInvalidArgument) ||
		errors.Is(err, fx.ErrRateUnavailable)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// IsConflict returns true if the write collided with existing data.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicatePayment) ||
		errors.Is(err, ErrDuplicateSnapshot)
}
