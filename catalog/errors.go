/*
errors.go - Centralized error types for the catalog and purchase engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Other packages wrap these with additional context via fmt.Errorf("%w").

ERROR CATEGORIES:
  1. Validation errors - Bad input, unknown offers, closed windows
  2. Business outcomes - Insufficient funds (a denial, not a failure)
  3. Transient errors - Storage/network failures that are safe to retry

USAGE:
  if errors.Is(err, catalog.ErrNotFound) {
      // offer was deleted or never existed
  }
*/
package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced offer doesn't exist,
	// including reads that follow a delete.
	ErrNotFound = errors.New("offer not found")

	// ErrInvalidArgument is returned for malformed input: empty required
	// sets, bad payloads, non-JSON properties.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfWindow is returned when a purchase is attempted outside the
	// offer's time validity window.
	ErrOutOfWindow = errors.New("offer not available at this time")

	// ErrInsufficientFunds is returned by ledger debits that would take a
	// balance negative. The purchase engine converts it into a denied
	// receipt; it never surfaces to API callers as an error.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransient is returned for storage failures that are safe to retry.
	// Purchase transactions roll back fully before surfacing it.
	ErrTransient = errors.New("transient storage failure")
)

func invalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError details a balance shortage on one currency.
type InsufficientFundsError struct {
	UserID     string
	CurrencyID string
	Available  decimal.Decimal
	Required   decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: currency %s has %s, needs %s",
		e.CurrencyID, e.Available, e.Required)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing offer.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRetryable reports whether the error might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrTransient) }

// IsClientError reports whether the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOutOfWindow)
}
