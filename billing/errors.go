/*
errors.go - Centralized error types for the billing core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP statuses at the handler boundary:

    ValidationError / ErrValidation  -> 400
    Err*NotFound                     -> 404
    ErrDuplicate*, ErrCustomerHasHistory -> 409
    anything else                    -> 500 (message masked, logged)

USAGE:
  if errors.Is(err, billing.ErrBillNotFound) { ... }

  var verr *billing.ValidationError
  if errors.As(err, &verr) { ... }

SEE ALSO:
  - engine.go: Produces these errors
  - api/handlers.go: Maps them to HTTP responses
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the base of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrBillNotFound is returned when a referenced bill doesn't exist.
	ErrBillNotFound = errors.New("bill not found")

	// ErrPaymentNotFound is returned when a payment id doesn't resolve to a
	// credit transaction. A debit transaction is NOT a payment.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrTransactionNotFound is returned when a transaction doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrExpenseNotFound is returned when an expense id doesn't exist in any
	// category.
	ErrExpenseNotFound = errors.New("expense not found")

	// ErrDuplicateInvoiceNumber is returned when a bill's invoice number is
	// already taken. Uniqueness is enforced by the store.
	ErrDuplicateInvoiceNumber = errors.New("invoice number already exists")

	// ErrDuplicateCustomerName is returned when a customer name is already
	// taken. Uniqueness is enforced by the store.
	ErrDuplicateCustomerName = errors.New("customer name already exists")

	// ErrCustomerHasHistory is returned when deleting a customer that still
	// has a non-zero balance or any bills/transactions. Deleting such a
	// customer would orphan ledger records.
	ErrCustomerHasHistory = errors.New("customer has a balance or ledger history")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError reports a rejected input with a human-readable reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrBillNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrExpenseNotFound)
}

// IsConflict returns true if the error is a uniqueness or lifecycle conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateInvoiceNumber) ||
		errors.Is(err, ErrDuplicateCustomerName) ||
		errors.Is(err, ErrCustomerHasHistory)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || IsNotFound(err) || IsConflict(err)
}
