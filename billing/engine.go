/*
engine.go - Ledger mutation engine

PURPOSE:
  The only writer of bills, ledger transactions, and customer balances.
  Each operation undoes the old effect and applies the new one so the
  balance invariant (balance == credits - debits) holds after every
  successful call:

    CreateBill:    insert bill + debit transaction, balance -= grandTotal
    UpdateBill:    replace items, sync transaction, balance += old - new
    DeleteBill:    remove bill + transaction,       balance += grandTotal
    CreatePayment: insert credit transaction,       balance += amount
    UpdatePayment: sync transaction,                balance += new - old
    DeletePayment: remove transaction,              balance -= amount

ATOMICITY:
  Every mutation runs inside Store.WithTx: either all of its writes commit
  or none do. There is no partial-failure state to compensate for and no
  retry logic.

CONCURRENCY:
  Balance changes go through AdjustCustomerBalance, a single serialized
  store primitive. Two concurrent mutations on the same customer cannot
  interleave a read-modify-write on the balance field.

ORPHANED BILLS:
  Updating or deleting a bill whose customer no longer exists still
  succeeds; the balance step is skipped and the returned balance is nil.
  Creating a bill or payment for a missing customer fails up front.

SEE ALSO:
  - calculator.go: Item and grand total arithmetic
  - statement.go: Read-side projection over the transactions this writes
  - store.go: WithTx and AdjustCustomerBalance contracts
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine executes ledger mutations against an injected transactional store.
type Engine struct {
	store TxStore
}

func NewEngine(store TxStore) *Engine {
	return &Engine{store: store}
}

// =============================================================================
// RESULTS
// =============================================================================

// BillMutation is the outcome of a bill create/update.
type BillMutation struct {
	Bill           *Bill
	Transaction    *Transaction // nil if the linked transaction was missing on update
	UpdatedBalance *decimal.Decimal
}

// PaymentMutation is the outcome of a payment or generic transaction write.
type PaymentMutation struct {
	Transaction    *Transaction
	UpdatedBalance decimal.Decimal
}

// =============================================================================
// BILL CREATE
// =============================================================================

// CreateBillInput carries the raw fields for a new bill. All are required
// and Items must be non-empty.
type CreateBillInput struct {
	InvoiceNumber int64
	CustomerID    CustomerID
	Items         []ItemInput
	Date          time.Time
}

// CreateBill inserts a bill, its linked debit transaction, and applies the
// debit to the customer balance, all in one store transaction.
func (e *Engine) CreateBill(ctx context.Context, in CreateBillInput) (*BillMutation, error) {
	if err := validateBillFields(in.InvoiceNumber, in.CustomerID, in.Items, in.Date); err != nil {
		return nil, err
	}

	items := ComputeItems(in.Items)
	grandTotal := ComputeGrandTotal(items)
	now := time.Now().UTC()

	result := &BillMutation{}
	err := e.store.WithTx(ctx, func(s Store) error {
		customer, err := s.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return ErrCustomerNotFound
		}

		bill := &Bill{
			ID:            BillID(uuid.NewString()),
			InvoiceNumber: in.InvoiceNumber,
			CustomerID:    in.CustomerID,
			Date:          in.Date,
			Items:         items,
			GrandTotal:    grandTotal,
			CreatedAt:     now,
		}
		if err := s.InsertBill(ctx, bill); err != nil {
			return err
		}

		invoiceNumber := in.InvoiceNumber
		tx := &Transaction{
			ID:            TransactionID(uuid.NewString()),
			CustomerID:    in.CustomerID,
			Type:          TxDebit,
			Amount:        grandTotal,
			Date:          in.Date,
			Description:   fmt.Sprintf("Bill Invoice #%d", in.InvoiceNumber),
			RelatedBillID: bill.ID,
			InvoiceNumber: &invoiceNumber,
			CreatedAt:     now,
		}
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}

		balance, err := s.AdjustCustomerBalance(ctx, in.CustomerID, grandTotal.Neg())
		if err != nil {
			return err
		}

		result.Bill = bill
		result.Transaction = tx
		result.UpdatedBalance = &balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// BILL UPDATE
// =============================================================================

// UpdateBillInput replaces a bill's items wholesale; invoice number and date
// change only when provided.
type UpdateBillInput struct {
	Items         []ItemInput
	InvoiceNumber *int64
	Date          *time.Time
}

// UpdateBill recomputes the bill from its new items, syncs the linked debit
// transaction, and applies the single invariant-preserving balance delta
// (oldGrandTotal - newGrandTotal). The delta form removes the old debit
// effect and applies the new one in one step, so no intermediate balance is
// ever persisted.
func (e *Engine) UpdateBill(ctx context.Context, id BillID, in UpdateBillInput) (*BillMutation, error) {
	if len(in.Items) == 0 {
		return nil, invalidf("items", "at least one item is required")
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	if in.InvoiceNumber != nil && *in.InvoiceNumber <= 0 {
		return nil, invalidf("invoiceNumber", "must be positive")
	}

	result := &BillMutation{}
	err := e.store.WithTx(ctx, func(s Store) error {
		bill, err := s.GetBill(ctx, id)
		if err != nil {
			return err
		}
		if bill == nil {
			return ErrBillNotFound
		}

		// Captured before the overwrite; the balance delta depends on it.
		oldGrandTotal := bill.GrandTotal

		items := ComputeItems(in.Items)
		newGrandTotal := ComputeGrandTotal(items)

		if in.InvoiceNumber != nil {
			bill.InvoiceNumber = *in.InvoiceNumber
		}
		bill.Items = items
		bill.GrandTotal = newGrandTotal
		if in.Date != nil {
			bill.Date = *in.Date
		}
		if err := s.UpdateBill(ctx, bill); err != nil {
			return err
		}

		tx, err := s.GetTransactionByBill(ctx, bill.ID)
		if err != nil {
			return err
		}
		if tx != nil {
			invoiceNumber := bill.InvoiceNumber
			tx.Amount = newGrandTotal
			tx.Description = fmt.Sprintf("Updated Bill Invoice #%d", bill.InvoiceNumber)
			tx.InvoiceNumber = &invoiceNumber
			if in.Date != nil {
				tx.Date = *in.Date
			}
			if err := s.UpdateTransaction(ctx, tx); err != nil {
				return err
			}
		}

		balance, err := s.AdjustCustomerBalance(ctx, bill.CustomerID, oldGrandTotal.Sub(newGrandTotal))
		switch {
		case errors.Is(err, ErrCustomerNotFound):
			// Orphaned bill: the edit stands, there is no balance to adjust.
		case err != nil:
			return err
		default:
			result.UpdatedBalance = &balance
		}

		result.Bill = bill
		result.Transaction = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// BILL DELETE
// =============================================================================

// DeleteBill removes the bill and its linked transaction and reverses the
// original debit. The reversal uses the grand total captured before the
// delete, not a re-read of the removed bill.
func (e *Engine) DeleteBill(ctx context.Context, id BillID) (*decimal.Decimal, error) {
	var updatedBalance *decimal.Decimal
	err := e.store.WithTx(ctx, func(s Store) error {
		bill, err := s.GetBill(ctx, id)
		if err != nil {
			return err
		}
		if bill == nil {
			return ErrBillNotFound
		}

		tx, err := s.GetTransactionByBill(ctx, bill.ID)
		if err != nil {
			return err
		}

		if err := s.DeleteBill(ctx, bill.ID); err != nil {
			return err
		}
		if tx != nil {
			if err := s.DeleteTransaction(ctx, tx.ID); err != nil {
				return err
			}
		}

		balance, err := s.AdjustCustomerBalance(ctx, bill.CustomerID, bill.GrandTotal)
		switch {
		case errors.Is(err, ErrCustomerNotFound):
			// Orphaned bill, nothing to reverse.
		case err != nil:
			return err
		default:
			updatedBalance = &balance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updatedBalance, nil
}

// =============================================================================
// PAYMENT CREATE
// =============================================================================

// CreatePaymentInput records money received from a customer.
type CreatePaymentInput struct {
	CustomerID  CustomerID
	Amount      decimal.Decimal
	Description string    // defaults to "Payment Received"
	Date        time.Time // defaults to now
}

// CreatePayment inserts a credit transaction and applies the credit to the
// customer balance.
func (e *Engine) CreatePayment(ctx context.Context, in CreatePaymentInput) (*PaymentMutation, error) {
	if in.CustomerID == "" {
		return nil, invalidf("customerId", "is required")
	}
	if !in.Amount.IsPositive() {
		return nil, invalidf("amount", "must be greater than zero")
	}
	if in.Description == "" {
		in.Description = "Payment Received"
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	result := &PaymentMutation{}
	err := e.store.WithTx(ctx, func(s Store) error {
		customer, err := s.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return ErrCustomerNotFound
		}

		tx := &Transaction{
			ID:          TransactionID(uuid.NewString()),
			CustomerID:  in.CustomerID,
			Type:        TxCredit,
			Amount:      in.Amount,
			Date:        in.Date,
			Description: in.Description,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}

		balance, err := s.AdjustCustomerBalance(ctx, in.CustomerID, in.Amount)
		if err != nil {
			return err
		}

		result.Transaction = tx
		result.UpdatedBalance = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// PAYMENT UPDATE
// =============================================================================

// UpdatePaymentInput changes a payment's amount and optionally its
// description and date.
type UpdatePaymentInput struct {
	Amount      decimal.Decimal
	Description *string
	Date        *time.Time
}

// UpdatePayment removes the old credit effect and applies the new one as a
// single balance increment of (new - old), then syncs the transaction.
func (e *Engine) UpdatePayment(ctx context.Context, id TransactionID, in UpdatePaymentInput) (*PaymentMutation, error) {
	if !in.Amount.IsPositive() {
		return nil, invalidf("amount", "must be greater than zero")
	}

	result := &PaymentMutation{}
	err := e.store.WithTx(ctx, func(s Store) error {
		payment, err := s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if payment == nil || payment.Type != TxCredit {
			return ErrPaymentNotFound
		}

		oldAmount := payment.Amount

		payment.Amount = in.Amount
		if in.Description != nil {
			payment.Description = *in.Description
		}
		if in.Date != nil {
			payment.Date = *in.Date
		}
		if err := s.UpdateTransaction(ctx, payment); err != nil {
			return err
		}

		balance, err := s.AdjustCustomerBalance(ctx, payment.CustomerID, in.Amount.Sub(oldAmount))
		if err != nil {
			return err
		}

		result.Transaction = payment
		result.UpdatedBalance = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// PAYMENT DELETE
// =============================================================================

// DeletePayment reverses the credit and removes the transaction.
func (e *Engine) DeletePayment(ctx context.Context, id TransactionID) error {
	return e.store.WithTx(ctx, func(s Store) error {
		payment, err := s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if payment == nil || payment.Type != TxCredit {
			return ErrPaymentNotFound
		}

		if _, err := s.AdjustCustomerBalance(ctx, payment.CustomerID, payment.Amount.Neg()); err != nil {
			return err
		}
		return s.DeleteTransaction(ctx, payment.ID)
	})
}

// =============================================================================
// GENERIC TRANSACTION CREATE
// =============================================================================

// CreateTransactionInput is the loose entry point for non-bill-driven ledger
// entries of either type.
type CreateTransactionInput struct {
	CustomerID    CustomerID
	Type          TransactionType
	Amount        decimal.Decimal
	Description   string
	RelatedBillID BillID
	Date          time.Time // defaults to now
}

// CreateTransaction inserts a ledger entry and applies the sign convention
// to the balance without creating or touching any bill.
func (e *Engine) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*PaymentMutation, error) {
	if in.CustomerID == "" {
		return nil, invalidf("customerId", "is required")
	}
	if in.Type != TxDebit && in.Type != TxCredit {
		return nil, invalidf("type", "must be debit or credit")
	}
	if !in.Amount.IsPositive() {
		return nil, invalidf("amount", "must be greater than zero")
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	result := &PaymentMutation{}
	err := e.store.WithTx(ctx, func(s Store) error {
		customer, err := s.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return ErrCustomerNotFound
		}

		tx := &Transaction{
			ID:            TransactionID(uuid.NewString()),
			CustomerID:    in.CustomerID,
			Type:          in.Type,
			Amount:        in.Amount,
			Date:          in.Date,
			Description:   in.Description,
			RelatedBillID: in.RelatedBillID,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}

		delta := in.Amount
		if in.Type == TxDebit {
			delta = delta.Neg()
		}
		balance, err := s.AdjustCustomerBalance(ctx, in.CustomerID, delta)
		if err != nil {
			return err
		}

		result.Transaction = tx
		result.UpdatedBalance = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// VALIDATION HELPERS
// =============================================================================

func validateBillFields(invoiceNumber int64, customerID CustomerID, items []ItemInput, date time.Time) error {
	if invoiceNumber <= 0 {
		return invalidf("invoiceNumber", "must be positive")
	}
	if customerID == "" {
		return invalidf("customerId", "is required")
	}
	if len(items) == 0 {
		return invalidf("items", "at least one item is required")
	}
	if date.IsZero() {
		return invalidf("date", "is required")
	}
	return validateItems(items)
}

func validateItems(items []ItemInput) error {
	for i, item := range items {
		if item.ModelNumber == "" {
			return invalidf(fmt.Sprintf("items[%d].modelNumber", i), "is required")
		}
		if !item.Quantity.IsPositive() {
			return invalidf(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
		if item.Rate.IsNegative() {
			return invalidf(fmt.Sprintf("items[%d].rate", i), "must not be negative")
		}
		if item.Discount.IsNegative() || item.Discount.GreaterThan(hundred) {
			return invalidf(fmt.Sprintf("items[%d].discount", i), "must be between 0 and 100")
		}
	}
	return nil
}
