/*
Package billing provides the ledger consistency core of the billing system.

PURPOSE:
  This package contains the domain types and algorithms that keep a
  customer's running balance, their bill records, and their transaction
  records mutually consistent. Bills produce debit transactions, payments
  produce credit transactions, and the customer balance is the incrementally
  maintained sum of those effects.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer: The party being billed; carries the contended `Balance` field
  - Bill: An invoice with ordered line items and a recomputed grand total
  - Transaction: A ledger entry of type debit or credit
  - DateRange: A reporting window with uniform end-of-day-inclusive bounds

SIGN CONVENTION (single source of truth for all balance math):
  debit  -> value owed by the customer increases -> Balance -= Amount
  credit -> customer paid or was credited        -> Balance += Amount

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift
  2. Type Safety: Strong typing for IDs prevents mixing customer/bill IDs
  3. Recompute, don't patch: Bill totals are always derived from items
  4. Incremental balance: Balance is adjusted by deltas, never rebuilt,
     except by the statement projector which recomputes for display only

SEE ALSO:
  - calculator.go: Per-line and grand-total arithmetic
  - engine.go: Create/Update/Delete mutations with balance propagation
  - statement.go: Running-balance projection for display
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type BillID string
type TransactionID string
type CategoryID string
type ExpenseID string

// =============================================================================
// CUSTOMER
// =============================================================================

// Customer is a billed party.
//
// INVARIANT: After every successful mutation sequence,
//
//	Balance == sum(credit amounts) - sum(debit amounts)
//
// over this customer's transactions. The invariant is maintained
// incrementally by the Engine; the statement projector recomputes it from
// scratch for display and reconciliation only.
type Customer struct {
	ID        CustomerID
	Name      string // unique, enforced by the store
	Phone     string
	Address   string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time // refreshed on any write, including balance deltas
}

// =============================================================================
// BILL
// =============================================================================

// BillItem is a single line on a bill with its derived amounts.
type BillItem struct {
	ModelNumber string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	Discount    decimal.Decimal // percentage 0-100; zero means no discount
	NetAmount   decimal.Decimal // Rate minus discount
	TotalAmount decimal.Decimal // NetAmount * Quantity
}

// Bill is an invoice issued to a customer.
//
// INVARIANT: GrandTotal == round(sum of item TotalAmounts). The total is
// recomputed in full on every create/update, never patched incrementally.
type Bill struct {
	ID            BillID
	InvoiceNumber int64 // positive, unique
	CustomerID    CustomerID
	Date          time.Time
	Items         []BillItem
	GrandTotal    decimal.Decimal
	CreatedAt     time.Time
}

// =============================================================================
// TRANSACTION
// =============================================================================

type TransactionType string

const (
	TxDebit  TransactionType = "debit"  // bill issued: balance decreases
	TxCredit TransactionType = "credit" // payment received: balance increases
)

// Transaction is a single ledger entry for a customer.
//
// RelatedBillID is set only for bill-generated debits (1:1 link).
// InvoiceNumber is a denormalized copy of the bill's invoice number so the
// statement can render without a join; it is nullable because records
// written before the field existed lack it. Resolution order for display:
// direct field first, then join to Bills via RelatedBillID.
type Transaction struct {
	ID            TransactionID
	CustomerID    CustomerID
	Type          TransactionType
	Amount        decimal.Decimal // always positive; sign comes from Type
	Date          time.Time
	Description   string
	RelatedBillID BillID // empty unless bill-generated
	InvoiceNumber *int64
	CreatedAt     time.Time
}

// =============================================================================
// EXPENSES
// =============================================================================

// Expense is a single spend entry inside a category.
type Expense struct {
	ID          ExpenseID
	Description string
	Amount      decimal.Decimal
	Date        time.Time
	CreatedAt   time.Time
}

// ExpenseCategory groups expenses under a unique case-insensitive name.
type ExpenseCategory struct {
	ID        CategoryID
	Category  string
	Expenses  []Expense // ordered by insertion
	CreatedAt time.Time
}

// =============================================================================
// DATE RANGE - Uniform reporting window
// =============================================================================

// DateRange is a reporting window. All aggregators share one inclusivity
// policy: the window covers from the start of Start's day up to and
// including the whole of End's day.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Bounds returns the half-open [from, until) instants the range covers.
func (r DateRange) Bounds() (from, until time.Time) {
	return startOfDay(r.Start), startOfDay(r.End).AddDate(0, 0, 1)
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	from, until := r.Bounds()
	return !t.Before(from) && t.Before(until)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RoundCurrency rounds a decimal amount to the nearest whole currency unit,
// half away from zero. Applied to grand totals and statement display values.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}
