/*
store.go - Persistence interfaces for customers, bills, transactions, expenses

PURPOSE:
  Defines the interface between the billing core and the database. The store
  is an explicitly constructed, injected dependency with an
  application-managed lifecycle - never a hidden global connection cache.

KEY INTERFACES:
  CustomerStore:    Customer CRUD + the atomic balance primitive
  BillStore:        Bill CRUD + invoice number queries
  TransactionStore: Transaction CRUD + ledger queries
  ExpenseStore:     Category/expense persistence
  Store:            All of the above
  TxStore:          Store + WithTx for atomic multi-record mutations

BALANCE ADJUSTMENT CONTRACT:
  AdjustCustomerBalance(id, delta) is the ONLY way the balance field
  changes. Implementations must apply the delta and refresh UpdatedAt as a
  single serialized operation - callers never read-modify-write the balance
  themselves. Returns the new balance, or ErrCustomerNotFound.

ATOMIC MUTATIONS:
  WithTx(fn) runs fn against a transactional view of the store. If fn
  returns an error nothing is persisted. Every engine mutation that touches
  more than one record (bill + transaction + balance) runs inside WithTx so
  the ledger can never be left in a partially-written state.

ORDERING:
  ListTransactionsByCustomer returns transactions ordered by date ascending
  with insertion order as the tie-break. The statement projector depends on
  this being deterministic.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - billing/store: In-memory store for tests/dev

SEE ALSO:
  - engine.go: The only writer of bills/transactions/balances
*/
package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CUSTOMER STORE
// =============================================================================

type CustomerStore interface {
	// InsertCustomer persists a new customer.
	// Returns ErrDuplicateCustomerName if the name is taken.
	InsertCustomer(ctx context.Context, c *Customer) error

	// GetCustomer returns the customer or (nil, nil) when absent.
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)

	// ListCustomers returns all customers, newest first.
	ListCustomers(ctx context.Context) ([]Customer, error)

	// UpdateCustomer persists name/phone/address changes and refreshes
	// UpdatedAt. The balance field is ignored; use AdjustCustomerBalance.
	UpdateCustomer(ctx context.Context, c *Customer) error

	// DeleteCustomer removes the customer record.
	DeleteCustomer(ctx context.Context, id CustomerID) error

	// AdjustCustomerBalance applies delta to the stored balance as one
	// serialized operation and returns the new balance.
	AdjustCustomerBalance(ctx context.Context, id CustomerID, delta decimal.Decimal) (decimal.Decimal, error)
}

// =============================================================================
// BILL STORE
// =============================================================================

type BillStore interface {
	// InsertBill persists a new bill.
	// Returns ErrDuplicateInvoiceNumber if the invoice number is taken.
	InsertBill(ctx context.Context, b *Bill) error

	// GetBill returns the bill or (nil, nil) when absent.
	GetBill(ctx context.Context, id BillID) (*Bill, error)

	// UpdateBill replaces the bill's mutable fields (invoice number, items,
	// grand total, date) wholesale.
	UpdateBill(ctx context.Context, b *Bill) error

	// DeleteBill removes the bill record.
	DeleteBill(ctx context.Context, id BillID) error

	// LastInvoiceNumber returns the highest invoice number, or nil when no
	// bills exist.
	LastInvoiceNumber(ctx context.Context) (*int64, error)

	// CountBillsByCustomer returns how many bills reference the customer.
	CountBillsByCustomer(ctx context.Context, id CustomerID) (int, error)
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// TransactionFilter narrows ListTransactions. Nil fields match everything.
type TransactionFilter struct {
	CustomerID *CustomerID
	Type       *TransactionType
	Range      *DateRange
}

type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx *Transaction) error

	// GetTransaction returns the transaction or (nil, nil) when absent.
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)

	UpdateTransaction(ctx context.Context, tx *Transaction) error
	DeleteTransaction(ctx context.Context, id TransactionID) error

	// GetTransactionByBill returns the debit transaction linked to a bill,
	// or (nil, nil) when no linked transaction exists.
	GetTransactionByBill(ctx context.Context, billID BillID) (*Transaction, error)

	// ListTransactionsByCustomer returns the customer's full history ordered
	// by date ascending, insertion order as tie-break.
	ListTransactionsByCustomer(ctx context.Context, id CustomerID) ([]Transaction, error)

	// ListTransactions returns filtered transactions in the same order.
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)

	// CountTransactionsByCustomer returns how many transactions reference
	// the customer.
	CountTransactionsByCustomer(ctx context.Context, id CustomerID) (int, error)
}

// =============================================================================
// EXPENSE STORE
// =============================================================================

type ExpenseStore interface {
	// GetCategoryByName matches the category name case-insensitively and
	// returns (nil, nil) when absent. Expenses are loaded in insertion order.
	GetCategoryByName(ctx context.Context, name string) (*ExpenseCategory, error)

	// InsertCategory persists a new, empty category.
	InsertCategory(ctx context.Context, c *ExpenseCategory) error

	// AppendExpense adds an expense to an existing category.
	AppendExpense(ctx context.Context, categoryID CategoryID, e *Expense) error

	// ListCategories returns all categories with their expenses.
	ListCategories(ctx context.Context) ([]ExpenseCategory, error)

	// SearchCategories returns up to limit categories whose name starts with
	// prefix, case-insensitively. Expenses are not loaded.
	SearchCategories(ctx context.Context, prefix string, limit int) ([]ExpenseCategory, error)

	// DeleteExpense removes a single expense from whichever category holds
	// it. Returns ErrExpenseNotFound when no category does.
	DeleteExpense(ctx context.Context, id ExpenseID) error
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is the full persistence surface the engine depends on.
type Store interface {
	CustomerStore
	BillStore
	TransactionStore
	ExpenseStore
}

// TxStore wraps Store with transaction support.
//
// WithTx executes fn against a transactional view. If fn returns an error
// the transaction is rolled back and nothing is persisted; if fn returns
// nil it is committed. Implementations serialize concurrent WithTx calls.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
