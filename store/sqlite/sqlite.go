/*
Package sqlite provides the SQLite-backed implementation of billing.TxStore.

PURPOSE:
  Production persistence for customers, bills, transactions, and expenses.
  The same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  customers:          Balance holders; name is unique
  bills:              Invoices; invoice_number is unique, items stored as JSON
  transactions:       The ledger; debit/credit entries per customer
  expense_categories: Unique case-insensitive category names
  expenses:           Child rows of a category (ON DELETE CASCADE)

MONEY COLUMNS:
  All amounts are stored as decimal strings (TEXT), never REAL. SQLite
  floats would silently drift the running balance; decimal round-trips
  exactly.

ORDERING:
  The statement projector requires a deterministic replay order, so every
  transaction listing is ORDER BY date ASC, created_at ASC, rowid ASC.
  created_at is RFC3339Nano precisely so same-request writes still sort by
  insertion.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; WithTx and AdjustCustomerBalance
  take the write lock, which is what serializes competing balance deltas.
  In production with PostgreSQL, row locks would handle this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := billing.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Sarab71/cases-software/billing"
)

// Store implements billing.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx is the subset of *sql.DB and *sql.Tx the queries need, so the same
// method bodies serve both the plain store and a WithTx view.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Customers (balance holders)
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL,
		address TEXT NOT NULL,
		balance TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Bills (invoices)
	CREATE TABLE IF NOT EXISTS bills (
		id TEXT PRIMARY KEY,
		invoice_number INTEGER NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		date TEXT NOT NULL,
		items_json TEXT NOT NULL,
		grand_total TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bills_customer
		ON bills(customer_id);

	-- Transactions (the ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		description TEXT NOT NULL,
		related_bill_id TEXT,
		invoice_number INTEGER,
		created_at TEXT NOT NULL
	);

	-- Statement replay (hot path): customer history in chronological order
	CREATE INDEX IF NOT EXISTS idx_transactions_customer_date
		ON transactions(customer_id, date, created_at);

	CREATE INDEX IF NOT EXISTS idx_transactions_type
		ON transactions(tx_type);

	CREATE INDEX IF NOT EXISTS idx_transactions_bill
		ON transactions(related_bill_id) WHERE related_bill_id IS NOT NULL;

	-- Expense categories (unique, case-insensitive names)
	CREATE TABLE IF NOT EXISTS expense_categories (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL UNIQUE COLLATE NOCASE,
		created_at TEXT NOT NULL
	);

	-- Expenses (child rows of a category)
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL REFERENCES expense_categories(id) ON DELETE CASCADE,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_category
		ON expenses(category_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION SUPPORT (billing.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txView{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txView routes every Store call through the open *sql.Tx. The parent mutex
// is held for the duration of the callback, so no locking here.
type txView struct {
	tx     *sql.Tx
	parent *Store
}

func (v *txView) InsertCustomer(ctx context.Context, c *billing.Customer) error {
	return v.parent.insertCustomer(ctx, v.tx, c)
}

func (v *txView) GetCustomer(ctx context.Context, id billing.CustomerID) (*billing.Customer, error) {
	return v.parent.getCustomer(ctx, v.tx, id)
}

func (v *txView) ListCustomers(ctx context.Context) ([]billing.Customer, error) {
	return v.parent.listCustomers(ctx, v.tx)
}

func (v *txView) UpdateCustomer(ctx context.Context, c *billing.Customer) error {
	return v.parent.updateCustomer(ctx, v.tx, c)
}

func (v *txView) DeleteCustomer(ctx context.Context, id billing.CustomerID) error {
	return v.parent.deleteCustomer(ctx, v.tx, id)
}

func (v *txView) AdjustCustomerBalance(ctx context.Context, id billing.CustomerID, delta decimal.Decimal) (decimal.Decimal, error) {
	return v.parent.adjustBalance(ctx, v.tx, id, delta)
}

func (v *txView) InsertBill(ctx context.Context, b *billing.Bill) error {
	return v.parent.insertBill(ctx, v.tx, b)
}

func (v *txView) GetBill(ctx context.Context, id billing.BillID) (*billing.Bill, error) {
	return v.parent.getBill(ctx, v.tx, id)
}

func (v *txView) UpdateBill(ctx context.Context, b *billing.Bill) error {
	return v.parent.updateBill(ctx, v.tx, b)
}

func (v *txView) DeleteBill(ctx context.Context, id billing.BillID) error {
	return v.parent.deleteBill(ctx, v.tx, id)
}

func (v *txView) LastInvoiceNumber(ctx context.Context) (*int64, error) {
	return v.parent.lastInvoiceNumber(ctx, v.tx)
}

func (v *txView) CountBillsByCustomer(ctx context.Context, id billing.CustomerID) (int, error) {
	return v.parent.countBillsByCustomer(ctx, v.tx, id)
}

func (v *txView) InsertTransaction(ctx context.Context, tx *billing.Transaction) error {
	return v.parent.insertTransaction(ctx, v.tx, tx)
}

func (v *txView) GetTransaction(ctx context.Context, id billing.TransactionID) (*billing.Transaction, error) {
	return v.parent.getTransaction(ctx, v.tx, id)
}

func (v *txView) UpdateTransaction(ctx context.Context, tx *billing.Transaction) error {
	return v.parent.updateTransaction(ctx, v.tx, tx)
}

func (v *txView) DeleteTransaction(ctx context.Context, id billing.TransactionID) error {
	return v.parent.deleteTransaction(ctx, v.tx, id)
}

func (v *txView) GetTransactionByBill(ctx context.Context, billID billing.BillID) (*billing.Transaction, error) {
	return v.parent.getTransactionByBill(ctx, v.tx, billID)
}

func (v *txView) ListTransactionsByCustomer(ctx context.Context, id billing.CustomerID) ([]billing.Transaction, error) {
	return v.parent.listTransactions(ctx, v.tx, billing.TransactionFilter{CustomerID: &id})
}

func (v *txView) ListTransactions(ctx context.Context, f billing.TransactionFilter) ([]billing.Transaction, error) {
	return v.parent.listTransactions(ctx, v.tx, f)
}

func (v *txView) CountTransactionsByCustomer(ctx context.Context, id billing.CustomerID) (int, error) {
	return v.parent.countTransactionsByCustomer(ctx, v.tx, id)
}

func (v *txView) GetCategoryByName(ctx context.Context, name string) (*billing.ExpenseCategory, error) {
	return v.parent.getCategoryByName(ctx, v.tx, name)
}

func (v *txView) InsertCategory(ctx context.Context, c *billing.ExpenseCategory) error {
	return v.parent.insertCategory(ctx, v.tx, c)
}

func (v *txView) AppendExpense(ctx context.Context, categoryID billing.CategoryID, e *billing.Expense) error {
	return v.parent.appendExpense(ctx, v.tx, categoryID, e)
}

func (v *txView) ListCategories(ctx context.Context) ([]billing.ExpenseCategory, error) {
	return v.parent.listCategories(ctx, v.tx)
}

func (v *txView) SearchCategories(ctx context.Context, prefix string, limit int) ([]billing.ExpenseCategory, error) {
	return v.parent.searchCategories(ctx, v.tx, prefix, limit)
}

func (v *txView) DeleteExpense(ctx context.Context, id billing.ExpenseID) error {
	return v.parent.deleteExpense(ctx, v.tx, id)
}

// =============================================================================
// CUSTOMER STORE (billing.CustomerStore interface)
// =============================================================================

// InsertCustomer persists a new customer.
func (s *Store) InsertCustomer(ctx context.Context, c *billing.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCustomer(ctx, s.db, c)
}

func (s *Store) insertCustomer(ctx context.Context, db dbtx, c *billing.Customer) error {
	query := `
		INSERT INTO customers (id, name, phone, address, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		c.ID, c.Name, c.Phone, c.Address,
		c.Balance.String(),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return billing.ErrDuplicateCustomerName
		}
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	return nil
}

// GetCustomer retrieves a customer by ID, (nil, nil) when absent.
func (s *Store) GetCustomer(ctx context.Context, id billing.CustomerID) (*billing.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCustomer(ctx, s.db, id)
}

func (s *Store) getCustomer(ctx context.Context, db dbtx, id billing.CustomerID) (*billing.Customer, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, name, phone, address, balance, created_at, updated_at FROM customers WHERE id = ?",
		id,
	)

	c, err := scanCustomer(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCustomers returns all customers, newest first.
func (s *Store) ListCustomers(ctx context.Context) ([]billing.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCustomers(ctx, s.db)
}

func (s *Store) listCustomers(ctx context.Context, db dbtx) ([]billing.Customer, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, phone, address, balance, created_at, updated_at FROM customers ORDER BY created_at DESC, rowid DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []billing.Customer
	for rows.Next() {
		c, err := scanCustomer(rows.Scan)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// UpdateCustomer persists name/phone/address changes. The balance column is
// deliberately not touched; that is AdjustCustomerBalance's job.
func (s *Store) UpdateCustomer(ctx context.Context, c *billing.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCustomer(ctx, s.db, c)
}

func (s *Store) updateCustomer(ctx context.Context, db dbtx, c *billing.Customer) error {
	now := time.Now().UTC()

	result, err := db.ExecContext(ctx,
		"UPDATE customers SET name = ?, phone = ?, address = ?, updated_at = ? WHERE id = ?",
		c.Name, c.Phone, c.Address, now.Format(time.RFC3339Nano), c.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return billing.ErrDuplicateCustomerName
		}
		return fmt.Errorf("failed to update customer: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrCustomerNotFound
	}

	c.UpdatedAt = now
	return nil
}

// DeleteCustomer removes the customer record.
func (s *Store) DeleteCustomer(ctx context.Context, id billing.CustomerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteCustomer(ctx, s.db, id)
}

func (s *Store) deleteCustomer(ctx context.Context, db dbtx, id billing.CustomerID) error {
	result, err := db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrCustomerNotFound
	}
	return nil
}

// AdjustCustomerBalance applies delta to the stored balance as one serialized
// read-add-write. The arithmetic happens in decimal space, not in SQL, so the
// TEXT column never picks up float artifacts.
func (s *Store) AdjustCustomerBalance(ctx context.Context, id billing.CustomerID, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustBalance(ctx, s.db, id, delta)
}

func (s *Store) adjustBalance(ctx context.Context, db dbtx, id billing.CustomerID, delta decimal.Decimal) (decimal.Decimal, error) {
	var balanceStr string
	err := db.QueryRowContext(ctx, "SELECT balance FROM customers WHERE id = ?", id).Scan(&balanceStr)
	if err == sql.ErrNoRows {
		return decimal.Zero, billing.ErrCustomerNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt balance for customer %s: %w", id, err)
	}
	balance = balance.Add(delta)

	_, err = db.ExecContext(ctx,
		"UPDATE customers SET balance = ?, updated_at = ? WHERE id = ?",
		balance.String(), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to write balance: %w", err)
	}
	return balance, nil
}

// =============================================================================
// BILL STORE (billing.BillStore interface)
// =============================================================================

// billItemRecord is the JSON shape of one line item in bills.items_json.
type billItemRecord struct {
	ModelNumber string          `json:"modelNumber"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Discount    decimal.Decimal `json:"discount"`
	NetAmount   decimal.Decimal `json:"netAmount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// InsertBill persists a new bill.
func (s *Store) InsertBill(ctx context.Context, b *billing.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertBill(ctx, s.db, b)
}

func (s *Store) insertBill(ctx context.Context, db dbtx, b *billing.Bill) error {
	itemsJSON, err := marshalItems(b.Items)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bills (id, invoice_number, customer_id, date, items_json, grand_total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		b.ID, b.InvoiceNumber, b.CustomerID,
		b.Date.UTC().Format(time.RFC3339),
		itemsJSON,
		b.GrandTotal.String(),
		b.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return billing.ErrDuplicateInvoiceNumber
		}
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	return nil
}

// GetBill retrieves a bill by ID, (nil, nil) when absent.
func (s *Store) GetBill(ctx context.Context, id billing.BillID) (*billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBill(ctx, s.db, id)
}

func (s *Store) getBill(ctx context.Context, db dbtx, id billing.BillID) (*billing.Bill, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, invoice_number, customer_id, date, items_json, grand_total, created_at FROM bills WHERE id = ?",
		id,
	)

	b, err := scanBill(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBill replaces the bill's mutable fields wholesale.
func (s *Store) UpdateBill(ctx context.Context, b *billing.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateBill(ctx, s.db, b)
}

func (s *Store) updateBill(ctx context.Context, db dbtx, b *billing.Bill) error {
	itemsJSON, err := marshalItems(b.Items)
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx,
		"UPDATE bills SET invoice_number = ?, date = ?, items_json = ?, grand_total = ? WHERE id = ?",
		b.InvoiceNumber, b.Date.UTC().Format(time.RFC3339), itemsJSON, b.GrandTotal.String(), b.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return billing.ErrDuplicateInvoiceNumber
		}
		return fmt.Errorf("failed to update bill: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrBillNotFound
	}
	return nil
}

// DeleteBill removes the bill record.
func (s *Store) DeleteBill(ctx context.Context, id billing.BillID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteBill(ctx, s.db, id)
}

func (s *Store) deleteBill(ctx context.Context, db dbtx, id billing.BillID) error {
	result, err := db.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrBillNotFound
	}
	return nil
}

// LastInvoiceNumber returns the highest invoice number, nil when no bills
// exist.
func (s *Store) LastInvoiceNumber(ctx context.Context) (*int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastInvoiceNumber(ctx, s.db)
}

func (s *Store) lastInvoiceNumber(ctx context.Context, db dbtx) (*int64, error) {
	var last sql.NullInt64
	err := db.QueryRowContext(ctx, "SELECT MAX(invoice_number) FROM bills").Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to query last invoice number: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Int64, nil
}

// CountBillsByCustomer returns how many bills reference the customer.
func (s *Store) CountBillsByCustomer(ctx context.Context, id billing.CustomerID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countBillsByCustomer(ctx, s.db, id)
}

func (s *Store) countBillsByCustomer(ctx context.Context, db dbtx, id billing.CustomerID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bills WHERE customer_id = ?", id).Scan(&count)
	return count, err
}

// =============================================================================
// TRANSACTION STORE (billing.TransactionStore interface)
// =============================================================================

const transactionColumns = "id, customer_id, tx_type, amount, date, description, related_bill_id, invoice_number, created_at"

// InsertTransaction persists a new ledger entry.
func (s *Store) InsertTransaction(ctx context.Context, tx *billing.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTransaction(ctx, s.db, tx)
}

func (s *Store) insertTransaction(ctx context.Context, db dbtx, tx *billing.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, customer_id, tx_type, amount, date, description, related_bill_id, invoice_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tx.ID, tx.CustomerID, tx.Type,
		tx.Amount.String(),
		tx.Date.UTC().Format(time.RFC3339),
		tx.Description,
		nullString(string(tx.RelatedBillID)),
		tx.InvoiceNumber,
		tx.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a ledger entry by ID, (nil, nil) when absent.
func (s *Store) GetTransaction(ctx context.Context, id billing.TransactionID) (*billing.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTransaction(ctx, s.db, id)
}

func (s *Store) getTransaction(ctx context.Context, db dbtx, id billing.TransactionID) (*billing.Transaction, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id,
	)

	tx, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// UpdateTransaction replaces a ledger entry's mutable fields.
func (s *Store) UpdateTransaction(ctx context.Context, tx *billing.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTransaction(ctx, s.db, tx)
}

func (s *Store) updateTransaction(ctx context.Context, db dbtx, tx *billing.Transaction) error {
	result, err := db.ExecContext(ctx,
		"UPDATE transactions SET amount = ?, date = ?, description = ?, invoice_number = ? WHERE id = ?",
		tx.Amount.String(), tx.Date.UTC().Format(time.RFC3339), tx.Description, tx.InvoiceNumber, tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrTransactionNotFound
	}
	return nil
}

// DeleteTransaction removes a ledger entry.
func (s *Store) DeleteTransaction(ctx context.Context, id billing.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteTransaction(ctx, s.db, id)
}

func (s *Store) deleteTransaction(ctx context.Context, db dbtx, id billing.TransactionID) error {
	result, err := db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrTransactionNotFound
	}
	return nil
}

// GetTransactionByBill returns the entry linked to a bill, (nil, nil) when
// none exists.
func (s *Store) GetTransactionByBill(ctx context.Context, billID billing.BillID) (*billing.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTransactionByBill(ctx, s.db, billID)
}

func (s *Store) getTransactionByBill(ctx context.Context, db dbtx, billID billing.BillID) (*billing.Transaction, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE related_bill_id = ? LIMIT 1", billID,
	)

	tx, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactionsByCustomer returns the customer's full history in replay
// order.
func (s *Store) ListTransactionsByCustomer(ctx context.Context, id billing.CustomerID) ([]billing.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTransactions(ctx, s.db, billing.TransactionFilter{CustomerID: &id})
}

// ListTransactions returns filtered transactions in replay order.
func (s *Store) ListTransactions(ctx context.Context, f billing.TransactionFilter) ([]billing.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTransactions(ctx, s.db, f)
}

func (s *Store) listTransactions(ctx context.Context, db dbtx, f billing.TransactionFilter) ([]billing.Transaction, error) {
	var where []string
	var args []any

	if f.CustomerID != nil {
		where = append(where, "customer_id = ?")
		args = append(args, *f.CustomerID)
	}
	if f.Type != nil {
		where = append(where, "tx_type = ?")
		args = append(args, *f.Type)
	}
	if f.Range != nil {
		from, until := f.Range.Bounds()
		where = append(where, "date >= ? AND date < ?")
		args = append(args, from.UTC().Format(time.RFC3339), until.UTC().Format(time.RFC3339))
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, created_at ASC, rowid ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []billing.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// CountTransactionsByCustomer returns how many entries reference the customer.
func (s *Store) CountTransactionsByCustomer(ctx context.Context, id billing.CustomerID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countTransactionsByCustomer(ctx, s.db, id)
}

func (s *Store) countTransactionsByCustomer(ctx context.Context, db dbtx, id billing.CustomerID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions WHERE customer_id = ?", id).Scan(&count)
	return count, err
}

// =============================================================================
// EXPENSE STORE (billing.ExpenseStore interface)
// =============================================================================

// GetCategoryByName matches case-insensitively, (nil, nil) when absent.
func (s *Store) GetCategoryByName(ctx context.Context, name string) (*billing.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCategoryByName(ctx, s.db, name)
}

func (s *Store) getCategoryByName(ctx context.Context, db dbtx, name string) (*billing.ExpenseCategory, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, category, created_at FROM expense_categories WHERE category = ? COLLATE NOCASE",
		name,
	)

	cat, err := scanCategory(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cat.Expenses, err = s.loadExpenses(ctx, db, cat.ID)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// InsertCategory persists a new, empty category.
func (s *Store) InsertCategory(ctx context.Context, c *billing.ExpenseCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCategory(ctx, s.db, c)
}

func (s *Store) insertCategory(ctx context.Context, db dbtx, c *billing.ExpenseCategory) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO expense_categories (id, category, created_at) VALUES (?, ?, ?)",
		c.ID, c.Category, c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

// AppendExpense adds an expense row to an existing category.
func (s *Store) AppendExpense(ctx context.Context, categoryID billing.CategoryID, e *billing.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendExpense(ctx, s.db, categoryID, e)
}

func (s *Store) appendExpense(ctx context.Context, db dbtx, categoryID billing.CategoryID, e *billing.Expense) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO expenses (id, category_id, description, amount, date, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, categoryID, e.Description,
		e.Amount.String(),
		e.Date.UTC().Format(time.RFC3339),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

// ListCategories returns all categories with their expenses, oldest first.
func (s *Store) ListCategories(ctx context.Context) ([]billing.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCategories(ctx, s.db)
}

func (s *Store) listCategories(ctx context.Context, db dbtx) ([]billing.ExpenseCategory, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, category, created_at FROM expense_categories ORDER BY rowid ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []billing.ExpenseCategory
	for rows.Next() {
		cat, err := scanCategory(rows.Scan)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *cat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range categories {
		categories[i].Expenses, err = s.loadExpenses(ctx, db, categories[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return categories, nil
}

// SearchCategories returns up to limit categories whose name starts with
// prefix, case-insensitively. Expenses are not loaded.
func (s *Store) SearchCategories(ctx context.Context, prefix string, limit int) ([]billing.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchCategories(ctx, s.db, prefix, limit)
}

func (s *Store) searchCategories(ctx context.Context, db dbtx, prefix string, limit int) ([]billing.ExpenseCategory, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := db.QueryContext(ctx,
		"SELECT id, category, created_at FROM expense_categories WHERE category LIKE ? ORDER BY category ASC LIMIT ?",
		prefix+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search categories: %w", err)
	}
	defer rows.Close()

	var categories []billing.ExpenseCategory
	for rows.Next() {
		cat, err := scanCategory(rows.Scan)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *cat)
	}
	return categories, rows.Err()
}

// DeleteExpense removes a single expense row.
func (s *Store) DeleteExpense(ctx context.Context, id billing.ExpenseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteExpense(ctx, s.db, id)
}

func (s *Store) deleteExpense(ctx context.Context, db dbtx, id billing.ExpenseID) error {
	result, err := db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrExpenseNotFound
	}
	return nil
}

func (s *Store) loadExpenses(ctx context.Context, db dbtx, categoryID billing.CategoryID) ([]billing.Expense, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, description, amount, date, created_at FROM expenses WHERE category_id = ? ORDER BY rowid ASC",
		categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []billing.Expense
	for rows.Next() {
		var e billing.Expense
		var amountStr, dateStr, createdAt string
		if err := rows.Scan(&e.ID, &e.Description, &amountStr, &dateStr, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt expense amount: %w", err)
		}
		e.Date, _ = time.Parse(time.RFC3339, dateStr)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"expenses", "expense_categories", "transactions", "bills", "customers"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// scanFunc abstracts over sql.Row.Scan and sql.Rows.Scan.
type scanFunc func(dest ...any) error

func scanCustomer(scan scanFunc) (*billing.Customer, error) {
	var c billing.Customer
	var balanceStr, createdAt, updatedAt string

	if err := scan(&c.ID, &c.Name, &c.Phone, &c.Address, &balanceStr, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt balance for customer %s: %w", c.ID, err)
	}
	c.Balance = balance
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &c, nil
}

func scanBill(scan scanFunc) (*billing.Bill, error) {
	var b billing.Bill
	var dateStr, itemsJSON, grandTotalStr, createdAt string

	if err := scan(&b.ID, &b.InvoiceNumber, &b.CustomerID, &dateStr, &itemsJSON, &grandTotalStr, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan bill: %w", err)
	}

	grandTotal, err := decimal.NewFromString(grandTotalStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt grand total for bill %s: %w", b.ID, err)
	}
	b.GrandTotal = grandTotal

	items, err := unmarshalItems(itemsJSON)
	if err != nil {
		return nil, fmt.Errorf("corrupt items for bill %s: %w", b.ID, err)
	}
	b.Items = items

	b.Date, _ = time.Parse(time.RFC3339, dateStr)
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &b, nil
}

func scanTransaction(scan scanFunc) (*billing.Transaction, error) {
	var tx billing.Transaction
	var amountStr, dateStr, createdAt string
	var relatedBillID sql.NullString
	var invoiceNumber sql.NullInt64

	if err := scan(&tx.ID, &tx.CustomerID, &tx.Type, &amountStr, &dateStr,
		&tx.Description, &relatedBillID, &invoiceNumber, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount for transaction %s: %w", tx.ID, err)
	}
	tx.Amount = amount
	tx.RelatedBillID = billing.BillID(relatedBillID.String)
	if invoiceNumber.Valid {
		tx.InvoiceNumber = &invoiceNumber.Int64
	}
	tx.Date, _ = time.Parse(time.RFC3339, dateStr)
	tx.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &tx, nil
}

func scanCategory(scan scanFunc) (*billing.ExpenseCategory, error) {
	var cat billing.ExpenseCategory
	var createdAt string

	if err := scan(&cat.ID, &cat.Category, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}

	cat.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &cat, nil
}

func marshalItems(items []billing.BillItem) (string, error) {
	records := make([]billItemRecord, len(items))
	for i, item := range items {
		records[i] = billItemRecord(item)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to marshal items: %w", err)
	}
	return string(data), nil
}

func unmarshalItems(data string) ([]billing.BillItem, error) {
	var records []billItemRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, err
	}
	items := make([]billing.BillItem, len(records))
	for i, r := range records {
		items[i] = billing.BillItem(r)
	}
	return items, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
