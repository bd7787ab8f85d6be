// Package store provides an in-memory billing.TxStore for tests and dev.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sarab71/cases-software/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements billing.TxStore with plain maps. WithTx is simulated
// with a snapshot + rollback on error; all operations are serialized by one
// mutex, which also satisfies the balance-adjustment serialization contract.
type Memory struct {
	mu sync.RWMutex

	customers    map[billing.CustomerID]billing.Customer
	bills        map[billing.BillID]billing.Bill
	transactions map[billing.TransactionID]billing.Transaction
	categories   map[billing.CategoryID]billing.ExpenseCategory

	// Insertion sequence per record, the deterministic tie-break for
	// equal-date ordering.
	seq     map[string]int
	nextSeq int
}

func NewMemory() *Memory {
	return &Memory{
		customers:    make(map[billing.CustomerID]billing.Customer),
		bills:        make(map[billing.BillID]billing.Bill),
		transactions: make(map[billing.TransactionID]billing.Transaction),
		categories:   make(map[billing.CategoryID]billing.ExpenseCategory),
		seq:          make(map[string]int),
	}
}

// =============================================================================
// TRANSACTION SUPPORT
// =============================================================================

// WithTx executes fn against a view of the store. On error the pre-call
// state is restored wholesale.
func (m *Memory) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&memoryView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	customers    map[billing.CustomerID]billing.Customer
	bills        map[billing.BillID]billing.Bill
	transactions map[billing.TransactionID]billing.Transaction
	categories   map[billing.CategoryID]billing.ExpenseCategory
	seq          map[string]int
	nextSeq      int
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		customers:    make(map[billing.CustomerID]billing.Customer, len(m.customers)),
		bills:        make(map[billing.BillID]billing.Bill, len(m.bills)),
		transactions: make(map[billing.TransactionID]billing.Transaction, len(m.transactions)),
		categories:   make(map[billing.CategoryID]billing.ExpenseCategory, len(m.categories)),
		seq:          make(map[string]int, len(m.seq)),
		nextSeq:      m.nextSeq,
	}
	for k, v := range m.customers {
		s.customers[k] = v
	}
	for k, v := range m.bills {
		s.bills[k] = v
	}
	for k, v := range m.transactions {
		s.transactions[k] = v
	}
	for k, v := range m.categories {
		s.categories[k] = v
	}
	for k, v := range m.seq {
		s.seq[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.customers = s.customers
	m.bills = s.bills
	m.transactions = s.transactions
	m.categories = s.categories
	m.seq = s.seq
	m.nextSeq = s.nextSeq
}

// memoryView exposes the locked internals to a WithTx callback. The parent
// mutex is already held for the duration of the callback.
type memoryView struct {
	parent *Memory
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) InsertCustomer(_ context.Context, c *billing.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCustomerLocked(c)
}

func (v *memoryView) InsertCustomer(_ context.Context, c *billing.Customer) error {
	return v.parent.insertCustomerLocked(c)
}

func (m *Memory) insertCustomerLocked(c *billing.Customer) error {
	for _, existing := range m.customers {
		if existing.Name == c.Name {
			return billing.ErrDuplicateCustomerName
		}
	}
	m.customers[c.ID] = *c
	m.seq[string(c.ID)] = m.nextSeq
	m.nextSeq++
	return nil
}

func (m *Memory) GetCustomer(_ context.Context, id billing.CustomerID) (*billing.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCustomerLocked(id)
}

func (v *memoryView) GetCustomer(_ context.Context, id billing.CustomerID) (*billing.Customer, error) {
	return v.parent.getCustomerLocked(id)
}

func (m *Memory) getCustomerLocked(id billing.CustomerID) (*billing.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListCustomers(_ context.Context) ([]billing.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCustomersLocked()
}

func (v *memoryView) ListCustomers(_ context.Context) ([]billing.Customer, error) {
	return v.parent.listCustomersLocked()
}

func (m *Memory) listCustomersLocked() ([]billing.Customer, error) {
	result := make([]billing.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		result = append(result, c)
	}
	// Newest first.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return m.seq[string(result[i].ID)] > m.seq[string(result[j].ID)]
	})
	return result, nil
}

func (m *Memory) UpdateCustomer(_ context.Context, c *billing.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCustomerLocked(c)
}

func (v *memoryView) UpdateCustomer(_ context.Context, c *billing.Customer) error {
	return v.parent.updateCustomerLocked(c)
}

func (m *Memory) updateCustomerLocked(c *billing.Customer) error {
	existing, ok := m.customers[c.ID]
	if !ok {
		return billing.ErrCustomerNotFound
	}
	for _, other := range m.customers {
		if other.ID != c.ID && other.Name == c.Name {
			return billing.ErrDuplicateCustomerName
		}
	}
	existing.Name = c.Name
	existing.Phone = c.Phone
	existing.Address = c.Address
	existing.UpdatedAt = time.Now().UTC()
	m.customers[c.ID] = existing
	c.UpdatedAt = existing.UpdatedAt
	return nil
}

func (m *Memory) DeleteCustomer(_ context.Context, id billing.CustomerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCustomerLocked(id)
}

func (v *memoryView) DeleteCustomer(_ context.Context, id billing.CustomerID) error {
	return v.parent.deleteCustomerLocked(id)
}

func (m *Memory) deleteCustomerLocked(id billing.CustomerID) error {
	if _, ok := m.customers[id]; !ok {
		return billing.ErrCustomerNotFound
	}
	delete(m.customers, id)
	return nil
}

func (m *Memory) AdjustCustomerBalance(_ context.Context, id billing.CustomerID, delta decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustBalanceLocked(id, delta)
}

func (v *memoryView) AdjustCustomerBalance(_ context.Context, id billing.CustomerID, delta decimal.Decimal) (decimal.Decimal, error) {
	return v.parent.adjustBalanceLocked(id, delta)
}

func (m *Memory) adjustBalanceLocked(id billing.CustomerID, delta decimal.Decimal) (decimal.Decimal, error) {
	c, ok := m.customers[id]
	if !ok {
		return decimal.Zero, billing.ErrCustomerNotFound
	}
	c.Balance = c.Balance.Add(delta)
	c.UpdatedAt = time.Now().UTC()
	m.customers[id] = c
	return c.Balance, nil
}

// =============================================================================
// BILLS
// =============================================================================

func (m *Memory) InsertBill(_ context.Context, b *billing.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertBillLocked(b)
}

func (v *memoryView) InsertBill(_ context.Context, b *billing.Bill) error {
	return v.parent.insertBillLocked(b)
}

func (m *Memory) insertBillLocked(b *billing.Bill) error {
	for _, existing := range m.bills {
		if existing.InvoiceNumber == b.InvoiceNumber {
			return billing.ErrDuplicateInvoiceNumber
		}
	}
	m.bills[b.ID] = cloneBill(*b)
	m.seq[string(b.ID)] = m.nextSeq
	m.nextSeq++
	return nil
}

func (m *Memory) GetBill(_ context.Context, id billing.BillID) (*billing.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBillLocked(id)
}

func (v *memoryView) GetBill(_ context.Context, id billing.BillID) (*billing.Bill, error) {
	return v.parent.getBillLocked(id)
}

func (m *Memory) getBillLocked(id billing.BillID) (*billing.Bill, error) {
	b, ok := m.bills[id]
	if !ok {
		return nil, nil
	}
	clone := cloneBill(b)
	return &clone, nil
}

func (m *Memory) UpdateBill(_ context.Context, b *billing.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBillLocked(b)
}

func (v *memoryView) UpdateBill(_ context.Context, b *billing.Bill) error {
	return v.parent.updateBillLocked(b)
}

func (m *Memory) updateBillLocked(b *billing.Bill) error {
	if _, ok := m.bills[b.ID]; !ok {
		return billing.ErrBillNotFound
	}
	for _, other := range m.bills {
		if other.ID != b.ID && other.InvoiceNumber == b.InvoiceNumber {
			return billing.ErrDuplicateInvoiceNumber
		}
	}
	m.bills[b.ID] = cloneBill(*b)
	return nil
}

func (m *Memory) DeleteBill(_ context.Context, id billing.BillID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteBillLocked(id)
}

func (v *memoryView) DeleteBill(_ context.Context, id billing.BillID) error {
	return v.parent.deleteBillLocked(id)
}

func (m *Memory) deleteBillLocked(id billing.BillID) error {
	if _, ok := m.bills[id]; !ok {
		return billing.ErrBillNotFound
	}
	delete(m.bills, id)
	return nil
}

func (m *Memory) LastInvoiceNumber(_ context.Context) (*int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastInvoiceNumberLocked()
}

func (v *memoryView) LastInvoiceNumber(_ context.Context) (*int64, error) {
	return v.parent.lastInvoiceNumberLocked()
}

func (m *Memory) lastInvoiceNumberLocked() (*int64, error) {
	var last *int64
	for _, b := range m.bills {
		n := b.InvoiceNumber
		if last == nil || n > *last {
			last = &n
		}
	}
	return last, nil
}

func (m *Memory) CountBillsByCustomer(_ context.Context, id billing.CustomerID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countBillsLocked(id)
}

func (v *memoryView) CountBillsByCustomer(_ context.Context, id billing.CustomerID) (int, error) {
	return v.parent.countBillsLocked(id)
}

func (m *Memory) countBillsLocked(id billing.CustomerID) (int, error) {
	count := 0
	for _, b := range m.bills {
		if b.CustomerID == id {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) InsertTransaction(_ context.Context, tx *billing.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTransactionLocked(tx)
}

func (v *memoryView) InsertTransaction(_ context.Context, tx *billing.Transaction) error {
	return v.parent.insertTransactionLocked(tx)
}

func (m *Memory) insertTransactionLocked(tx *billing.Transaction) error {
	m.transactions[tx.ID] = *tx
	m.seq[string(tx.ID)] = m.nextSeq
	m.nextSeq++
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id billing.TransactionID) (*billing.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTransactionLocked(id)
}

func (v *memoryView) GetTransaction(_ context.Context, id billing.TransactionID) (*billing.Transaction, error) {
	return v.parent.getTransactionLocked(id)
}

func (m *Memory) getTransactionLocked(id billing.TransactionID) (*billing.Transaction, error) {
	tx, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx *billing.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateTransactionLocked(tx)
}

func (v *memoryView) UpdateTransaction(_ context.Context, tx *billing.Transaction) error {
	return v.parent.updateTransactionLocked(tx)
}

func (m *Memory) updateTransactionLocked(tx *billing.Transaction) error {
	if _, ok := m.transactions[tx.ID]; !ok {
		return billing.ErrTransactionNotFound
	}
	m.transactions[tx.ID] = *tx
	return nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id billing.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteTransactionLocked(id)
}

func (v *memoryView) DeleteTransaction(_ context.Context, id billing.TransactionID) error {
	return v.parent.deleteTransactionLocked(id)
}

func (m *Memory) deleteTransactionLocked(id billing.TransactionID) error {
	if _, ok := m.transactions[id]; !ok {
		return billing.ErrTransactionNotFound
	}
	delete(m.transactions, id)
	return nil
}

func (m *Memory) GetTransactionByBill(_ context.Context, billID billing.BillID) (*billing.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTransactionByBillLocked(billID)
}

func (v *memoryView) GetTransactionByBill(_ context.Context, billID billing.BillID) (*billing.Transaction, error) {
	return v.parent.getTransactionByBillLocked(billID)
}

func (m *Memory) getTransactionByBillLocked(billID billing.BillID) (*billing.Transaction, error) {
	for _, tx := range m.transactions {
		if tx.RelatedBillID == billID {
			found := tx
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListTransactionsByCustomer(_ context.Context, id billing.CustomerID) ([]billing.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTransactionsLocked(billing.TransactionFilter{CustomerID: &id})
}

func (v *memoryView) ListTransactionsByCustomer(_ context.Context, id billing.CustomerID) ([]billing.Transaction, error) {
	return v.parent.listTransactionsLocked(billing.TransactionFilter{CustomerID: &id})
}

func (m *Memory) ListTransactions(_ context.Context, f billing.TransactionFilter) ([]billing.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTransactionsLocked(f)
}

func (v *memoryView) ListTransactions(_ context.Context, f billing.TransactionFilter) ([]billing.Transaction, error) {
	return v.parent.listTransactionsLocked(f)
}

func (m *Memory) listTransactionsLocked(f billing.TransactionFilter) ([]billing.Transaction, error) {
	var result []billing.Transaction
	for _, tx := range m.transactions {
		if f.CustomerID != nil && tx.CustomerID != *f.CustomerID {
			continue
		}
		if f.Type != nil && tx.Type != *f.Type {
			continue
		}
		if f.Range != nil && !f.Range.Contains(tx.Date) {
			continue
		}
		result = append(result, tx)
	}
	// Date ascending, insertion order as the tie-break.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return m.seq[string(result[i].ID)] < m.seq[string(result[j].ID)]
	})
	return result, nil
}

func (m *Memory) CountTransactionsByCustomer(_ context.Context, id billing.CustomerID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countTransactionsLocked(id)
}

func (v *memoryView) CountTransactionsByCustomer(_ context.Context, id billing.CustomerID) (int, error) {
	return v.parent.countTransactionsLocked(id)
}

func (m *Memory) countTransactionsLocked(id billing.CustomerID) (int, error) {
	count := 0
	for _, tx := range m.transactions {
		if tx.CustomerID == id {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// EXPENSES
// =============================================================================

func (m *Memory) GetCategoryByName(_ context.Context, name string) (*billing.ExpenseCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCategoryByNameLocked(name)
}

func (v *memoryView) GetCategoryByName(_ context.Context, name string) (*billing.ExpenseCategory, error) {
	return v.parent.getCategoryByNameLocked(name)
}

func (m *Memory) getCategoryByNameLocked(name string) (*billing.ExpenseCategory, error) {
	for _, cat := range m.categories {
		if strings.EqualFold(cat.Category, name) {
			clone := cloneCategory(cat)
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertCategory(_ context.Context, c *billing.ExpenseCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCategoryLocked(c)
}

func (v *memoryView) InsertCategory(_ context.Context, c *billing.ExpenseCategory) error {
	return v.parent.insertCategoryLocked(c)
}

func (m *Memory) insertCategoryLocked(c *billing.ExpenseCategory) error {
	m.categories[c.ID] = cloneCategory(*c)
	m.seq[string(c.ID)] = m.nextSeq
	m.nextSeq++
	return nil
}

func (m *Memory) AppendExpense(_ context.Context, categoryID billing.CategoryID, e *billing.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendExpenseLocked(categoryID, e)
}

func (v *memoryView) AppendExpense(_ context.Context, categoryID billing.CategoryID, e *billing.Expense) error {
	return v.parent.appendExpenseLocked(categoryID, e)
}

func (m *Memory) appendExpenseLocked(categoryID billing.CategoryID, e *billing.Expense) error {
	cat, ok := m.categories[categoryID]
	if !ok {
		return billing.ErrExpenseNotFound
	}
	cat = cloneCategory(cat)
	cat.Expenses = append(cat.Expenses, *e)
	m.categories[categoryID] = cat
	return nil
}

func (m *Memory) ListCategories(_ context.Context) ([]billing.ExpenseCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCategoriesLocked()
}

func (v *memoryView) ListCategories(_ context.Context) ([]billing.ExpenseCategory, error) {
	return v.parent.listCategoriesLocked()
}

func (m *Memory) listCategoriesLocked() ([]billing.ExpenseCategory, error) {
	result := make([]billing.ExpenseCategory, 0, len(m.categories))
	for _, cat := range m.categories {
		result = append(result, cloneCategory(cat))
	}
	sort.Slice(result, func(i, j int) bool {
		return m.seq[string(result[i].ID)] < m.seq[string(result[j].ID)]
	})
	return result, nil
}

func (m *Memory) SearchCategories(_ context.Context, prefix string, limit int) ([]billing.ExpenseCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchCategoriesLocked(prefix, limit)
}

func (v *memoryView) SearchCategories(_ context.Context, prefix string, limit int) ([]billing.ExpenseCategory, error) {
	return v.parent.searchCategoriesLocked(prefix, limit)
}

func (m *Memory) searchCategoriesLocked(prefix string, limit int) ([]billing.ExpenseCategory, error) {
	all, _ := m.listCategoriesLocked()
	var result []billing.ExpenseCategory
	for _, cat := range all {
		if !strings.HasPrefix(strings.ToLower(cat.Category), strings.ToLower(prefix)) {
			continue
		}
		cat.Expenses = nil
		result = append(result, cat)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *Memory) DeleteExpense(_ context.Context, id billing.ExpenseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteExpenseLocked(id)
}

func (v *memoryView) DeleteExpense(_ context.Context, id billing.ExpenseID) error {
	return v.parent.deleteExpenseLocked(id)
}

func (m *Memory) deleteExpenseLocked(id billing.ExpenseID) error {
	for catID, cat := range m.categories {
		for i, exp := range cat.Expenses {
			if exp.ID != id {
				continue
			}
			cat = cloneCategory(cat)
			cat.Expenses = append(cat.Expenses[:i], cat.Expenses[i+1:]...)
			m.categories[catID] = cat
			return nil
		}
	}
	return billing.ErrExpenseNotFound
}

// =============================================================================
// CLONE HELPERS
// =============================================================================

func cloneBill(b billing.Bill) billing.Bill {
	items := make([]billing.BillItem, len(b.Items))
	copy(items, b.Items)
	b.Items = items
	return b
}

func cloneCategory(c billing.ExpenseCategory) billing.ExpenseCategory {
	expenses := make([]billing.Expense, len(c.Expenses))
	copy(expenses, c.Expenses)
	c.Expenses = expenses
	return c
}
