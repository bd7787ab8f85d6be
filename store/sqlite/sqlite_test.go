package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sarab71/cases-software/billing"
	"github.com/Sarab71/cases-software/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func seedCustomer(t *testing.T, store *sqlite.Store, name string) *billing.Customer {
	t.Helper()
	now := time.Now().UTC()
	c := &billing.Customer{
		ID:        billing.CustomerID(uuid.NewString()),
		Name:      name,
		Phone:     "9876543210",
		Address:   "12 Market Road",
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.InsertCustomer(context.Background(), c))
	return c
}

func seedBill(t *testing.T, store *sqlite.Store, customerID billing.CustomerID, invoiceNumber int64) *billing.Bill {
	t.Helper()
	b := &billing.Bill{
		ID:            billing.BillID(uuid.NewString()),
		InvoiceNumber: invoiceNumber,
		CustomerID:    customerID,
		Date:          time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Items: billing.ComputeItems([]billing.ItemInput{{
			ModelNumber: "CASE-100",
			Quantity:    dec(2),
			Rate:        dec(100),
			Discount:    dec(10),
		}}),
		GrandTotal: dec(180),
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.InsertBill(context.Background(), b))
	return b
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestCustomer_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := seedCustomer(t, store, "Sharma Traders")

	fetched, err := store.GetCustomer(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, created.Name, fetched.Name)
	assert.Equal(t, created.Phone, fetched.Phone)
	assert.True(t, fetched.Balance.IsZero())
}

func TestCustomer_AbsentIsNilNil(t *testing.T) {
	store := newTestStore(t)

	fetched, err := store.GetCustomer(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestCustomer_DuplicateName(t *testing.T) {
	store := newTestStore(t)
	seedCustomer(t, store, "Sharma Traders")

	dupe := &billing.Customer{
		ID:        billing.CustomerID(uuid.NewString()),
		Name:      "Sharma Traders",
		Phone:     "1",
		Address:   "x",
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	err := store.InsertCustomer(context.Background(), dupe)
	assert.ErrorIs(t, err, billing.ErrDuplicateCustomerName)
}

func TestAdjustCustomerBalance_ExactDecimal(t *testing.T) {
	// GIVEN: A zero balance
	// WHEN: Applying 0.1 three times and -0.3 once
	// THEN: The balance is exactly zero, no float drift

	store := newTestStore(t)
	ctx := context.Background()
	c := seedCustomer(t, store, "Precise Traders")

	for i := 0; i < 3; i++ {
		_, err := store.AdjustCustomerBalance(ctx, c.ID, decimal.RequireFromString("0.1"))
		require.NoError(t, err)
	}
	balance, err := store.AdjustCustomerBalance(ctx, c.ID, decimal.RequireFromString("-0.3"))
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "got %s", balance)
}

func TestAdjustCustomerBalance_MissingCustomer(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AdjustCustomerBalance(context.Background(), "missing", dec(1))
	assert.ErrorIs(t, err, billing.ErrCustomerNotFound)
}

// =============================================================================
// BILLS
// =============================================================================

func TestBill_ItemsSurviveRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := seedCustomer(t, store, "Item Traders")

	created := seedBill(t, store, c.ID, 5)

	fetched, err := store.GetBill(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Len(t, fetched.Items, 1)
	assert.Equal(t, "CASE-100", fetched.Items[0].ModelNumber)
	assert.True(t, fetched.Items[0].NetAmount.Equal(dec(90)))
	assert.True(t, fetched.Items[0].TotalAmount.Equal(dec(180)))
	assert.True(t, fetched.GrandTotal.Equal(dec(180)))
}

func TestBill_DuplicateInvoiceNumber(t *testing.T) {
	store := newTestStore(t)
	c := seedCustomer(t, store, "Unique Traders")
	seedBill(t, store, c.ID, 5)

	b := &billing.Bill{
		ID:            billing.BillID(uuid.NewString()),
		InvoiceNumber: 5,
		CustomerID:    c.ID,
		Date:          time.Now().UTC(),
		GrandTotal:    dec(1),
		CreatedAt:     time.Now().UTC(),
	}
	err := store.InsertBill(context.Background(), b)
	assert.ErrorIs(t, err, billing.ErrDuplicateInvoiceNumber)
}

func TestLastInvoiceNumber(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	last, err := store.LastInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Nil(t, last, "no bills yet")

	c := seedCustomer(t, store, "Numbered Traders")
	seedBill(t, store, c.ID, 3)
	seedBill(t, store, c.ID, 11)
	seedBill(t, store, c.ID, 7)

	last, err = store.LastInvoiceNumber(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(11), *last)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func seedTransaction(t *testing.T, store *sqlite.Store, customerID billing.CustomerID, txType billing.TransactionType, amount float64, date time.Time) *billing.Transaction {
	t.Helper()
	tx := &billing.Transaction{
		ID:          billing.TransactionID(uuid.NewString()),
		CustomerID:  customerID,
		Type:        txType,
		Amount:      dec(amount),
		Date:        date,
		Description: "seed",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.InsertTransaction(context.Background(), tx))
	return tx
}

func TestTransactions_ReplayOrder(t *testing.T) {
	// GIVEN: Transactions written out of date order, two sharing a date
	// WHEN: Listing by customer
	// THEN: Date ascending, insertion order breaking the tie

	store := newTestStore(t)
	ctx := context.Background()
	c := seedCustomer(t, store, "Ordered Traders")

	day10 := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	day5 := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)

	first := seedTransaction(t, store, c.ID, billing.TxDebit, 100, day10)
	second := seedTransaction(t, store, c.ID, billing.TxCredit, 50, day5)
	third := seedTransaction(t, store, c.ID, billing.TxCredit, 25, day10)

	txs, err := store.ListTransactionsByCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, second.ID, txs[0].ID)
	assert.Equal(t, first.ID, txs[1].ID)
	assert.Equal(t, third.ID, txs[2].ID)
}

func TestTransactions_FilterByTypeAndRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := seedCustomer(t, store, "Filtered Traders")

	seedTransaction(t, store, c.ID, billing.TxDebit, 100,
		time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC))
	seedTransaction(t, store, c.ID, billing.TxDebit, 200,
		time.Date(2025, time.April, 5, 0, 0, 0, 0, time.UTC))
	seedTransaction(t, store, c.ID, billing.TxCredit, 300,
		time.Date(2025, time.March, 6, 0, 0, 0, 0, time.UTC))

	debit := billing.TxDebit
	march := &billing.DateRange{
		Start: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
	}
	txs, err := store.ListTransactions(ctx, billing.TransactionFilter{Type: &debit, Range: march})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(dec(100)))
}

func TestTransaction_NullableInvoiceNumber(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := seedCustomer(t, store, "Nullable Traders")

	n := int64(9)
	withNumber := &billing.Transaction{
		ID:            billing.TransactionID(uuid.NewString()),
		CustomerID:    c.ID,
		Type:          billing.TxDebit,
		Amount:        dec(10),
		Date:          time.Now().UTC(),
		Description:   "Bill Invoice #9",
		RelatedBillID: "bill-1",
		InvoiceNumber: &n,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.InsertTransaction(ctx, withNumber))

	without := seedTransaction(t, store, c.ID, billing.TxCredit, 5, time.Now().UTC())

	fetched, err := store.GetTransaction(ctx, withNumber.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.InvoiceNumber)
	assert.Equal(t, int64(9), *fetched.InvoiceNumber)
	assert.Equal(t, billing.BillID("bill-1"), fetched.RelatedBillID)

	fetched, err = store.GetTransaction(ctx, without.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched.InvoiceNumber)
	assert.Empty(t, fetched.RelatedBillID)
}

func TestGetTransactionByBill(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := seedCustomer(t, store, "Linked Traders")
	b := seedBill(t, store, c.ID, 1)

	tx := &billing.Transaction{
		ID:            billing.TransactionID(uuid.NewString()),
		CustomerID:    c.ID,
		Type:          billing.TxDebit,
		Amount:        dec(180),
		Date:          time.Now().UTC(),
		Description:   "Bill Invoice #1",
		RelatedBillID: b.ID,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.InsertTransaction(ctx, tx))

	found, err := store.GetTransactionByBill(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, tx.ID, found.ID)

	missing, err := store.GetTransactionByBill(ctx, "unlinked")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// WITHTX
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes a customer and a ledger entry then fails
	// WHEN: WithTx returns the error
	// THEN: Neither write is visible

	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	var customerID billing.CustomerID
	err := store.WithTx(ctx, func(s billing.Store) error {
		now := time.Now().UTC()
		c := &billing.Customer{
			ID:        billing.CustomerID(uuid.NewString()),
			Name:      "Rollback Traders",
			Phone:     "1",
			Address:   "x",
			Balance:   decimal.Zero,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.InsertCustomer(ctx, c); err != nil {
			return err
		}
		customerID = c.ID

		if _, err := s.AdjustCustomerBalance(ctx, c.ID, dec(100)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	fetched, err := store.GetCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Nil(t, fetched, "rolled-back customer must not exist")
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := seedCustomer(t, store, "Commit Traders")

	err := store.WithTx(ctx, func(s billing.Store) error {
		_, err := s.AdjustCustomerBalance(ctx, c.ID, dec(42))
		return err
	})
	require.NoError(t, err)

	fetched, err := store.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Balance.Equal(dec(42)))
}

// =============================================================================
// EXPENSES
// =============================================================================

func TestExpenses_CategoryRoundTripAndCascade(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cat := &billing.ExpenseCategory{
		ID:        billing.CategoryID(uuid.NewString()),
		Category:  "Rent",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertCategory(ctx, cat))

	e := &billing.Expense{
		ID:          billing.ExpenseID(uuid.NewString()),
		Description: "March rent",
		Amount:      dec(5000),
		Date:        time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.AppendExpense(ctx, cat.ID, e))

	// Case-insensitive lookup loads the expenses.
	fetched, err := store.GetCategoryByName(ctx, "RENT")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Len(t, fetched.Expenses, 1)
	assert.True(t, fetched.Expenses[0].Amount.Equal(dec(5000)))

	require.NoError(t, store.DeleteExpense(ctx, e.ID))
	err = store.DeleteExpense(ctx, e.ID)
	assert.ErrorIs(t, err, billing.ErrExpenseNotFound)
}

func TestSearchCategories_PrefixAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Rent", "Repairs", "Refreshments", "Salary"} {
		cat := &billing.ExpenseCategory{
			ID:        billing.CategoryID(uuid.NewString()),
			Category:  name,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, store.InsertCategory(ctx, cat))
	}

	matches, err := store.SearchCategories(ctx, "re", 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	for _, cat := range matches {
		assert.Empty(t, cat.Expenses)
	}
}
