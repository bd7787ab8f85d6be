package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sarab71/cases-software/billing"
)

// =============================================================================
// SALES TOTAL
// =============================================================================

func TestTotalSales_SumsDebitsOnly(t *testing.T) {
	// GIVEN: A bill of 180 and a payment of 500
	// WHEN: Computing total sales
	// THEN: Only the debit counts

	engine, _ := newTestEngine(t)
	ctx := context.Background()
	customer := createTestCustomer(t, engine, "Sales Traders")

	_, err := engine.CreateBill(ctx, billing.CreateBillInput{
		InvoiceNumber: 1,
		CustomerID:    customer.ID,
		Items:         []billing.ItemInput{item("CASE-100", 2, 100, 10)},
		Date:          testDate(5),
	})
	require.NoError(t, err)

	_, err = engine.CreatePayment(ctx, billing.CreatePaymentInput{
		CustomerID: customer.ID,
		Amount:     dec(500),
		Date:       testDate(6),
	})
	require.NoError(t, err)

	total, err := engine.TotalSales(ctx, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(180)), "got %s", total)
}

func TestTotalSales_RangeIsEndOfDayInclusive(t *testing.T) {
	// GIVEN: Bills on March 5 and March 20, the latter at 23:59
	// WHEN: Totalling March 1-20
	// THEN: Both count; a window ending March 19 drops the second

	engine, _ := newTestEngine(t)
	ctx := context.Background()
	customer := createTestCustomer(t, engine, "Window Traders")

	_, err := engine.CreateBill(ctx, billing.CreateBillInput{
		InvoiceNumber: 1,
		CustomerID:    customer.ID,
		Items:         []billing.ItemInput{item("CASE-100", 1, 100, 0)},
		Date:          testDate(5),
	})
	require.NoError(t, err)

	lateEvening := time.Date(2025, time.March, 20, 23, 59, 0, 0, time.UTC)
	_, err = engine.CreateBill(ctx, billing.CreateBillInput{
		InvoiceNumber: 2,
		CustomerID:    customer.ID,
		Items:         []billing.ItemInput{item("CASE-100", 2, 100, 0)},
		Date:          lateEvening,
	})
	require.NoError(t, err)

	total, err := engine.TotalSales(ctx, &billing.DateRange{Start: testDate(1), End: testDate(20)})
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(300)), "whole end day included, got %s", total)

	total, err = engine.TotalSales(ctx, &billing.DateRange{Start: testDate(1), End: testDate(19)})
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(100)), "got %s", total)
}

// =============================================================================
// OUTSTANDING TOTAL
// =============================================================================

func TestTotalOutstanding_SumsBalances(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	a := createTestCustomer(t, engine, "A Traders")
	b := createTestCustomer(t, engine, "B Traders")

	_, err := engine.CreateBill(ctx, billing.CreateBillInput{
		InvoiceNumber: 1,
		CustomerID:    a.ID,
		Items:         []billing.ItemInput{item("CASE-100", 1, 300, 0)},
		Date:          testDate(1),
	})
	require.NoError(t, err)

	_, err = engine.CreatePayment(ctx, billing.CreatePaymentInput{
		CustomerID: b.ID,
		Amount:     dec(100),
	})
	require.NoError(t, err)

	total, err := engine.TotalOutstanding(ctx, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(-200)), "-300 + 100, got %s", total)
}

// =============================================================================
// EXPENSES
// =============================================================================

func TestAddExpense_CreatesCategoryOnce(t *testing.T) {
	// GIVEN: No categories
	// WHEN: Adding "Rent" then "rent" expenses
	// THEN: One category holds both; the match is case-insensitive

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.AddExpense(ctx, billing.ExpenseInput{
		Category:    "Rent",
		Description: "March rent",
		Amount:      dec(5000),
		Date:        testDate(1),
	})
	require.NoError(t, err)
	assert.Len(t, first.Expenses, 1)

	second, err := engine.AddExpense(ctx, billing.ExpenseInput{
		Category:    "rent",
		Description: "April rent",
		Amount:      dec(5000),
		Date:        testDate(31),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same category reused")
	assert.Len(t, second.Expenses, 2)

	categories, err := engine.ListExpenseCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)
}

func TestAddExpense_Validation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	cases := []billing.ExpenseInput{
		{Description: "x", Amount: dec(10)},
		{Category: "Misc", Amount: dec(10)},
		{Category: "Misc", Description: "x", Amount: dec(0)},
		{Category: "Misc", Description: "x", Amount: dec(-5)},
	}
	for _, in := range cases {
		_, err := engine.AddExpense(ctx, in)
		assert.ErrorIs(t, err, billing.ErrValidation)
	}
}

func TestSearchExpenseCategories_Prefix(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for _, name := range []string{"Rent", "Repairs", "Salary"} {
		_, err := engine.AddExpense(ctx, billing.ExpenseInput{
			Category:    name,
			Description: "seed",
			Amount:      dec(1),
		})
		require.NoError(t, err)
	}

	matches, err := engine.SearchExpenseCategories(ctx, "re", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, cat := range matches {
		assert.Empty(t, cat.Expenses, "search results carry names only")
	}
}

func TestTotalExpenses_WithRange(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.AddExpense(ctx, billing.ExpenseInput{
		Category:    "Rent",
		Description: "March rent",
		Amount:      dec(5000),
		Date:        testDate(1),
	})
	require.NoError(t, err)

	_, err = engine.AddExpense(ctx, billing.ExpenseInput{
		Category:    "Transport",
		Description: "Fuel",
		Amount:      dec(700),
		Date:        testDate(15),
	})
	require.NoError(t, err)

	total, err := engine.TotalExpenses(ctx, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(5700)), "got %s", total)

	total, err = engine.TotalExpenses(ctx, &billing.DateRange{Start: testDate(10), End: testDate(31)})
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(700)), "got %s", total)
}

func TestDeleteExpense(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	category, err := engine.AddExpense(ctx, billing.ExpenseInput{
		Category:    "Misc",
		Description: "One-off",
		Amount:      dec(50),
	})
	require.NoError(t, err)
	require.Len(t, category.Expenses, 1)

	require.NoError(t, engine.DeleteExpense(ctx, category.Expenses[0].ID))

	err = engine.DeleteExpense(ctx, category.Expenses[0].ID)
	assert.ErrorIs(t, err, billing.ErrExpenseNotFound)

	total, err := engine.TotalExpenses(ctx, nil)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}
