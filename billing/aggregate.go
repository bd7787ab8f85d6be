/*
aggregate.go - Outstanding, sales, and expense totals

PURPOSE:
  Read-only sums over customers, transactions, and expenses, optionally
  filtered by a reporting window. All three share the DateRange policy from
  types.go: end-of-day inclusive, applied uniformly.

WHAT EACH FILTERS ON:
  TotalOutstanding: customer balances, window on UpdatedAt
  TotalSales:       debit transaction amounts, window on Date
  TotalExpenses:    expense amounts across all categories, window on Date

SEE ALSO:
  - types.go: DateRange.Contains
*/
package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// TotalOutstanding sums customer balances. With a range, only customers
// whose UpdatedAt falls inside it contribute.
func (e *Engine) TotalOutstanding(ctx context.Context, r *DateRange) (decimal.Decimal, error) {
	customers, err := e.store.ListCustomers(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, c := range customers {
		if r != nil && !r.Contains(c.UpdatedAt) {
			continue
		}
		total = total.Add(c.Balance)
	}
	return total, nil
}

// TotalSales sums debit transaction amounts, optionally within a range.
func (e *Engine) TotalSales(ctx context.Context, r *DateRange) (decimal.Decimal, error) {
	debit := TxDebit
	txs, err := e.store.ListTransactions(ctx, TransactionFilter{Type: &debit, Range: r})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total, nil
}

// TotalExpenses sums expense amounts across all categories, optionally
// within a range.
func (e *Engine) TotalExpenses(ctx context.Context, r *DateRange) (decimal.Decimal, error) {
	categories, err := e.store.ListCategories(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, cat := range categories {
		for _, exp := range cat.Expenses {
			if r != nil && !r.Contains(exp.Date) {
				continue
			}
			total = total.Add(exp.Amount)
		}
	}
	return total, nil
}
