/*
expense.go - Expense category tracking

PURPOSE:
  Simple nested CRUD for expenses grouped under uniquely named categories.
  No cross-entity consistency is involved: expenses never touch customer
  balances or the ledger. Kept in the same package because the expense
  total feeds the reporting aggregators.

SEE ALSO:
  - aggregate.go: TotalExpenses
*/
package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseInput records one spend under a category, creating the category on
// first use.
type ExpenseInput struct {
	Category    string
	Description string
	Amount      decimal.Decimal
	Date        time.Time // defaults to now
}

// AddExpense appends an expense to its category, creating the category when
// it doesn't exist yet. Returns the category with all its expenses.
func (e *Engine) AddExpense(ctx context.Context, in ExpenseInput) (*ExpenseCategory, error) {
	if in.Category == "" {
		return nil, invalidf("category", "is required")
	}
	if in.Description == "" {
		return nil, invalidf("description", "is required")
	}
	if !in.Amount.IsPositive() {
		return nil, invalidf("amount", "must be greater than zero")
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	var result *ExpenseCategory
	err := e.store.WithTx(ctx, func(s Store) error {
		category, err := s.GetCategoryByName(ctx, in.Category)
		if err != nil {
			return err
		}
		if category == nil {
			category = &ExpenseCategory{
				ID:        CategoryID(uuid.NewString()),
				Category:  in.Category,
				CreatedAt: time.Now().UTC(),
			}
			if err := s.InsertCategory(ctx, category); err != nil {
				return err
			}
		}

		expense := &Expense{
			ID:          ExpenseID(uuid.NewString()),
			Description: in.Description,
			Amount:      in.Amount,
			Date:        in.Date,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.AppendExpense(ctx, category.ID, expense); err != nil {
			return err
		}

		category.Expenses = append(category.Expenses, *expense)
		result = category
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListExpenseCategories returns all categories with their expenses.
func (e *Engine) ListExpenseCategories(ctx context.Context) ([]ExpenseCategory, error) {
	return e.store.ListCategories(ctx)
}

// SearchExpenseCategories returns up to limit categories whose name starts
// with prefix, case-insensitively.
func (e *Engine) SearchExpenseCategories(ctx context.Context, prefix string, limit int) ([]ExpenseCategory, error) {
	return e.store.SearchCategories(ctx, prefix, limit)
}

// DeleteExpense removes a single expense from whichever category holds it.
func (e *Engine) DeleteExpense(ctx context.Context, id ExpenseID) error {
	return e.store.DeleteExpense(ctx, id)
}
