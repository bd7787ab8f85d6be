/*
queries.go - Read-only accessors over the store

PURPOSE:
  Thin lookups the HTTP layer needs that are not mutations or projections:
  single-bill fetch, the latest invoice number, and filtered transaction
  listings.
*/
package billing

import "context"

// GetBill returns a bill by id.
func (e *Engine) GetBill(ctx context.Context, id BillID) (*Bill, error) {
	bill, err := e.store.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, ErrBillNotFound
	}
	return bill, nil
}

// LastInvoiceNumber returns the highest invoice number issued so far, or nil
// when no bills exist. Clients use it to suggest the next number.
func (e *Engine) LastInvoiceNumber(ctx context.Context) (*int64, error) {
	return e.store.LastInvoiceNumber(ctx)
}

// ListTransactions returns ledger entries matching the filter, in replay
// order.
func (e *Engine) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	return e.store.ListTransactions(ctx, f)
}
