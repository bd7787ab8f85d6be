/*
statement.go - Running-balance statement projection

PURPOSE:
  Replays a customer's full transaction history, ordered by date with
  insertion order as the tie-break, into a displayable debit/credit ledger
  with a running balance. The projection is a pure function of the
  transaction set: replaying the same history always yields the same rows,
  and the stored customer balance is never touched.

PARTICULARS RESOLUTION:
  "Invoice #<n>" when an invoice number is resolvable for the row:
  the transaction's own denormalized InvoiceNumber first, then a fallback
  join through RelatedBillID for records written before the field existed.
  Otherwise "Payment Received".

RECONCILIATION:
  Because the projection recomputes the balance from scratch it can diverge
  from the stored balance if an invariant-breaking write happened outside
  the engine. Reconcile surfaces that drift; callers should log it.

SEE ALSO:
  - engine.go: Writes the transactions replayed here
  - types.go: Sign convention
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATEMENT
// =============================================================================

// StatementRow is one display line of a customer statement. Exactly one of
// Debit/Credit is set; Balance is the rounded running balance after the row.
type StatementRow struct {
	Date        time.Time
	Particulars string
	Debit       *int64
	Credit      *int64
	Balance     int64
}

// Statement is the full chronological projection for one customer.
type Statement struct {
	CustomerID     CustomerID
	Rows           []StatementRow
	ClosingBalance decimal.Decimal // unrounded running balance after the last row
}

// Statement replays the customer's transactions into a running-balance view.
// Read-only; safe to call repeatedly.
func (e *Engine) Statement(ctx context.Context, customerID CustomerID) (*Statement, error) {
	txs, err := e.store.ListTransactionsByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	// Bills looked up at most once per statement for legacy rows that lack
	// the denormalized invoice number.
	billInvoices := make(map[BillID]*int64)

	balance := decimal.Zero
	rows := make([]StatementRow, 0, len(txs))
	for _, tx := range txs {
		row := StatementRow{Date: tx.Date}

		if tx.Type == TxDebit {
			balance = balance.Sub(tx.Amount)
			amount := RoundCurrency(tx.Amount).IntPart()
			row.Debit = &amount
		} else {
			balance = balance.Add(tx.Amount)
			amount := RoundCurrency(tx.Amount).IntPart()
			row.Credit = &amount
		}

		invoiceNumber, err := e.resolveInvoiceNumber(ctx, tx, billInvoices)
		if err != nil {
			return nil, err
		}
		if invoiceNumber != nil {
			row.Particulars = fmt.Sprintf("Invoice #%d", *invoiceNumber)
		} else {
			row.Particulars = "Payment Received"
		}

		row.Balance = RoundCurrency(balance).IntPart()
		rows = append(rows, row)
	}

	return &Statement{
		CustomerID:     customerID,
		Rows:           rows,
		ClosingBalance: balance,
	}, nil
}

// resolveInvoiceNumber applies the documented resolution order: the
// transaction's own field first, then the bill join fallback.
func (e *Engine) resolveInvoiceNumber(ctx context.Context, tx Transaction, cache map[BillID]*int64) (*int64, error) {
	if tx.InvoiceNumber != nil {
		return tx.InvoiceNumber, nil
	}
	if tx.RelatedBillID == "" {
		return nil, nil
	}
	if cached, ok := cache[tx.RelatedBillID]; ok {
		return cached, nil
	}
	bill, err := e.store.GetBill(ctx, tx.RelatedBillID)
	if err != nil {
		return nil, err
	}
	var invoiceNumber *int64
	if bill != nil {
		invoiceNumber = &bill.InvoiceNumber
	}
	cache[tx.RelatedBillID] = invoiceNumber
	return invoiceNumber, nil
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconciliation compares the stored balance with the balance derived from
// replaying the transaction history.
type Reconciliation struct {
	CustomerID CustomerID
	Stored     decimal.Decimal
	Derived    decimal.Decimal
}

// Drift returns Stored - Derived; zero means the ledger is consistent.
func (r Reconciliation) Drift() decimal.Decimal { return r.Stored.Sub(r.Derived) }

// Consistent reports whether the stored balance matches the replay.
func (r Reconciliation) Consistent() bool { return r.Drift().IsZero() }

// Reconcile recomputes the customer's balance from the full transaction
// history and compares it to the stored value.
func (e *Engine) Reconcile(ctx context.Context, customerID CustomerID) (*Reconciliation, error) {
	customer, err := e.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	txs, err := e.store.ListTransactionsByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	derived := decimal.Zero
	for _, tx := range txs {
		if tx.Type == TxDebit {
			derived = derived.Sub(tx.Amount)
		} else {
			derived = derived.Add(tx.Amount)
		}
	}

	return &Reconciliation{
		CustomerID: customerID,
		Stored:     customer.Balance,
		Derived:    derived,
	}, nil
}
