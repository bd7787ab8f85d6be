/*
calculator.go - Line item and grand total arithmetic

PURPOSE:
  Pure functions computing per-line net amount, per-line total, and the bill
  grand total from raw item inputs. Everything else in the engine builds on
  these; they have no store access and no side effects.

ARITHMETIC:
  netAmount   = rate - rate * discount/100
  totalAmount = netAmount * quantity
  grandTotal  = round(sum of totalAmounts)   -- half away from zero

ROUNDING:
  Rounding happens ONCE, on the final sum. Individual line items keep full
  decimal precision so that a bill's total never drifts depending on how
  many lines it has.

SEE ALSO:
  - engine.go: Calls ComputeItems/ComputeGrandTotal on every bill write
*/
package billing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ItemInput is a raw bill line as submitted by the caller.
type ItemInput struct {
	ModelNumber string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	Discount    decimal.Decimal // percentage 0-100, zero when absent
}

// ComputeItem derives the net and total amounts for a single line.
// A zero discount and an absent discount are arithmetically identical.
func ComputeItem(in ItemInput) BillItem {
	discountAmount := in.Rate.Mul(in.Discount).Div(hundred)
	netAmount := in.Rate.Sub(discountAmount)
	return BillItem{
		ModelNumber: in.ModelNumber,
		Quantity:    in.Quantity,
		Rate:        in.Rate,
		Discount:    in.Discount,
		NetAmount:   netAmount,
		TotalAmount: netAmount.Mul(in.Quantity),
	}
}

// ComputeItems derives all lines in input order.
func ComputeItems(inputs []ItemInput) []BillItem {
	items := make([]BillItem, len(inputs))
	for i, in := range inputs {
		items[i] = ComputeItem(in)
	}
	return items
}

// ComputeGrandTotal sums item totals and rounds the sum to a whole
// currency unit. The only place rounding is applied on the write path.
func ComputeGrandTotal(items []BillItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.TotalAmount)
	}
	return RoundCurrency(sum)
}
