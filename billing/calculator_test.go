package billing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Sarab71/cases-software/billing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func item(model string, qty, rate, discount float64) billing.ItemInput {
	return billing.ItemInput{
		ModelNumber: model,
		Quantity:    dec(qty),
		Rate:        dec(rate),
		Discount:    dec(discount),
	}
}

// =============================================================================
// LINE ITEM ARITHMETIC
// =============================================================================

func TestComputeItem_DiscountApplied(t *testing.T) {
	// GIVEN: rate 100, quantity 2, discount 10%
	// WHEN: Computing the line
	// THEN: net 90, total 180

	line := billing.ComputeItem(item("CASE-100", 2, 100, 10))

	assert.True(t, line.NetAmount.Equal(dec(90)), "net = rate - 10%%, got %s", line.NetAmount)
	assert.True(t, line.TotalAmount.Equal(dec(180)), "total = net * qty, got %s", line.TotalAmount)
}

func TestComputeItem_ZeroDiscountEqualsAbsent(t *testing.T) {
	// GIVEN: The same line with discount 0 and with the zero value
	// WHEN: Computing both
	// THEN: Identical amounts

	explicit := billing.ComputeItem(item("CASE-100", 3, 250, 0))
	absent := billing.ComputeItem(billing.ItemInput{
		ModelNumber: "CASE-100",
		Quantity:    dec(3),
		Rate:        dec(250),
	})

	assert.True(t, explicit.NetAmount.Equal(absent.NetAmount))
	assert.True(t, explicit.TotalAmount.Equal(absent.TotalAmount))
}

func TestComputeItem_FractionalDiscountKeepsPrecision(t *testing.T) {
	// GIVEN: rate 99.99 with a 12.5% discount
	// WHEN: Computing the line
	// THEN: Full precision is kept, no per-line rounding

	line := billing.ComputeItem(item("CASE-200", 1, 99.99, 12.5))

	// 99.99 * 0.125 = 12.49875; net = 87.49125
	assert.True(t, line.NetAmount.Equal(decimal.RequireFromString("87.49125")),
		"got %s", line.NetAmount)
}

// =============================================================================
// GRAND TOTAL
// =============================================================================

func TestComputeGrandTotal_RoundsOnceOnSum(t *testing.T) {
	// GIVEN: Two lines of 0.25 each
	// WHEN: Computing the grand total
	// THEN: The sum 0.5 rounds half away from zero to 1; per-line rounding
	//       would have produced 0

	items := billing.ComputeItems([]billing.ItemInput{
		item("A", 1, 0.25, 0),
		item("B", 1, 0.25, 0),
	})

	total := billing.ComputeGrandTotal(items)
	assert.True(t, total.Equal(dec(1)), "got %s", total)
}

func TestComputeGrandTotal_WholeAmountsUntouched(t *testing.T) {
	items := billing.ComputeItems([]billing.ItemInput{
		item("A", 2, 100, 10), // 180
		item("B", 1, 320, 0),  // 320
	})

	total := billing.ComputeGrandTotal(items)
	assert.True(t, total.Equal(dec(500)), "got %s", total)
}

func TestComputeGrandTotal_EmptyIsZero(t *testing.T) {
	assert.True(t, billing.ComputeGrandTotal(nil).IsZero())
}

// =============================================================================
// ROUNDING POLICY
// =============================================================================

func TestRoundCurrency_HalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"179.5", "180"},
		{"179.4", "179"},
		{"-179.5", "-180"},
		{"0.5", "1"},
	}

	for _, tc := range cases {
		got := billing.RoundCurrency(decimal.RequireFromString(tc.in))
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
			"RoundCurrency(%s) = %s, want %s", tc.in, got, tc.want)
	}
}

// =============================================================================
// DATE RANGE
// =============================================================================

func TestDateRange_EndOfDayInclusive(t *testing.T) {
	// GIVEN: A range ending Jan 31
	// WHEN: Checking instants around the end bound
	// THEN: The whole of Jan 31 is inside, Feb 1 midnight is not

	r := billing.DateRange{
		Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, r.Contains(time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC)))
	assert.True(t, r.Contains(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC)))
}
