/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts cross the wire as JSON numbers. Conversion to and from
  decimal.Decimal happens here and only here; everything behind this
  boundary is exact decimal arithmetic.

VALIDATION:
  Structural validation (required fields, ranges) lives in the validate
  struct tags, checked with go-playground/validator in the handlers.
  Domain rules (uniqueness, existence) stay in the billing package.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/types.go: The domain model these map onto
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sarab71/cases-software/billing"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// BillItemRequest is one line item in a bill create/update.
type BillItemRequest struct {
	ModelNumber string  `json:"modelNumber" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	Rate        float64 `json:"rate" validate:"gte=0"`
	Discount    float64 `json:"discount" validate:"gte=0,lte=100"`
}

// CreateBillRequest is the request to create a bill.
type CreateBillRequest struct {
	InvoiceNumber int64             `json:"invoiceNumber" validate:"required,gt=0"`
	CustomerID    string            `json:"customerId" validate:"required"`
	Items         []BillItemRequest `json:"items" validate:"required,min=1,dive"`
	Date          string            `json:"date" validate:"required"`
}

// UpdateBillRequest replaces a bill's items; invoice number and date are
// optional.
type UpdateBillRequest struct {
	Items         []BillItemRequest `json:"items" validate:"required,min=1,dive"`
	InvoiceNumber *int64            `json:"invoiceNumber" validate:"omitempty,gt=0"`
	Date          *string           `json:"date"`
}

// CreatePaymentRequest records money received from a customer.
type CreatePaymentRequest struct {
	CustomerID  string  `json:"customerId" validate:"required"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Description string  `json:"description"`
	Date        *string `json:"date"`
}

// UpdatePaymentRequest changes a payment's amount and optionally its
// description and date.
type UpdatePaymentRequest struct {
	Amount      float64 `json:"amount" validate:"gt=0"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
}

// CreateTransactionRequest is the generic ledger entry point.
type CreateTransactionRequest struct {
	CustomerID    string  `json:"customerId" validate:"required"`
	Type          string  `json:"type" validate:"required,oneof=debit credit"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	Description   string  `json:"description"`
	RelatedBillID string  `json:"relatedBillId"`
	Date          *string `json:"date"`
}

// CustomerRequest carries the caller-editable customer fields.
type CustomerRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
}

// ExpenseRequest records one spend under a category.
type ExpenseRequest struct {
	Category    string  `json:"category" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Date        *string `json:"date"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Phone     string  `json:"phone"`
	Address   string  `json:"address"`
	Balance   float64 `json:"balance"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// BillItemDTO is one line item in a bill response.
type BillItemDTO struct {
	ModelNumber string  `json:"modelNumber"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	Discount    float64 `json:"discount"`
	NetAmount   float64 `json:"netAmount"`
	TotalAmount float64 `json:"totalAmount"`
}

// BillDTO represents a bill in API responses.
type BillDTO struct {
	ID            string        `json:"id"`
	InvoiceNumber int64         `json:"invoiceNumber"`
	CustomerID    string        `json:"customerId"`
	Date          string        `json:"date"`
	Items         []BillItemDTO `json:"items"`
	GrandTotal    float64       `json:"grandTotal"`
	CreatedAt     string        `json:"createdAt"`
}

// TransactionDTO represents a ledger entry in API responses.
type TransactionDTO struct {
	ID            string  `json:"id"`
	CustomerID    string  `json:"customerId"`
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	Description   string  `json:"description"`
	RelatedBillID string  `json:"relatedBillId,omitempty"`
	InvoiceNumber *int64  `json:"invoiceNumber,omitempty"`
	CreatedAt     string  `json:"createdAt"`
}

// BillMutationDTO is the outcome of a bill create/update.
type BillMutationDTO struct {
	Bill           BillDTO         `json:"bill"`
	Transaction    *TransactionDTO `json:"transaction,omitempty"`
	UpdatedBalance *float64        `json:"updatedBalance"`
}

// PaymentMutationDTO is the outcome of a payment or generic transaction
// create/update.
type PaymentMutationDTO struct {
	Transaction    TransactionDTO `json:"transaction"`
	UpdatedBalance float64        `json:"updatedBalance"`
}

// StatementRowDTO is one display line of a customer statement.
type StatementRowDTO struct {
	Date        string `json:"date"`
	Particulars string `json:"particulars"`
	Debit       *int64 `json:"debit"`
	Credit      *int64 `json:"credit"`
	Balance     int64  `json:"balance"`
}

// StatementDTO is the full statement for one customer.
type StatementDTO struct {
	CustomerID     string            `json:"customerId"`
	Rows           []StatementRowDTO `json:"rows"`
	ClosingBalance float64           `json:"closingBalance"`
}

// ExpenseDTO represents a single expense in API responses.
type ExpenseDTO struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	CreatedAt   string  `json:"createdAt"`
}

// ExpenseCategoryDTO represents a category with its expenses.
type ExpenseCategoryDTO struct {
	ID        string       `json:"id"`
	Category  string       `json:"category"`
	Expenses  []ExpenseDTO `json:"expenses"`
	CreatedAt string       `json:"createdAt"`
}

// TotalDTO wraps a single aggregate amount.
type TotalDTO struct {
	Total float64 `json:"total"`
}

// LastInvoiceDTO wraps the highest issued invoice number.
type LastInvoiceDTO struct {
	LastInvoiceNumber *int64 `json:"lastInvoiceNumber"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toCustomerDTO(c *billing.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		Phone:     c.Phone,
		Address:   c.Address,
		Balance:   c.Balance.InexactFloat64(),
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func toBillDTO(b *billing.Bill) BillDTO {
	items := make([]BillItemDTO, len(b.Items))
	for i, item := range b.Items {
		items[i] = BillItemDTO{
			ModelNumber: item.ModelNumber,
			Quantity:    item.Quantity.InexactFloat64(),
			Rate:        item.Rate.InexactFloat64(),
			Discount:    item.Discount.InexactFloat64(),
			NetAmount:   item.NetAmount.InexactFloat64(),
			TotalAmount: item.TotalAmount.InexactFloat64(),
		}
	}
	return BillDTO{
		ID:            string(b.ID),
		InvoiceNumber: b.InvoiceNumber,
		CustomerID:    string(b.CustomerID),
		Date:          b.Date.Format(time.RFC3339),
		Items:         items,
		GrandTotal:    b.GrandTotal.InexactFloat64(),
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx *billing.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:            string(tx.ID),
		CustomerID:    string(tx.CustomerID),
		Type:          string(tx.Type),
		Amount:        tx.Amount.InexactFloat64(),
		Date:          tx.Date.Format(time.RFC3339),
		Description:   tx.Description,
		RelatedBillID: string(tx.RelatedBillID),
		InvoiceNumber: tx.InvoiceNumber,
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
}

func toStatementDTO(s *billing.Statement) StatementDTO {
	rows := make([]StatementRowDTO, len(s.Rows))
	for i, row := range s.Rows {
		rows[i] = StatementRowDTO{
			Date:        row.Date.Format(time.RFC3339),
			Particulars: row.Particulars,
			Debit:       row.Debit,
			Credit:      row.Credit,
			Balance:     row.Balance,
		}
	}
	return StatementDTO{
		CustomerID:     string(s.CustomerID),
		Rows:           rows,
		ClosingBalance: s.ClosingBalance.InexactFloat64(),
	}
}

func toCategoryDTO(cat *billing.ExpenseCategory) ExpenseCategoryDTO {
	expenses := make([]ExpenseDTO, len(cat.Expenses))
	for i, e := range cat.Expenses {
		expenses[i] = ExpenseDTO{
			ID:          string(e.ID),
			Description: e.Description,
			Amount:      e.Amount.InexactFloat64(),
			Date:        e.Date.Format(time.RFC3339),
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		}
	}
	return ExpenseCategoryDTO{
		ID:        string(cat.ID),
		Category:  cat.Category,
		Expenses:  expenses,
		CreatedAt: cat.CreatedAt.Format(time.RFC3339),
	}
}

func toItemInputs(items []BillItemRequest) []billing.ItemInput {
	inputs := make([]billing.ItemInput, len(items))
	for i, item := range items {
		inputs[i] = billing.ItemInput{
			ModelNumber: item.ModelNumber,
			Quantity:    decimal.NewFromFloat(item.Quantity),
			Rate:        decimal.NewFromFloat(item.Rate),
			Discount:    decimal.NewFromFloat(item.Discount),
		}
	}
	return inputs
}
