/*
handlers.go - HTTP API handlers for the billing system

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Bills:
    POST   /api/bills                Create bill (debits the customer)
    GET    /api/bills/last           Highest invoice number issued
    GET    /api/bills/{id}           Get bill
    PATCH  /api/bills/{id}           Update bill (rebalances)
    DELETE /api/bills/{id}           Delete bill (reverses the debit)
    GET    /api/bills/{id}/pdf       Printable invoice document

  Payments:
    POST   /api/payments             Record payment (credits the customer)
    PATCH  /api/payments/{id}        Update payment
    DELETE /api/payments/{id}        Delete payment

  Transactions:
    GET    /api/transactions         Filtered ledger listing
    POST   /api/transactions         Generic debit/credit entry

  Customers:
    GET    /api/customers            List customers
    POST   /api/customers            Create customer
    GET    /api/customers/{id}       Get customer
    PUT    /api/customers/{id}       Update customer
    DELETE /api/customers/{id}       Delete customer (guarded)
    GET    /api/customers/{id}/statement Running-balance statement
    GET    /api/customers/outstanding    Sum of balances

  Reports:
    GET    /api/sales                Debit totals, optional date range

  Expenses:
    POST   /api/expenses             Add expense (creates category on demand)
    GET    /api/expenses             List categories with expenses
    GET    /api/expenses/categories  Category name prefix search
    GET    /api/expenses/total       Expense total, optional date range
    DELETE /api/expenses/{expenseId} Delete one expense

REQUEST FLOW:
  1. Decode JSON body
  2. Structural validation (go-playground/validator)
  3. Call domain logic (engine)
  4. Serialize response
  5. Map domain errors to HTTP statuses

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate invoice number/name, guarded delete)
  - 500: Internal errors (message masked, details logged)

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - billing/errors.go: The error taxonomy mapped here
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Sarab71/cases-software/billing"
	"github.com/Sarab71/cases-software/pdf"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *billing.Engine
	validate *validator.Validate
}

// NewHandler creates a new handler around the billing engine.
func NewHandler(engine *billing.Engine) *Handler {
	return &Handler{
		Engine:   engine,
		validate: validator.New(),
	}
}

// =============================================================================
// BILL HANDLERS
// =============================================================================

// CreateBill creates a bill with its debit transaction and balance update.
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req CreateBillRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format")
		return
	}

	result, err := h.Engine.CreateBill(r.Context(), billing.CreateBillInput{
		InvoiceNumber: req.InvoiceNumber,
		CustomerID:    billing.CustomerID(req.CustomerID),
		Items:         toItemInputs(req.Items),
		Date:          date,
	})
	if err != nil {
		h.writeDomainError(w, err, "Failed to create bill")
		return
	}

	writeJSON(w, http.StatusCreated, toBillMutationDTO(result))
}

// GetBill returns a single bill.
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	id := billing.BillID(chi.URLParam(r, "id"))

	bill, err := h.Engine.GetBill(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "Failed to get bill")
		return
	}

	writeJSON(w, http.StatusOK, toBillDTO(bill))
}

// UpdateBill replaces a bill's items and rebalances the customer.
func (h *Handler) UpdateBill(w http.ResponseWriter, r *http.Request) {
	id := billing.BillID(chi.URLParam(r, "id"))

	var req UpdateBillRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, ok := parseOptionalDate(w, req.Date)
	if !ok {
		return
	}

	result, err := h.Engine.UpdateBill(r.Context(), id, billing.UpdateBillInput{
		Items:         toItemInputs(req.Items),
		InvoiceNumber: req.InvoiceNumber,
		Date:          date,
	})
	if err != nil {
		h.writeDomainError(w, err, "Failed to update bill")
		return
	}

	writeJSON(w, http.StatusOK, toBillMutationDTO(result))
}

// DeleteBill removes a bill and reverses its debit.
func (h *Handler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	id := billing.BillID(chi.URLParam(r, "id"))

	balance, err := h.Engine.DeleteBill(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "Failed to delete bill")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Bill deleted",
		"updatedBalance": floatPtr(balance),
	})
}

// LastInvoiceNumber returns the highest invoice number issued so far.
func (h *Handler) LastInvoiceNumber(w http.ResponseWriter, r *http.Request) {
	last, err := h.Engine.LastInvoiceNumber(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "Failed to get last invoice number")
		return
	}

	writeJSON(w, http.StatusOK, LastInvoiceDTO{LastInvoiceNumber: last})
}

// InvoiceDocument renders a bill as a printable HTML invoice.
func (h *Handler) InvoiceDocument(w http.ResponseWriter, r *http.Request) {
	id := billing.BillID(chi.URLParam(r, "id"))

	bill, err := h.Engine.GetBill(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "Failed to get bill")
		return
	}
	customer, err := h.Engine.GetCustomer(r.Context(), bill.CustomerID)
	if err != nil {
		h.writeDomainError(w, err, "Failed to get customer")
		return
	}

	doc, err := pdf.RenderInvoice(bill, customer)
	if err != nil {
		h.writeDomainError(w, err, "Failed to render invoice")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// CreatePayment records a payment and credits the customer.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, ok := parseOptionalDate(w, req.Date)
	if !ok {
		return
	}

	in := billing.CreatePaymentInput{
		CustomerID:  billing.CustomerID(req.CustomerID),
		Amount:      decimal.NewFromFloat(req.Amount),
		Description: req.Description,
	}
	if date != nil {
		in.Date = *date
	}

	result, err := h.Engine.CreatePayment(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err, "Failed to create payment")
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentMutationDTO(result))
}

// UpdatePayment changes a payment and applies the balance delta.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id := billing.TransactionID(chi.URLParam(r, "id"))

	var req UpdatePaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, ok := parseOptionalDate(w, req.Date)
	if !ok {
		return
	}

	result, err := h.Engine.UpdatePayment(r.Context(), id, billing.UpdatePaymentInput{
		Amount:      decimal.NewFromFloat(req.Amount),
		Description: req.Description,
		Date:        date,
	})
	if err != nil {
		h.writeDomainError(w, err, "Failed to update payment")
		return
	}

	writeJSON(w, http.StatusOK, toPaymentMutationDTO(result))
}

// DeletePayment reverses the credit and removes the payment.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := billing.TransactionID(chi.URLParam(r, "id"))

	if err := h.Engine.DeletePayment(r.Context(), id); err != nil {
		h.writeDomainError(w, err, "Failed to delete payment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Payment deleted"})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns ledger entries, optionally filtered by customer,
// type, and date range (?customerId=&type=&startDate=&endDate=).
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var f billing.TransactionFilter

	if v := r.URL.Query().Get("customerId"); v != "" {
		id := billing.CustomerID(v)
		f.CustomerID = &id
	}
	if v := r.URL.Query().Get("type"); v != "" {
		if v != string(billing.TxDebit) && v != string(billing.TxCredit) {
			writeError(w, http.StatusBadRequest, "type must be debit or credit")
			return
		}
		t := billing.TransactionType(v)
		f.Type = &t
	}
	rng, ok := parseRangeQuery(w, r)
	if !ok {
		return
	}
	f.Range = rng

	txs, err := h.Engine.ListTransactions(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err, "Failed to list transactions")
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i := range txs {
		dtos[i] = toTransactionDTO(&txs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTransaction inserts a generic debit/credit ledger entry.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, ok := parseOptionalDate(w, req.Date)
	if !ok {
		return
	}

	in := billing.CreateTransactionInput{
		CustomerID:    billing.CustomerID(req.CustomerID),
		Type:          billing.TransactionType(req.Type),
		Amount:        decimal.NewFromFloat(req.Amount),
		Description:   req.Description,
		RelatedBillID: billing.BillID(req.RelatedBillID),
	}
	if date != nil {
		in.Date = *date
	}

	result, err := h.Engine.CreateTransaction(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err, "Failed to create transaction")
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentMutationDTO(result))
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns all customers, newest first.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Engine.ListCustomers(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "Failed to list customers")
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i := range customers {
		dtos[i] = toCustomerDTO(&customers[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomer creates a customer with a zero balance.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	customer, err := h.Engine.CreateCustomer(r.Context(), billing.CustomerInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		h.writeDomainError(w, err, "Failed to create customer")
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerDTO(customer))
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := billing.CustomerID(chi.URLParam(r, "id"))

	customer, err := h.Engine.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "Failed to get customer")
		return
	}

	writeJSON(w, http.StatusOK, toCustomerDTO(customer))
}

// UpdateCustomer changes name/phone/address.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id := billing.CustomerID(chi.URLParam(r, "id"))

	var req CustomerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	customer, err := h.Engine.UpdateCustomer(r.Context(), id, billing.CustomerInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		h.writeDomainError(w, err, "Failed to update customer")
		return
	}

	writeJSON(w, http.StatusOK, toCustomerDTO(customer))
}

// DeleteCustomer removes a customer without ledger history.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := billing.CustomerID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteCustomer(r.Context(), id); err != nil {
		h.writeDomainError(w, err, "Failed to delete customer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Customer deleted"})
}

// GetStatement returns the customer's running-balance statement.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id := billing.CustomerID(chi.URLParam(r, "id"))

	statement, err := h.Engine.Statement(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "Failed to build statement")
		return
	}

	// Drift between the stored and replayed balance means something wrote
	// outside the engine. Surface it in the logs, not to the client.
	if rec, err := h.Engine.Reconcile(r.Context(), id); err == nil && !rec.Consistent() {
		slog.Warn("balance drift detected",
			"customer_id", id,
			"stored", rec.Stored.String(),
			"derived", rec.Derived.String(),
			"drift", rec.Drift().String(),
		)
	}

	writeJSON(w, http.StatusOK, toStatementDTO(statement))
}

// GetOutstanding returns the sum of customer balances, optionally windowed
// by last-activity date.
func (h *Handler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	rng, ok := parseRangeQuery(w, r)
	if !ok {
		return
	}

	total, err := h.Engine.TotalOutstanding(r.Context(), rng)
	if err != nil {
		h.writeDomainError(w, err, "Failed to compute outstanding")
		return
	}

	writeJSON(w, http.StatusOK, TotalDTO{Total: total.InexactFloat64()})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetSales returns the debit total, optionally within a date range.
func (h *Handler) GetSales(w http.ResponseWriter, r *http.Request) {
	rng, ok := parseRangeQuery(w, r)
	if !ok {
		return
	}

	total, err := h.Engine.TotalSales(r.Context(), rng)
	if err != nil {
		h.writeDomainError(w, err, "Failed to compute sales")
		return
	}

	writeJSON(w, http.StatusOK, TotalDTO{Total: total.InexactFloat64()})
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// AddExpense records an expense, creating its category on first use.
func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, ok := parseOptionalDate(w, req.Date)
	if !ok {
		return
	}

	in := billing.ExpenseInput{
		Category:    req.Category,
		Description: req.Description,
		Amount:      decimal.NewFromFloat(req.Amount),
	}
	if date != nil {
		in.Date = *date
	}

	category, err := h.Engine.AddExpense(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err, "Failed to add expense")
		return
	}

	writeJSON(w, http.StatusCreated, toCategoryDTO(category))
}

// ListExpenses returns all categories with their expenses.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Engine.ListExpenseCategories(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "Failed to list expenses")
		return
	}

	dtos := make([]ExpenseCategoryDTO, len(categories))
	for i := range categories {
		dtos[i] = toCategoryDTO(&categories[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SearchCategories returns category names matching ?q= as a prefix.
func (h *Handler) SearchCategories(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")

	categories, err := h.Engine.SearchExpenseCategories(r.Context(), prefix, 10)
	if err != nil {
		h.writeDomainError(w, err, "Failed to search categories")
		return
	}

	names := make([]string, len(categories))
	for i, cat := range categories {
		names[i] = cat.Category
	}
	writeJSON(w, http.StatusOK, names)
}

// ExpensesTotal returns the expense total, optionally within a date range.
func (h *Handler) ExpensesTotal(w http.ResponseWriter, r *http.Request) {
	rng, ok := parseRangeQuery(w, r)
	if !ok {
		return
	}

	total, err := h.Engine.TotalExpenses(r.Context(), rng)
	if err != nil {
		h.writeDomainError(w, err, "Failed to compute expense total")
		return
	}

	writeJSON(w, http.StatusOK, TotalDTO{Total: total.InexactFloat64()})
}

// DeleteExpense removes a single expense.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := billing.ExpenseID(chi.URLParam(r, "expenseId"))

	if err := h.Engine.DeleteExpense(r.Context(), id); err != nil {
		h.writeDomainError(w, err, "Failed to delete expense")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Expense deleted"})
}

// =============================================================================
// HELPERS
// =============================================================================

func toBillMutationDTO(m *billing.BillMutation) BillMutationDTO {
	dto := BillMutationDTO{Bill: toBillDTO(m.Bill)}
	if m.Transaction != nil {
		tx := toTransactionDTO(m.Transaction)
		dto.Transaction = &tx
	}
	dto.UpdatedBalance = floatPtr(m.UpdatedBalance)
	return dto
}

func toPaymentMutationDTO(m *billing.PaymentMutation) PaymentMutationDTO {
	return PaymentMutationDTO{
		Transaction:    toTransactionDTO(m.Transaction),
		UpdatedBalance: m.UpdatedBalance.InexactFloat64(),
	}
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// decodeAndValidate decodes the JSON body into req and runs struct
// validation, writing the 400 response itself on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// parseDate accepts RFC3339 or plain YYYY-MM-DD.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// parseOptionalDate parses a nullable date field, writing the 400 response
// itself on failure. The bool reports whether to continue.
func parseOptionalDate(w http.ResponseWriter, s *string) (*time.Time, bool) {
	if s == nil {
		return nil, true
	}
	t, err := parseDate(*s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format")
		return nil, false
	}
	return &t, true
}

// parseRangeQuery reads ?startDate= and ?endDate=; both must be present for
// a window to apply. The bool reports whether to continue.
func parseRangeQuery(w http.ResponseWriter, r *http.Request) (*billing.DateRange, bool) {
	start := r.URL.Query().Get("startDate")
	end := r.URL.Query().Get("endDate")
	if start == "" && end == "" {
		return nil, true
	}
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "startDate and endDate must both be provided")
		return nil, false
	}

	from, err := parseDate(start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid startDate")
		return nil, false
	}
	until, err := parseDate(end)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid endDate")
		return nil, false
	}

	return &billing.DateRange{Start: from, End: until}, true
}

// writeDomainError maps billing errors onto HTTP statuses. Unexpected errors
// are masked with the fallback message and logged.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, billing.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case billing.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
