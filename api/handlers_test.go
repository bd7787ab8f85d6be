package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sarab71/cases-software/api"
	"github.com/Sarab71/cases-software/billing"
	memstore "github.com/Sarab71/cases-software/billing/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := billing.NewEngine(memstore.NewMemory())
	server := httptest.NewServer(api.NewRouter(api.NewHandler(engine)))
	t.Cleanup(server.Close)
	return server
}

// doJSON issues a request with an optional JSON body and decodes the JSON
// response into out (when out is non-nil).
func doJSON(t *testing.T, server *httptest.Server, method, path string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createCustomerViaAPI(t *testing.T, server *httptest.Server, name string) string {
	t.Helper()
	var created struct {
		ID string `json:"id"`
	}
	resp := doJSON(t, server, http.MethodPost, "/api/customers", map[string]any{
		"name":    name,
		"phone":   "9876543210",
		"address": "12 Market Road",
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func billPayload(customerID string, invoiceNumber int64) map[string]any {
	return map[string]any{
		"invoiceNumber": invoiceNumber,
		"customerId":    customerID,
		"date":          "2025-03-10",
		"items": []map[string]any{
			{"modelNumber": "CASE-100", "quantity": 2, "rate": 100, "discount": 10},
		},
	}
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealthz(t *testing.T) {
	server := newTestServer(t)

	var body map[string]string
	resp := doJSON(t, server, http.MethodGet, "/healthz", nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestCreateCustomer_API(t *testing.T) {
	server := newTestServer(t)

	var created map[string]any
	resp := doJSON(t, server, http.MethodPost, "/api/customers", map[string]any{
		"name":    "Sharma Traders",
		"phone":   "9876543210",
		"address": "12 Market Road",
	}, &created)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Sharma Traders", created["name"])
	assert.Equal(t, float64(0), created["balance"])
}

func TestCreateCustomer_MissingFields(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/api/customers", map[string]any{
		"name": "No Phone Traders",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateCustomer_DuplicateName_Conflict(t *testing.T) {
	server := newTestServer(t)
	createCustomerViaAPI(t, server, "Sharma Traders")

	resp := doJSON(t, server, http.MethodPost, "/api/customers", map[string]any{
		"name":    "Sharma Traders",
		"phone":   "1",
		"address": "x",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetCustomer_NotFound(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, server, http.MethodGet, "/api/customers/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteCustomer_WithHistory_Conflict(t *testing.T) {
	// GIVEN: A customer with one bill on record
	// WHEN: Deleting the customer
	// THEN: 409, the ledger history protects them

	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Busy Traders")

	resp := doJSON(t, server, http.MethodPost, "/api/bills", billPayload(customerID, 1), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, server, http.MethodDelete, "/api/customers/"+customerID, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// BILLS
// =============================================================================

func TestCreateBill_API(t *testing.T) {
	// GIVEN: A customer
	// WHEN: Posting a bill of 2 x 100 at 10% discount
	// THEN: 201 with the bill, its debit, and the new balance of -180

	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Billed Traders")

	var result struct {
		Bill struct {
			InvoiceNumber int64   `json:"invoiceNumber"`
			GrandTotal    float64 `json:"grandTotal"`
		} `json:"bill"`
		Transaction *struct {
			Type        string  `json:"type"`
			Amount      float64 `json:"amount"`
			Description string  `json:"description"`
		} `json:"transaction"`
		UpdatedBalance *float64 `json:"updatedBalance"`
	}
	resp := doJSON(t, server, http.MethodPost, "/api/bills", billPayload(customerID, 7), &result)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int64(7), result.Bill.InvoiceNumber)
	assert.Equal(t, float64(180), result.Bill.GrandTotal)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, "debit", result.Transaction.Type)
	assert.Equal(t, "Bill Invoice #7", result.Transaction.Description)
	require.NotNil(t, result.UpdatedBalance)
	assert.Equal(t, float64(-180), *result.UpdatedBalance)
}

func TestCreateBill_InvalidBody(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/bills",
		bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateBill_NoItems(t *testing.T) {
	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Empty Traders")

	payload := billPayload(customerID, 1)
	payload["items"] = []map[string]any{}
	resp := doJSON(t, server, http.MethodPost, "/api/bills", payload, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateBill_UnknownCustomer(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/api/bills", billPayload("missing", 1), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateBill_DuplicateInvoiceNumber(t *testing.T) {
	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Dup Traders")

	resp := doJSON(t, server, http.MethodPost, "/api/bills", billPayload(customerID, 5), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, server, http.MethodPost, "/api/bills", billPayload(customerID, 5), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLastInvoiceNumber_API(t *testing.T) {
	server := newTestServer(t)

	var last struct {
		LastInvoiceNumber *int64 `json:"lastInvoiceNumber"`
	}
	resp := doJSON(t, server, http.MethodGet, "/api/bills/last", nil, &last)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, last.LastInvoiceNumber)

	customerID := createCustomerViaAPI(t, server, "Numbered Traders")
	doJSON(t, server, http.MethodPost, "/api/bills", billPayload(customerID, 42), nil)

	resp = doJSON(t, server, http.MethodGet, "/api/bills/last", nil, &last)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, last.LastInvoiceNumber)
	assert.Equal(t, int64(42), *last.LastInvoiceNumber)
}

func TestDeleteBill_API(t *testing.T) {
	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Reversed Traders")

	var created struct {
		Bill struct {
			ID string `json:"id"`
		} `json:"bill"`
	}
	resp := doJSON(t, server, http.MethodPost, "/api/bills", billPayload(customerID, 1), &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var deleted struct {
		Message        string   `json:"message"`
		UpdatedBalance *float64 `json:"updatedBalance"`
	}
	resp = doJSON(t, server, http.MethodDelete, "/api/bills/"+created.Bill.ID, nil, &deleted)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, deleted.UpdatedBalance)
	assert.Equal(t, float64(0), *deleted.UpdatedBalance)

	resp = doJSON(t, server, http.MethodGet, "/api/bills/"+created.Bill.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// PAYMENTS AND TRANSACTIONS
// =============================================================================

func TestCreatePayment_API(t *testing.T) {
	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Paying Traders")

	var result struct {
		Transaction struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"transaction"`
		UpdatedBalance float64 `json:"updatedBalance"`
	}
	resp := doJSON(t, server, http.MethodPost, "/api/payments", map[string]any{
		"customerId": customerID,
		"amount":     250,
	}, &result)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "credit", result.Transaction.Type)
	assert.Equal(t, "Payment Received", result.Transaction.Description)
	assert.Equal(t, float64(250), result.UpdatedBalance)
}

func TestCreatePayment_NonPositiveAmount(t *testing.T) {
	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Zero Traders")

	resp := doJSON(t, server, http.MethodPost, "/api/payments", map[string]any{
		"customerId": customerID,
		"amount":     0,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateTransaction_RejectsUnknownType(t *testing.T) {
	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Typed Traders")

	resp := doJSON(t, server, http.MethodPost, "/api/transactions", map[string]any{
		"customerId": customerID,
		"type":       "refund",
		"amount":     10,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListTransactions_FilterByType(t *testing.T) {
	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Listed Traders")

	doJSON(t, server, http.MethodPost, "/api/bills", billPayload(customerID, 1), nil)
	doJSON(t, server, http.MethodPost, "/api/payments", map[string]any{
		"customerId": customerID,
		"amount":     100,
	}, nil)

	var txs []struct {
		Type string `json:"type"`
	}
	path := fmt.Sprintf("/api/transactions?customerId=%s&type=credit", customerID)
	resp := doJSON(t, server, http.MethodGet, path, nil, &txs)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, txs, 1)
	assert.Equal(t, "credit", txs[0].Type)

	resp = doJSON(t, server, http.MethodGet, "/api/transactions?type=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// STATEMENT AND REPORTS
// =============================================================================

func TestGetStatement_API(t *testing.T) {
	// GIVEN: A bill of 180 and a payment of 100
	// WHEN: Fetching the statement
	// THEN: Two rows with whole-rupee figures and running balances

	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Statement Traders")

	doJSON(t, server, http.MethodPost, "/api/bills", billPayload(customerID, 12), nil)
	doJSON(t, server, http.MethodPost, "/api/payments", map[string]any{
		"customerId": customerID,
		"amount":     100,
		"date":       "2025-03-11",
	}, nil)

	var statement struct {
		Rows []struct {
			Particulars string `json:"particulars"`
			Debit       *int64 `json:"debit"`
			Credit      *int64 `json:"credit"`
			Balance     int64  `json:"balance"`
		} `json:"rows"`
		ClosingBalance float64 `json:"closingBalance"`
	}
	resp := doJSON(t, server, http.MethodGet, "/api/customers/"+customerID+"/statement", nil, &statement)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, statement.Rows, 2)
	assert.Equal(t, "Invoice #12", statement.Rows[0].Particulars)
	require.NotNil(t, statement.Rows[0].Debit)
	assert.Equal(t, int64(180), *statement.Rows[0].Debit)
	assert.Equal(t, int64(-180), statement.Rows[0].Balance)
	assert.Equal(t, "Payment Received", statement.Rows[1].Particulars)
	assert.Equal(t, int64(-80), statement.Rows[1].Balance)
	assert.Equal(t, float64(-80), statement.ClosingBalance)
}

func TestGetSales_API(t *testing.T) {
	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Sales Traders")
	doJSON(t, server, http.MethodPost, "/api/bills", billPayload(customerID, 1), nil)

	var total struct {
		Total float64 `json:"total"`
	}
	resp := doJSON(t, server, http.MethodGet, "/api/sales", nil, &total)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(180), total.Total)

	// Half a window is an error.
	resp = doJSON(t, server, http.MethodGet, "/api/sales?startDate=2025-03-01", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOutstanding_API(t *testing.T) {
	server := newTestServer(t)
	customerID := createCustomerViaAPI(t, server, "Owing Traders")
	doJSON(t, server, http.MethodPost, "/api/bills", billPayload(customerID, 1), nil)

	var total struct {
		Total float64 `json:"total"`
	}
	resp := doJSON(t, server, http.MethodGet, "/api/customers/outstanding", nil, &total)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(-180), total.Total)
}

// =============================================================================
// EXPENSES
// =============================================================================

func TestExpenses_API(t *testing.T) {
	server := newTestServer(t)

	var category struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Expenses []struct {
			ID     string  `json:"id"`
			Amount float64 `json:"amount"`
		} `json:"expenses"`
	}
	resp := doJSON(t, server, http.MethodPost, "/api/expenses", map[string]any{
		"category":    "Rent",
		"description": "March rent",
		"amount":      5000,
	}, &category)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Rent", category.Category)
	require.Len(t, category.Expenses, 1)

	var names []string
	resp = doJSON(t, server, http.MethodGet, "/api/expenses/categories?q=re", nil, &names)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Rent"}, names)

	var total struct {
		Total float64 `json:"total"`
	}
	resp = doJSON(t, server, http.MethodGet, "/api/expenses/total", nil, &total)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5000), total.Total)

	resp = doJSON(t, server, http.MethodDelete, "/api/expenses/"+category.Expenses[0].ID, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, server, http.MethodDelete, "/api/expenses/"+category.Expenses[0].ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
