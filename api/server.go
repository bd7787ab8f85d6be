/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/bills/*         Bill lifecycle + invoice documents
  /api/payments/*      Payment lifecycle
  /api/transactions/*  Ledger listing and generic entries
  /api/customers/*     Customer management, statements, outstanding
  /api/sales           Sales reporting
  /api/expenses/*      Expense tracking
  /healthz             Liveness probe

ROUTE ORDER NOTE:
  Literal routes (/bills/last, /customers/outstanding) are registered
  before their {id} siblings so chi resolves them first.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Bill routes
		r.Route("/bills", func(r chi.Router) {
			r.Post("/", h.CreateBill)
			r.Get("/last", h.LastInvoiceNumber)
			r.Get("/{id}", h.GetBill)
			r.Patch("/{id}", h.UpdateBill)
			r.Delete("/{id}", h.DeleteBill)
			r.Get("/{id}/pdf", h.InvoiceDocument)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.CreatePayment)
			r.Patch("/{id}", h.UpdatePayment)
			r.Delete("/{id}", h.DeletePayment)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
		})

		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/outstanding", h.GetOutstanding)
			r.Get("/{id}", h.GetCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
			r.Get("/{id}/statement", h.GetStatement)
		})

		// Report routes
		r.Get("/sales", h.GetSales)

		// Expense routes
		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", h.AddExpense)
			r.Get("/", h.ListExpenses)
			r.Get("/categories", h.SearchCategories)
			r.Get("/total", h.ExpensesTotal)
			r.Delete("/{expenseId}", h.DeleteExpense)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
