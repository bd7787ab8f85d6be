/*
customers.go - Customer lifecycle operations

PURPOSE:
  Customer CRUD with the deletion guard. Customers are created by direct
  insert; their balance is mutated only by the mutation engine.

DELETION GUARD:
  A customer with a non-zero balance or any bills/transactions cannot be
  deleted. Removing them would orphan ledger records and silently break the
  balance invariant for every aggregate built on top.

SEE ALSO:
  - engine.go: The only writer of the balance field
*/
package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerInput carries the caller-editable customer fields.
type CustomerInput struct {
	Name    string
	Phone   string
	Address string
}

func (in CustomerInput) validate() error {
	if in.Name == "" {
		return invalidf("name", "is required")
	}
	if in.Phone == "" {
		return invalidf("phone", "is required")
	}
	if in.Address == "" {
		return invalidf("address", "is required")
	}
	return nil
}

// CreateCustomer inserts a new customer with a zero balance.
func (e *Engine) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	customer := &Customer{
		ID:        CustomerID(uuid.NewString()),
		Name:      in.Name,
		Phone:     in.Phone,
		Address:   in.Address,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.InsertCustomer(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// GetCustomer returns a customer by id.
func (e *Engine) GetCustomer(ctx context.Context, id CustomerID) (*Customer, error) {
	customer, err := e.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}
	return customer, nil
}

// ListCustomers returns all customers, newest first.
func (e *Engine) ListCustomers(ctx context.Context) ([]Customer, error) {
	return e.store.ListCustomers(ctx)
}

// UpdateCustomer changes name/phone/address. The balance is untouched.
func (e *Engine) UpdateCustomer(ctx context.Context, id CustomerID, in CustomerInput) (*Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *Customer
	err := e.store.WithTx(ctx, func(s Store) error {
		customer, err := s.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		if customer == nil {
			return ErrCustomerNotFound
		}

		customer.Name = in.Name
		customer.Phone = in.Phone
		customer.Address = in.Address
		if err := s.UpdateCustomer(ctx, customer); err != nil {
			return err
		}
		updated = customer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCustomer removes a customer. Refused with ErrCustomerHasHistory
// while the balance is non-zero or any bills/transactions reference them.
func (e *Engine) DeleteCustomer(ctx context.Context, id CustomerID) error {
	return e.store.WithTx(ctx, func(s Store) error {
		customer, err := s.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		if customer == nil {
			return ErrCustomerNotFound
		}

		if !customer.Balance.IsZero() {
			return ErrCustomerHasHistory
		}
		bills, err := s.CountBillsByCustomer(ctx, id)
		if err != nil {
			return err
		}
		txs, err := s.CountTransactionsByCustomer(ctx, id)
		if err != nil {
			return err
		}
		if bills > 0 || txs > 0 {
			return ErrCustomerHasHistory
		}

		return s.DeleteCustomer(ctx, id)
	})
}
