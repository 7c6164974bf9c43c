package customer

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("customer not found")

	ErrAlreadyExists = errors.New("customer ID already taken")
)

type CustomerRepository interface {
	Create(ctx context.Context, customer *Customer) error

	Update(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID string) (*Customer, error)
}
