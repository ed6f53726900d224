package customer

import (
	"context"

	"storefront-orders/internal/domain"
)

// Repository persists and fetches customers.
type Repository interface {
	Create(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetByEmail(ctx context.Context, projectID, email string) (*domain.Customer, error)
	GetByID(ctx context.Context, projectID, id string) (*domain.Customer, error)
	// UpdateContact applies fn to the locked row and stores its name and
	// contact fields.
	UpdateContact(ctx context.Context, projectID, id string, fn func(*domain.Customer)) (*domain.Customer, error)
}
