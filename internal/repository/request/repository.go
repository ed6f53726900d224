package request

import (
	"context"

	"storefront-orders/internal/domain"
)

type MutateFunc func(r *domain.Request) error

type Repository interface {
	Create(ctx context.Context, r domain.Request) (*domain.Request, error)
	GetByID(ctx context.Context, projectID, id string) (*domain.Request, error)
	List(ctx context.Context, projectID string, filter domain.RequestFilter) ([]domain.Request, int, error)
	// Update applies fn to the locked row and persists status, delivery and consent.
	Update(ctx context.Context, projectID, id string, fn MutateFunc) (*domain.Request, error)
}
