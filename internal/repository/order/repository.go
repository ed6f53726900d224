package order

import (
	"context"

	"storefront-orders/internal/domain"
)

// MutateFunc receives the order as stored under lock and edits its mutable
// fields in place. Returning an error aborts the write.
type MutateFunc func(o *domain.Order) error

type Repository interface {
	// Create persists the order and its lines and decrements product stock in
	// one transaction. An idempotency key reused within the same scope yields
	// domain.ErrAlreadyExists.
	Create(ctx context.Context, o domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, projectID, id string) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, projectID, scope, key string) (*domain.Order, error)
	// FindBySuffix returns at most limit orders whose id ends with suffix.
	FindBySuffix(ctx context.Context, projectID, suffix string, limit int) ([]domain.Order, error)
	List(ctx context.Context, projectID string, filter domain.OrderFilter) ([]domain.Order, int, error)
	// Update re-reads the order with a row lock, applies fn and writes the
	// mutable fields back before releasing the lock.
	Update(ctx context.Context, projectID, id string, fn MutateFunc) (*domain.Order, error)
}
