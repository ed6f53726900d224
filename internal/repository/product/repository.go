// Package product is the catalog store. Prices are stored as list price plus a
// discount percent; effective prices are always resolved by the caller.
package product

import (
	"context"

	"storefront-orders/internal/domain"
)

type Repository interface {
	ListByProject(ctx context.Context, projectID string) ([]domain.Product, error)
	// GetByID returns domain.ErrNotFound for unknown or malformed ids.
	GetByID(ctx context.Context, projectID, id string) (*domain.Product, error)
	// Upsert inserts or replaces a product by (project, key).
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}
