// Package project stores storefront projects. Every other record is scoped to
// one project and every route resolves its project key first.
package project

import (
	"context"

	"storefront-orders/internal/domain"
)

type Repository interface {
	// GetByKey returns domain.ErrNotFound for unknown keys.
	GetByKey(ctx context.Context, key string) (*domain.Project, error)
	// Ensure is idempotent; seeding and importing call it on every run.
	Ensure(ctx context.Context, key, name string) (*domain.Project, error)
}
