// Package token persists opaque customer session tokens (access and refresh).
package token

import (
	"context"
	"time"
)

type Token struct {
	Token      string
	ProjectID  string
	CustomerID string
	// Kind is "access" or "refresh".
	Kind      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, token Token) error
	Get(ctx context.Context, token string) (*Token, error)
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes tokens that expired before now and reports how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
