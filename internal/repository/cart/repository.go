package cart

import (
	"context"
	"time"

	"storefront-orders/internal/domain"
)

// StoredLine is a persisted cart line joined with the live product row.
// Product is nil when the product no longer exists.
type StoredLine struct {
	ProductID string
	Quantity  int
	Snapshot  domain.LineSnapshot
	AddedAt   time.Time
	Product   *domain.Product
}

// StoredCart is a server cart as persisted.
type StoredCart struct {
	ProjectID  string
	CustomerID string
	Lines      []StoredLine
	UpdatedAt  time.Time
}

// MergeLine is one guest line applied during reconciliation.
type MergeLine struct {
	ProductID string
	Quantity  int
	Snapshot  domain.LineSnapshot
}

// GuestRef identifies one revision of a guest cart blob. A merge of the same
// revision into the same customer's cart is applied at most once.
type GuestRef struct {
	ID  string
	Rev int
}

// Repository persists one cart per (project, customer). Every mutation locks
// the cart row for the duration of its transaction.
type Repository interface {
	Get(ctx context.Context, projectID, customerID string) (*StoredCart, error)
	AddLine(ctx context.Context, projectID, customerID string, line MergeLine) error
	SetLineQuantity(ctx context.Context, projectID, customerID, productID string, quantity int) error
	RemoveLine(ctx context.Context, projectID, customerID, productID string) error
	Clear(ctx context.Context, projectID, customerID string) error
	// Merge reports false without touching the cart when guest was already
	// merged into it. An empty guest.ID is never recorded.
	Merge(ctx context.Context, projectID, customerID string, guest GuestRef, lines []MergeLine) (bool, error)
}
