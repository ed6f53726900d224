package cart

import (
	"context"

	"storefront-orders/internal/domain"
)

// LocalStorage is the client-owned blob store that backs a guest cart. Load
// returns nil when nothing has been saved yet.
type LocalStorage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
	Delete(ctx context.Context) error
}

// Owner identifies whose cart an operation targets. An empty CustomerID means
// the caller is a guest and Local holds the cart.
type Owner struct {
	ProjectID  string
	CustomerID string
	Local      LocalStorage
}

func (o Owner) IsGuest() bool {
	return o.CustomerID == ""
}

// Store is the cart contract shared by the guest and server backings.
type Store interface {
	Get(ctx context.Context, owner Owner) (*domain.Cart, error)
	AddLine(ctx context.Context, owner Owner, productID string, quantity int) error
	SetLineQuantity(ctx context.Context, owner Owner, productID string, quantity int) error
	RemoveLine(ctx context.Context, owner Owner, productID string) error
	Clear(ctx context.Context, owner Owner) error
}

type productSource interface {
	GetByID(ctx context.Context, projectID, id string) (*domain.Product, error)
}
