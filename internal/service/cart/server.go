package cart

import (
	"context"

	"storefront-orders/internal/domain"
	cartrepo "storefront-orders/internal/repository/cart"
	"storefront-orders/internal/service/pricing"
)

type cartRepo interface {
	Get(ctx context.Context, projectID, customerID string) (*cartrepo.StoredCart, error)
	AddLine(ctx context.Context, projectID, customerID string, line cartrepo.MergeLine) error
	SetLineQuantity(ctx context.Context, projectID, customerID, productID string, quantity int) error
	RemoveLine(ctx context.Context, projectID, customerID, productID string) error
	Clear(ctx context.Context, projectID, customerID string) error
	Merge(ctx context.Context, projectID, customerID string, guest cartrepo.GuestRef, lines []cartrepo.MergeLine) (bool, error)
}

// serverStore keeps customer carts in Postgres.
type serverStore struct {
	repo     cartRepo
	products productSource
}

func (s *serverStore) Get(ctx context.Context, owner Owner) (*domain.Cart, error) {
	stored, err := s.repo.Get(ctx, owner.ProjectID, owner.CustomerID)
	if err != nil {
		return nil, err
	}
	cart := &domain.Cart{
		ProjectID:  owner.ProjectID,
		CustomerID: owner.CustomerID,
		Lines:      make([]domain.CartLine, 0, len(stored.Lines)),
		UpdatedAt:  stored.UpdatedAt,
	}
	for _, sl := range stored.Lines {
		line := domain.CartLine{
			ProductID: sl.ProductID,
			Quantity:  sl.Quantity,
			Snapshot:  sl.Snapshot,
			AddedAt:   sl.AddedAt,
		}
		if sl.Product != nil {
			line.Snapshot = pricing.LineSnapshot(*sl.Product)
		} else {
			line.Stale = true
		}
		cart.Lines = append(cart.Lines, line)
	}
	pricing.Totals(cart)
	return cart, nil
}

func (s *serverStore) AddLine(ctx context.Context, owner Owner, productID string, quantity int) error {
	p, err := s.products.GetByID(ctx, owner.ProjectID, productID)
	if err != nil {
		return err
	}
	return s.repo.AddLine(ctx, owner.ProjectID, owner.CustomerID, cartrepo.MergeLine{
		ProductID: p.ID,
		Quantity:  quantity,
		Snapshot:  pricing.LineSnapshot(*p),
	})
}

func (s *serverStore) SetLineQuantity(ctx context.Context, owner Owner, productID string, quantity int) error {
	return s.repo.SetLineQuantity(ctx, owner.ProjectID, owner.CustomerID, productID, quantity)
}

func (s *serverStore) RemoveLine(ctx context.Context, owner Owner, productID string) error {
	return s.repo.RemoveLine(ctx, owner.ProjectID, owner.CustomerID, productID)
}

func (s *serverStore) Clear(ctx context.Context, owner Owner) error {
	return s.repo.Clear(ctx, owner.ProjectID, owner.CustomerID)
}
