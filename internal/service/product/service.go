package product

import (
	"context"
	"strings"

	"storefront-orders/internal/domain"
	productrepo "storefront-orders/internal/repository/product"
	"storefront-orders/internal/service/pricing"
)

// View is a catalog product together with its effective price.
type View struct {
	domain.Product
	Price   pricing.Snapshot `json:"price"`
	Images  []string         `json:"images,omitempty"`
	InStock bool             `json:"inStock"`
}

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, projectID string) ([]View, error) {
	products, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(products))
	for _, p := range products {
		out = append(out, view(p))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, projectID, id string) (*View, error) {
	p, err := s.repo.GetByID(ctx, projectID, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	v := view(*p)
	return &v, nil
}

func view(p domain.Product) View {
	return View{Product: p, Price: pricing.Resolve(p), Images: p.Images(), InStock: p.Stock > 0}
}
