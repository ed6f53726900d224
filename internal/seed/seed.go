// Package seed loads a small demo catalog for manual testing.
package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/logging"
	customersvc "storefront-orders/internal/service/customer"
)

const (
	ProjectKey  = "demo"
	projectName = "Demo Storefront"

	DemoCustomerEmail    = "demo@example.com"
	DemoCustomerPassword = "demo-password"
)

type projectEnsurer interface {
	Ensure(ctx context.Context, key, name string) (*domain.Project, error)
}

type productWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type customerSignup interface {
	Signup(ctx context.Context, projectID string, in customersvc.SignupInput) (*domain.Customer, customersvc.Session, error)
}

var demoProducts = []domain.Product{
	{
		Key:            "demo-shirt",
		SKU:            "SKU-DEMO-TSHIRT",
		Name:           "Demo T-Shirt",
		Description:    "Soft cotton tee for demo purposes",
		ListPriceCents: 1999,
		Stock:          25,
		Currency:       "EUR",
	},
	{
		Key:             "demo-mug",
		SKU:             "SKU-DEMO-MUG",
		Name:            "Demo Mug",
		Description:     "Ceramic mug with demo logo",
		ListPriceCents:  1299,
		DiscountPercent: 15,
		Stock:           40,
		Currency:        "EUR",
	},
	{
		Key:             "demo-lamp",
		SKU:             "SKU-DEMO-LAMP",
		Name:            "Demo Desk Lamp",
		Description:     "Last one in the warehouse",
		ListPriceCents:  4500,
		DiscountPercent: 30,
		Stock:           1,
		Currency:        "EUR",
	},
	{
		Key:            "demo-poster",
		SKU:            "SKU-DEMO-POSTER",
		Name:           "Demo Poster",
		ListPriceCents: 990,
		Currency:       "EUR",
	},
}

// Apply creates the demo project, its catalog and one demo customer. Running it
// again refreshes prices and stock and keeps the existing customer.
func Apply(ctx context.Context, projects projectEnsurer, products productWriter, customers customerSignup, logger *zap.Logger) (*domain.Project, error) {
	logger = logging.OrNop(logger)

	proj, err := projects.Ensure(ctx, ProjectKey, projectName)
	if err != nil {
		return nil, fmt.Errorf("ensure project: %w", err)
	}

	for _, p := range demoProducts {
		p.ProjectID = proj.ID
		saved, err := products.Upsert(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("upsert product %s: %w", p.Key, err)
		}
		logger.Info("product seeded", zap.String("key", saved.Key), zap.String("id", saved.ID), zap.Int("stock", saved.Stock))
	}

	_, _, err = customers.Signup(ctx, proj.ID, customersvc.SignupInput{
		Email:     DemoCustomerEmail,
		Password:  DemoCustomerPassword,
		FirstName: "Demo",
		LastName:  "Customer",
		Phone:     "+385 91 000 0000",
		City:      "Zagreb",
		Address:   "Ilica 1",
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		logger.Info("demo customer already exists", zap.String("email", DemoCustomerEmail))
	case err != nil:
		return nil, fmt.Errorf("seed customer: %w", err)
	default:
		logger.Info("demo customer seeded", zap.String("email", DemoCustomerEmail))
	}
	return proj, nil
}
