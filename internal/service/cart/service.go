package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/logging"
	cartrepo "storefront-orders/internal/repository/cart"
	"storefront-orders/internal/service/pricing"
)

// Service routes cart operations to the guest or server backing based on the
// owner, so callers never branch on authentication state themselves.
type Service struct {
	server   *serverStore
	guest    *guestStore
	repo     cartRepo
	products productSource
	logger   *zap.Logger
}

func New(repo cartRepo, products productSource, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger).Named("cart")
	return &Service{
		server:   &serverStore{repo: repo, products: products},
		guest:    &guestStore{products: products, logger: logger, now: time.Now},
		repo:     repo,
		products: products,
		logger:   logger,
	}
}

func (s *Service) store(owner Owner) Store {
	if owner.IsGuest() {
		return s.guest
	}
	return s.server
}

func (s *Service) Get(ctx context.Context, owner Owner) (*domain.Cart, error) {
	return s.store(owner).Get(ctx, owner)
}

func (s *Service) AddLine(ctx context.Context, owner Owner, productID string, quantity int) (*domain.Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.Invalid("productId", "product is required")
	}
	if quantity < 1 {
		return nil, domain.Invalid("quantity", "quantity must be at least 1")
	}
	if err := s.store(owner).AddLine(ctx, owner, productID, quantity); err != nil {
		return nil, fmt.Errorf("add cart line: %w", err)
	}
	return s.Get(ctx, owner)
}

// SetLineQuantity replaces a line's quantity. A quantity of zero or less
// removes the line.
func (s *Service) SetLineQuantity(ctx context.Context, owner Owner, productID string, quantity int) (*domain.Cart, error) {
	if err := s.store(owner).SetLineQuantity(ctx, owner, strings.TrimSpace(productID), quantity); err != nil {
		return nil, fmt.Errorf("set cart line quantity: %w", err)
	}
	return s.Get(ctx, owner)
}

func (s *Service) RemoveLine(ctx context.Context, owner Owner, productID string) (*domain.Cart, error) {
	if err := s.store(owner).RemoveLine(ctx, owner, strings.TrimSpace(productID)); err != nil {
		return nil, fmt.Errorf("remove cart line: %w", err)
	}
	return s.Get(ctx, owner)
}

func (s *Service) Clear(ctx context.Context, owner Owner) error {
	if err := s.store(owner).Clear(ctx, owner); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Merge folds the guest cart held in owner.Local into the customer's server
// cart. Quantities of lines present on both sides are summed. Guest lines for
// products that no longer exist are dropped. The guest blob is deleted only
// after the whole batch commits; on failure it is left intact and the error
// wraps domain.ErrMergeConflict so the caller can retry later. Each guest
// cart revision is merged at most once, so a blob that survives a successful
// merge is discarded on the next call instead of being added again.
func (s *Service) Merge(ctx context.Context, owner Owner) (int, error) {
	if owner.IsGuest() {
		return 0, domain.Invalid("customerId", "merge target must be an account")
	}
	if owner.Local == nil {
		return 0, nil
	}
	blob, err := s.guest.load(ctx, Owner{ProjectID: owner.ProjectID, Local: owner.Local})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrMergeConflict, err)
	}
	if len(blob.Lines) == 0 {
		return 0, nil
	}
	log := s.logger.With(zap.String("guest_cart", blob.ID), zap.Int("rev", blob.Rev),
		zap.String("customer_id", owner.CustomerID))

	batch := make([]cartrepo.MergeLine, 0, len(blob.Lines))
	for _, gl := range blob.Lines {
		p, err := s.products.GetByID(ctx, owner.ProjectID, gl.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			log.Info("dropping guest line for missing product", zap.String("product_id", gl.ProductID))
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%w: resolve %s: %w", domain.ErrMergeConflict, gl.ProductID, err)
		}
		batch = append(batch, cartrepo.MergeLine{
			ProductID: p.ID,
			Quantity:  gl.Quantity,
			Snapshot:  pricing.LineSnapshot(*p),
		})
	}

	applied := true
	if len(batch) > 0 {
		applied, err = s.repo.Merge(ctx, owner.ProjectID, owner.CustomerID, cartrepo.GuestRef{ID: blob.ID, Rev: blob.Rev}, batch)
		if err != nil {
			log.Warn("guest cart merge failed", zap.Error(err))
			return 0, fmt.Errorf("%w: %w", domain.ErrMergeConflict, err)
		}
	}
	if err := owner.Local.Delete(ctx); err != nil {
		log.Error("guest cart merged but not discarded", zap.Error(err))
	}
	if !applied {
		log.Info("guest cart already merged; discarding replay")
		return 0, nil
	}
	log.Info("guest cart merged", zap.Int("lines", len(batch)))
	return len(batch), nil
}

// HasGuestLines reports whether local still holds an unmerged guest cart.
func (s *Service) HasGuestLines(ctx context.Context, local LocalStorage) bool {
	if local == nil {
		return false
	}
	blob, err := s.guest.load(ctx, Owner{Local: local})
	return err == nil && len(blob.Lines) > 0
}
