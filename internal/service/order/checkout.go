package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/events"
	"storefront-orders/internal/service/cart"
	"storefront-orders/internal/service/pricing"
)

type LineInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type DeliveryInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	City    string `json:"city"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

// CardInput is accepted for card orders. The number is reduced to its last
// four digits before anything is stored.
type CardInput struct {
	Holder string `json:"holder"`
	Number string `json:"number"`
	Expiry string `json:"expiry"`
}

type CheckoutInput struct {
	Identity domain.Identity
	Owner    cart.Owner
	Source   domain.OrderSource
	// Lines overrides the cart contents for a cart checkout.
	Lines []LineInput
	// ProductID and Quantity describe a buy-now order.
	ProductID        string
	Quantity         int
	PaymentMethod    string
	Delivery         DeliveryInput
	Card             *CardInput
	ContactConsent   bool
	ClientTotalCents *int64
	IdempotencyKey   string
}

// Checkout turns a cart or a single buy-now product into an order. Prices and
// stock are read from the catalog now; anything the client sent about price
// is ignored. On success the cart it came from is emptied.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*domain.Order, error) {
	projectID := in.Owner.ProjectID
	key := strings.TrimSpace(in.IdempotencyKey)
	var scope, fingerprint string
	if key != "" {
		scope, fingerprint = idempotencyScope(in), requestFingerprint(in)
		existing, err := s.replay(ctx, projectID, scope, key, fingerprint)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	source, lines, err := s.checkoutLines(ctx, in)
	if err != nil {
		return nil, err
	}
	method, card, err := normalizePayment(in.PaymentMethod, in.Card)
	if err != nil {
		return nil, err
	}
	contact, customerID, err := s.contact(ctx, in)
	if err != nil {
		return nil, err
	}

	o := domain.Order{
		ID:             s.newID(),
		ProjectID:      projectID,
		CustomerID:     customerID,
		Contact:        contact,
		Notes:          strings.TrimSpace(in.Delivery.Notes),
		PaymentMethod:  method,
		PaymentStatus:  "unpaid",
		Card:           card,
		Source:         source,
		Status:         domain.OrderStatusNew,
		ContactConsent: in.ContactConsent,
		IdempotencyKey: key,
		Lines:          make([]domain.OrderLine, 0, len(lines)),

		IdempotencyScope:   scope,
		RequestFingerprint: fingerprint,
	}
	for _, l := range lines {
		p, err := s.products.GetByID(ctx, projectID, l.ProductID)
		if err != nil {
			if isNotFound(err) {
				return nil, fmt.Errorf("product %s: %w", l.ProductID, domain.ErrNotFound)
			}
			return nil, fmt.Errorf("load product %s: %w", l.ProductID, err)
		}
		if l.Quantity > p.Stock {
			return nil, &domain.StockError{ProductID: p.ID, Name: p.Name, Requested: l.Quantity, Available: p.Stock}
		}
		if o.Currency == "" {
			o.Currency = p.Currency
		} else if p.Currency != o.Currency {
			return nil, domain.Invalid("lines", "all items must be priced in %s", o.Currency)
		}
		snap := pricing.Resolve(*p)
		line := domain.OrderLine{
			ProductID:       p.ID,
			SKU:             p.SKU,
			Name:            p.Name,
			Quantity:        l.Quantity,
			ListPriceCents:  snap.ListPriceCents,
			DiscountPercent: snap.DiscountPercent,
			UnitPriceCents:  snap.UnitPriceCents,
			LineTotalCents:  pricing.LineTotal(snap.UnitPriceCents, l.Quantity),
		}
		o.TotalCents += line.LineTotalCents
		o.Lines = append(o.Lines, line)
	}
	if in.ClientTotalCents != nil && *in.ClientTotalCents != o.TotalCents {
		s.logger.Warn("client total differs from server total",
			zap.Int64("client_total_cents", *in.ClientTotalCents), zap.Int64("total_cents", o.TotalCents))
	}

	created, err := s.orders.Create(ctx, o)
	if errors.Is(err, domain.ErrAlreadyExists) && key != "" {
		// A concurrent retry with the same key won the insert.
		existing, rerr := s.replay(ctx, projectID, scope, key, fingerprint)
		if rerr != nil || existing != nil {
			return existing, rerr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if source == domain.SourceCart && s.carts != nil {
		if err := s.carts.Clear(ctx, in.Owner); err != nil {
			s.logger.Error("order placed but cart not cleared", zap.String("order_id", created.ID), zap.Error(err))
		}
	}
	s.logger.Info("checkout completed", zap.String("order_id", created.ID), zap.String("source", string(source)),
		zap.String("payment_method", string(method)), zap.Int64("total_cents", created.TotalCents))
	s.publish(events.OrderCreated, created, in.Identity)
	return created, nil
}

func (s *Service) checkoutLines(ctx context.Context, in CheckoutInput) (domain.OrderSource, []LineInput, error) {
	source := in.Source
	if source == "" {
		source = domain.SourceCart
		if strings.TrimSpace(in.ProductID) != "" {
			source = domain.SourceBuyNow
		}
	}

	var raw []LineInput
	switch source {
	case domain.SourceBuyNow:
		qty := in.Quantity
		if qty == 0 {
			qty = 1
		}
		raw = []LineInput{{ProductID: in.ProductID, Quantity: qty}}
	case domain.SourceCart:
		raw = in.Lines
		if len(raw) == 0 && s.carts != nil {
			c, err := s.carts.Get(ctx, in.Owner)
			if err != nil {
				return "", nil, fmt.Errorf("load cart: %w", err)
			}
			for _, l := range c.Lines {
				raw = append(raw, LineInput{ProductID: l.ProductID, Quantity: l.Quantity})
			}
		}
	default:
		return "", nil, domain.Invalid("source", "unknown order source %q", in.Source)
	}

	lines, err := normalizeLines(raw)
	if err != nil {
		return "", nil, err
	}
	return source, lines, nil
}

func (s *Service) contact(ctx context.Context, in CheckoutInput) (domain.Contact, *string, error) {
	if in.Identity.Role != domain.RoleCustomer || in.Identity.AccountID == "" {
		c, err := guestContact(in.Delivery)
		return c, nil, err
	}
	var account *domain.Customer
	if s.customers != nil {
		acc, err := s.customers.GetByID(ctx, in.Owner.ProjectID, in.Identity.AccountID)
		if err != nil && !isNotFound(err) {
			return domain.Contact{}, nil, fmt.Errorf("load customer: %w", err)
		}
		account = acc
	}
	c, err := customerContact(in.Delivery, account)
	if err != nil {
		return c, nil, err
	}
	id := in.Identity.AccountID
	return c, &id, nil
}
