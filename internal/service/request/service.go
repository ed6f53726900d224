// Package request handles the lightweight order variants: buy-now leads
// placed without checkout and product inquiries.
package request

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/events"
	"storefront-orders/internal/logging"
	requestrepo "storefront-orders/internal/repository/request"
	"storefront-orders/internal/service/lifecycle"
	"storefront-orders/internal/service/pricing"
)

const minPhoneDigits = 8

type requestRepo interface {
	Create(ctx context.Context, r domain.Request) (*domain.Request, error)
	GetByID(ctx context.Context, projectID, id string) (*domain.Request, error)
	List(ctx context.Context, projectID string, filter domain.RequestFilter) ([]domain.Request, int, error)
	Update(ctx context.Context, projectID, id string, fn requestrepo.MutateFunc) (*domain.Request, error)
}

type productSource interface {
	GetByID(ctx context.Context, projectID, id string) (*domain.Product, error)
}

type Publisher interface {
	Publish(ev events.Event)
}

type Service struct {
	repo      requestRepo
	products  productSource
	publisher Publisher
	logger    *zap.Logger
	newID     func() string
	now       func() time.Time
}

func New(repo requestRepo, products productSource, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		publisher: publisher,
		logger:    logging.OrNop(logger).Named("request"),
		newID:     func() string { return ulid.Make().String() },
		now:       time.Now,
	}
}

type OrderRequestInput struct {
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	City           string `json:"city"`
	Address        string `json:"address"`
	Notes          string `json:"notes"`
	ContactConsent bool   `json:"contactConsent"`
}

type InquiryInput struct {
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Message        string `json:"message"`
	ContactConsent bool   `json:"contactConsent"`
}

// CreateOrderRequest records a buy-now lead priced at the current resolved price.
func (s *Service) CreateOrderRequest(ctx context.Context, projectID string, who domain.Identity, in OrderRequestInput) (*domain.Request, error) {
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 1 {
		return nil, domain.Invalid("quantity", "quantity must be at least 1")
	}
	contact, err := requireContact(in.Name, in.Phone)
	if err != nil {
		return nil, err
	}
	contact.City = strings.TrimSpace(in.City)
	contact.Address = strings.TrimSpace(in.Address)

	p, err := s.product(ctx, projectID, in.ProductID)
	if err != nil {
		return nil, err
	}
	if qty > p.Stock {
		return nil, &domain.StockError{ProductID: p.ID, Name: p.Name, Requested: qty, Available: p.Stock}
	}
	snap := pricing.Resolve(*p)

	req := domain.Request{
		ID:             s.newID(),
		ProjectID:      projectID,
		Kind:           domain.KindOrderRequest,
		CustomerID:     customerOf(who),
		ProductID:      p.ID,
		ProductName:    p.Name,
		Quantity:       qty,
		UnitPriceCents: snap.UnitPriceCents,
		TotalCents:     pricing.LineTotal(snap.UnitPriceCents, qty),
		Currency:       p.Currency,
		Contact:        contact,
		Message:        strings.TrimSpace(in.Notes),
		ContactConsent: in.ContactConsent,
		Status:         domain.RequestNew,
	}
	return s.create(ctx, req, who)
}

// CreateInquiry records a "contact me about this product" request.
func (s *Service) CreateInquiry(ctx context.Context, projectID string, who domain.Identity, in InquiryInput) (*domain.Request, error) {
	contact, err := requireContact(in.Name, in.Phone)
	if err != nil {
		return nil, err
	}
	p, err := s.product(ctx, projectID, in.ProductID)
	if err != nil {
		return nil, err
	}
	req := domain.Request{
		ID:             s.newID(),
		ProjectID:      projectID,
		Kind:           domain.KindInquiry,
		CustomerID:     customerOf(who),
		ProductID:      p.ID,
		ProductName:    p.Name,
		Quantity:       1,
		Currency:       p.Currency,
		Contact:        contact,
		Message:        strings.TrimSpace(in.Message),
		ContactConsent: in.ContactConsent,
		Status:         domain.RequestNew,
	}
	return s.create(ctx, req, who)
}

func (s *Service) create(ctx context.Context, req domain.Request, who domain.Identity) (*domain.Request, error) {
	created, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", req.Kind, err)
	}
	s.logger.Info("request created", zap.String("request_id", created.ID), zap.String("kind", string(created.Kind)),
		zap.String("product_id", created.ProductID))
	s.publish(events.RequestCreated, created, who)
	return created, nil
}

func (s *Service) Get(ctx context.Context, projectID, id string, who domain.Identity) (*domain.Request, error) {
	req, err := s.repo.GetByID(ctx, projectID, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	switch who.Role {
	case domain.RoleModerator, domain.RoleAdmin:
		return req, nil
	case domain.RoleDelivery:
		if req.AssignedTo(who.AccountID) {
			return req, nil
		}
	}
	return nil, fmt.Errorf("%w: requests are visible to operators", domain.ErrForbidden)
}

func (s *Service) List(ctx context.Context, projectID string, filter domain.RequestFilter, who domain.Identity) ([]domain.Request, int, error) {
	switch who.Role {
	case domain.RoleModerator, domain.RoleAdmin:
	case domain.RoleDelivery:
		filter.AgentID = who.AccountID
	default:
		return nil, 0, fmt.Errorf("%w: requests are visible to operators", domain.ErrForbidden)
	}
	if filter.Kind != "" {
		if _, ok := lifecycle.ForRequest(filter.Kind); !ok {
			return nil, 0, domain.Invalid("kind", "unknown request kind %q", filter.Kind)
		}
	}
	return s.repo.List(ctx, projectID, filter)
}

// Transition applies the state machine of the request's own kind.
func (s *Service) Transition(ctx context.Context, projectID, id string, to domain.RequestStatus, who domain.Identity) (*domain.Request, error) {
	actor := lifecycle.ActorFrom(who)
	updated, err := s.repo.Update(ctx, projectID, id, func(r *domain.Request) error {
		table, ok := lifecycle.ForRequest(r.Kind)
		if !ok {
			return fmt.Errorf("%w: unknown request kind %q", domain.ErrInvalidTransition, r.Kind)
		}
		if err := table.Check(string(r.Status), string(to), actor, r.AssignedTo(actor.ID)); err != nil {
			return err
		}
		r.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("request status changed", zap.String("request_id", id), zap.String("to", string(to)),
		zap.String("role", string(who.Role)))
	s.publish(events.RequestStatusChanged, updated, who)
	return updated, nil
}

func (s *Service) AssignDelivery(ctx context.Context, projectID, id, agentID, notes string, who domain.Identity) (*domain.Request, error) {
	if who.Role != domain.RoleModerator && who.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only operators assign deliveries", domain.ErrForbidden)
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, domain.Invalid("agentId", "delivery agent is required")
	}
	return s.repo.Update(ctx, projectID, id, func(r *domain.Request) error {
		table, _ := lifecycle.ForRequest(r.Kind)
		if table.Terminal(string(r.Status)) {
			return fmt.Errorf("%w: request is %s", domain.ErrInvalidTransition, r.Status)
		}
		r.Delivery = &domain.DeliveryAssignment{
			AgentID:    agentID,
			Status:     domain.DeliveryAssigned,
			Notes:      strings.TrimSpace(notes),
			AssignedAt: s.now().UTC(),
		}
		return nil
	})
}

func (s *Service) product(ctx context.Context, projectID, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.Invalid("productId", "product is required")
	}
	p, err := s.products.GetByID(ctx, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", id, err)
	}
	return p, nil
}

func (s *Service) publish(typ string, r *domain.Request, who domain.Identity) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.Event{
		Type:      typ,
		ProjectID: r.ProjectID,
		ID:        r.ID,
		Status:    string(r.Status),
		Actor:     who.AccountID,
		Data:      r,
	})
}

func requireContact(name, phone string) (domain.Contact, error) {
	c := domain.Contact{Name: strings.TrimSpace(name), Phone: strings.TrimSpace(phone)}
	if c.Name == "" {
		return c, domain.Invalid("name", "name is required")
	}
	if c.Phone == "" {
		return c, domain.Invalid("phone", "phone is required")
	}
	if len(domain.PhoneDigits(c.Phone)) < minPhoneDigits {
		return c, domain.Invalid("phone", "phone number must contain at least %d digits", minPhoneDigits)
	}
	return c, nil
}

func customerOf(who domain.Identity) *string {
	if who.Role != domain.RoleCustomer || who.AccountID == "" {
		return nil
	}
	id := who.AccountID
	return &id
}
