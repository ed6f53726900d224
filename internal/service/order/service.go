package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/events"
	"storefront-orders/internal/logging"
	orderrepo "storefront-orders/internal/repository/order"
	"storefront-orders/internal/service/cart"
	"storefront-orders/internal/service/lifecycle"
)

type orderRepo interface {
	Create(ctx context.Context, o domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, projectID, id string) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, projectID, scope, key string) (*domain.Order, error)
	List(ctx context.Context, projectID string, filter domain.OrderFilter) ([]domain.Order, int, error)
	Update(ctx context.Context, projectID, id string, fn orderrepo.MutateFunc) (*domain.Order, error)
}

type productSource interface {
	GetByID(ctx context.Context, projectID, id string) (*domain.Product, error)
}

type customerSource interface {
	GetByID(ctx context.Context, projectID, id string) (*domain.Customer, error)
}

type cartStore interface {
	Get(ctx context.Context, owner cart.Owner) (*domain.Cart, error)
	Clear(ctx context.Context, owner cart.Owner) error
}

// Publisher receives order change notifications.
type Publisher interface {
	Publish(ev events.Event)
}

type Service struct {
	orders    orderRepo
	products  productSource
	customers customerSource
	carts     cartStore
	publisher Publisher
	logger    *zap.Logger
	newID     func() string
	now       func() time.Time
}

func New(orders orderRepo, products productSource, customers customerSource, carts cartStore, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{
		orders:    orders,
		products:  products,
		customers: customers,
		carts:     carts,
		publisher: publisher,
		logger:    logging.OrNop(logger).Named("order"),
		newID:     func() string { return ulid.Make().String() },
		now:       time.Now,
	}
}

// Get returns an order the caller is allowed to see. Customers only see their
// own orders and delivery agents only those assigned to them.
func (s *Service) Get(ctx context.Context, projectID, id string, who domain.Identity) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, projectID, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if err := canView(o, who); err != nil {
		return nil, err
	}
	return o, nil
}

func canView(o *domain.Order, who domain.Identity) error {
	switch who.Role {
	case domain.RoleModerator, domain.RoleAdmin:
		return nil
	case domain.RoleDelivery:
		if o.AssignedTo(who.AccountID) {
			return nil
		}
		return fmt.Errorf("%w: order is not assigned to you", domain.ErrForbidden)
	case domain.RoleCustomer:
		if o.OwnedBy(who.AccountID) {
			return nil
		}
		return domain.ErrNotFound
	}
	return domain.ErrUnauthorized
}

// List scopes the filter to what the caller may see.
func (s *Service) List(ctx context.Context, projectID string, filter domain.OrderFilter, who domain.Identity) ([]domain.Order, int, error) {
	switch who.Role {
	case domain.RoleModerator, domain.RoleAdmin:
	case domain.RoleDelivery:
		filter.AgentID = who.AccountID
	case domain.RoleCustomer:
		filter.CustomerID = who.AccountID
	default:
		return nil, 0, domain.ErrUnauthorized
	}
	if filter.Status != "" && !lifecycle.Orders.Known(string(filter.Status)) {
		return nil, 0, domain.Invalid("status", "unknown order status %q", filter.Status)
	}
	return s.orders.List(ctx, projectID, filter)
}

// Transition moves an order to a new status after re-reading it under lock.
func (s *Service) Transition(ctx context.Context, projectID, id string, to domain.OrderStatus, who domain.Identity) (*domain.Order, error) {
	actor := lifecycle.ActorFrom(who)
	var from domain.OrderStatus
	updated, err := s.orders.Update(ctx, projectID, id, func(o *domain.Order) error {
		from = o.Status
		if err := lifecycle.Orders.Check(string(o.Status), string(to), actor, o.AssignedTo(actor.ID)); err != nil {
			return err
		}
		o.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order status changed", zap.String("order_id", id), zap.String("from", string(from)),
		zap.String("to", string(to)), zap.String("role", string(who.Role)), zap.String("actor", who.AccountID))
	s.publish(events.OrderStatusChanged, updated, who)
	return updated, nil
}

// AssignDelivery hands an open order to a delivery agent. Only operators assign.
func (s *Service) AssignDelivery(ctx context.Context, projectID, id, agentID, notes string, who domain.Identity) (*domain.Order, error) {
	if who.Role != domain.RoleModerator && who.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only operators assign deliveries", domain.ErrForbidden)
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, domain.Invalid("agentId", "delivery agent is required")
	}
	updated, err := s.orders.Update(ctx, projectID, id, func(o *domain.Order) error {
		if lifecycle.Orders.Terminal(string(o.Status)) {
			return fmt.Errorf("%w: order is %s", domain.ErrInvalidTransition, o.Status)
		}
		if o.Delivery != nil && o.Delivery.Status == domain.DeliveryDelivered {
			return fmt.Errorf("%w: order was already delivered", domain.ErrInvalidTransition)
		}
		o.Delivery = &domain.DeliveryAssignment{
			AgentID:    agentID,
			Status:     domain.DeliveryAssigned,
			Notes:      strings.TrimSpace(notes),
			AssignedAt: s.now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("delivery assigned", zap.String("order_id", id), zap.String("agent_id", agentID), zap.String("by", who.AccountID))
	s.publish(events.OrderDeliveryChanged, updated, who)
	return updated, nil
}

// Claim lets a delivery agent pick up an order an operator has assigned to
// them and start processing it. Assignments are only created by operators, so
// an unassigned order or one held by another agent is refused. Claiming an
// order that is already processing is a no-op.
func (s *Service) Claim(ctx context.Context, projectID, id string, who domain.Identity) (*domain.Order, error) {
	if who.Role != domain.RoleDelivery || who.AccountID == "" {
		return nil, fmt.Errorf("%w: only delivery agents claim orders", domain.ErrForbidden)
	}
	actor := lifecycle.ActorFrom(who)
	updated, err := s.orders.Update(ctx, projectID, id, func(o *domain.Order) error {
		if lifecycle.Orders.Terminal(string(o.Status)) {
			return fmt.Errorf("%w: order is %s", domain.ErrInvalidTransition, o.Status)
		}
		if o.Delivery == nil {
			return fmt.Errorf("%w: order has not been assigned for delivery", domain.ErrForbidden)
		}
		if !o.AssignedTo(actor.ID) {
			return fmt.Errorf("%w: order is assigned to another agent", domain.ErrForbidden)
		}
		return advance(o, domain.OrderStatusProcessing, actor)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order claimed", zap.String("order_id", id), zap.String("agent_id", who.AccountID))
	s.publish(events.OrderDeliveryChanged, updated, who)
	return updated, nil
}

// UpdateDeliveryStatus moves the delivery sub-state. Going out for delivery
// starts processing and a delivered order is completed in the same write.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, projectID, id string, to domain.DeliveryStatus, notes string, who domain.Identity) (*domain.Order, error) {
	actor := lifecycle.ActorFrom(who)
	updated, err := s.orders.Update(ctx, projectID, id, func(o *domain.Order) error {
		if o.Delivery == nil {
			return fmt.Errorf("%w: order has no delivery assignment", domain.ErrInvalidTransition)
		}
		assigned := o.AssignedTo(actor.ID)
		if err := lifecycle.Deliveries.Check(string(o.Delivery.Status), string(to), actor, assigned); err != nil {
			return err
		}
		switch to {
		case domain.DeliveryOutForDelivery:
			if err := advance(o, domain.OrderStatusProcessing, actor); err != nil {
				return err
			}
		case domain.DeliveryDelivered:
			if o.Status != domain.OrderStatusCompleted {
				if err := advance(o, domain.OrderStatusProcessing, actor); err != nil {
					return err
				}
				if err := advance(o, domain.OrderStatusCompleted, actor); err != nil {
					return err
				}
			}
		}
		o.Delivery.Status = to
		if n := strings.TrimSpace(notes); n != "" {
			o.Delivery.Notes = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("delivery status changed", zap.String("order_id", id), zap.String("status", string(to)), zap.String("agent_id", who.AccountID))
	s.publish(events.OrderDeliveryChanged, updated, who)
	return updated, nil
}

// SetContactConsent records whether the customer agreed to be contacted.
func (s *Service) SetContactConsent(ctx context.Context, projectID, id string, consent bool, who domain.Identity) (*domain.Order, error) {
	return s.orders.Update(ctx, projectID, id, func(o *domain.Order) error {
		switch who.Role {
		case domain.RoleModerator, domain.RoleAdmin:
		case domain.RoleCustomer:
			if !o.OwnedBy(who.AccountID) {
				return domain.ErrNotFound
			}
		default:
			return fmt.Errorf("%w: consent is set by the customer or an operator", domain.ErrForbidden)
		}
		o.ContactConsent = consent
		return nil
	})
}

// advance moves o to target unless it is already there. The order is checked
// as if the actor holds the delivery assignment it was just given.
func advance(o *domain.Order, target domain.OrderStatus, actor lifecycle.Actor) error {
	if o.Status == target {
		return nil
	}
	if err := lifecycle.Orders.Check(string(o.Status), string(target), actor, o.AssignedTo(actor.ID)); err != nil {
		return err
	}
	o.Status = target
	return nil
}

func (s *Service) publish(typ string, o *domain.Order, who domain.Identity) {
	if s.publisher == nil || o == nil {
		return
	}
	s.publisher.Publish(events.Event{
		Type:      typ,
		ProjectID: o.ProjectID,
		ID:        o.ID,
		Status:    string(o.Status),
		Actor:     who.AccountID,
		Data:      o,
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
