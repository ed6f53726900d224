package order

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/events"
	orderrepo "storefront-orders/internal/repository/order"
	"storefront-orders/internal/service/cart"
)

type stubOrders struct {
	orders  map[string]domain.Order
	created int
}

func newStubOrders() *stubOrders {
	return &stubOrders{orders: map[string]domain.Order{}}
}

func (s *stubOrders) Create(_ context.Context, o domain.Order) (*domain.Order, error) {
	for _, existing := range s.orders {
		if o.IdempotencyKey != "" && existing.IdempotencyScope == o.IdempotencyScope && existing.IdempotencyKey == o.IdempotencyKey {
			return nil, domain.ErrAlreadyExists
		}
	}
	s.created++
	s.orders[o.ID] = o
	return &o, nil
}

func (s *stubOrders) GetByID(_ context.Context, _, id string) (*domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (s *stubOrders) GetByIdempotencyKey(_ context.Context, _, scope, key string) (*domain.Order, error) {
	for _, o := range s.orders {
		if o.IdempotencyScope == scope && o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubOrders) List(_ context.Context, _ string, f domain.OrderFilter) ([]domain.Order, int, error) {
	var out []domain.Order
	for _, o := range s.orders {
		if f.AgentID != "" && !o.AssignedTo(f.AgentID) {
			continue
		}
		if f.CustomerID != "" && !o.OwnedBy(f.CustomerID) {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (s *stubOrders) Update(_ context.Context, _, id string, fn orderrepo.MutateFunc) (*domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Delivery != nil {
		d := *o.Delivery
		o.Delivery = &d
	}
	if err := fn(&o); err != nil {
		return nil, err
	}
	s.orders[id] = o
	return &o, nil
}

type stubProducts map[string]domain.Product

func (s stubProducts) GetByID(_ context.Context, _, id string) (*domain.Product, error) {
	p, ok := s[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

type stubCustomers map[string]domain.Customer

func (s stubCustomers) GetByID(_ context.Context, _, id string) (*domain.Customer, error) {
	c, ok := s[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

type stubCarts struct {
	cart     *domain.Cart
	clears   int
	clearErr error
}

func (s *stubCarts) Get(context.Context, cart.Owner) (*domain.Cart, error) {
	if s.cart == nil {
		return &domain.Cart{}, nil
	}
	return s.cart, nil
}

func (s *stubCarts) Clear(context.Context, cart.Owner) error {
	s.clears++
	if s.clearErr != nil {
		return s.clearErr
	}
	s.cart = &domain.Cart{}
	return nil
}

type recordingPublisher struct {
	events []events.Event
}

func (r *recordingPublisher) Publish(ev events.Event) {
	r.events = append(r.events, ev)
}

type fixture struct {
	svc       *Service
	orders    *stubOrders
	carts     *stubCarts
	publisher *recordingPublisher
}

func newFixture() *fixture {
	products := stubProducts{
		"P100": {ID: "P100", SKU: "P-100", Name: "Hundred", ListPriceCents: 100, DiscountPercent: 20, Stock: 10, Currency: "USD"},
		"P50":  {ID: "P50", SKU: "P-50", Name: "Fifty", ListPriceCents: 50, Stock: 2, Currency: "USD"},
		"EUR":  {ID: "EUR", SKU: "E-1", Name: "Euro", ListPriceCents: 70, Stock: 5, Currency: "EUR"},
	}
	customers := stubCustomers{
		"cust-1": {ID: "cust-1", Email: "ana@example.com", FirstName: "Ana", LastName: "K", Phone: "+355 69 123 4567"},
	}
	f := &fixture{orders: newStubOrders(), carts: &stubCarts{}, publisher: &recordingPublisher{}}
	f.svc = New(f.orders, products, customers, f.carts, f.publisher, nil)
	seq := 0
	f.svc.newID = func() string {
		seq++
		return fmt.Sprintf("01HZX3V9ZQ8K4M7N2P5R6S8T%02d", seq)
	}
	return f
}

func guestDelivery() DeliveryInput {
	return DeliveryInput{Name: "Guest", Phone: "+355 69 000 0000", City: "Durres", Address: "Rr. Tregtare 4"}
}

func TestCheckout_ServerComputesTotal(t *testing.T) {
	f := newFixture()
	clientTotal := int64(1)

	o, err := f.svc.Checkout(context.Background(), CheckoutInput{
		Identity:         domain.Guest(),
		Owner:            cart.Owner{ProjectID: "proj"},
		Lines:            []LineInput{{ProductID: "P100", Quantity: 3}},
		Delivery:         guestDelivery(),
		ClientTotalCents: &clientTotal,
	})
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, int64(80), o.Lines[0].UnitPriceCents)
	assert.Equal(t, int64(240), o.Lines[0].LineTotalCents)
	assert.Equal(t, int64(240), o.TotalCents)
	assert.Equal(t, domain.OrderStatusNew, o.Status)
	assert.Equal(t, domain.PaymentCash, o.PaymentMethod)
	assert.Nil(t, o.CustomerID)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.OrderCreated, f.publisher.events[0].Type)
}

func TestCheckout_EmptyLinesPersistNothing(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Checkout(context.Background(), CheckoutInput{
		Identity: domain.Guest(),
		Owner:    cart.Owner{ProjectID: "proj"},
		Delivery: guestDelivery(),
	})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "lines", vErr.Field)
	assert.Equal(t, 0, f.orders.created)
	assert.Equal(t, 0, f.carts.clears)
}

func TestCheckout_ValidationMessages(t *testing.T) {
	cases := []struct {
		name  string
		in    CheckoutInput
		field string
	}{
		{
			name:  "guest without phone",
			in:    CheckoutInput{Identity: domain.Guest(), Delivery: DeliveryInput{Name: "G", City: "C", Address: "A"}},
			field: "phone",
		},
		{
			name:  "guest with short phone",
			in:    CheckoutInput{Identity: domain.Guest(), Delivery: DeliveryInput{Name: "G", Phone: "12-34", City: "C", Address: "A"}},
			field: "phone",
		},
		{
			name:  "guest phone in non-ASCII digits",
			in:    CheckoutInput{Identity: domain.Guest(), Delivery: DeliveryInput{Name: "G", Phone: "٠٦٩١٢٣٤٥٦٧", City: "C", Address: "A"}},
			field: "phone",
		},
		{
			name:  "guest without address",
			in:    CheckoutInput{Identity: domain.Guest(), Delivery: DeliveryInput{Name: "G", Phone: "0691234567", City: "C", Address: "  "}},
			field: "address",
		},
		{
			name:  "customer without city",
			in:    CheckoutInput{Identity: domain.Identity{AccountID: "cust-1", Role: domain.RoleCustomer}, Delivery: DeliveryInput{Address: "A"}},
			field: "city",
		},
		{
			name:  "unknown payment",
			in:    CheckoutInput{Identity: domain.Guest(), Delivery: guestDelivery(), PaymentMethod: "bitcoin"},
			field: "paymentMethod",
		},
		{
			name:  "card without number",
			in:    CheckoutInput{Identity: domain.Guest(), Delivery: guestDelivery(), PaymentMethod: "card", Card: &CardInput{Holder: "G", Expiry: "12/29"}},
			field: "card.number",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			tc.in.Owner = cart.Owner{ProjectID: "proj"}
			tc.in.Lines = []LineInput{{ProductID: "P100", Quantity: 1}}
			_, err := f.svc.Checkout(context.Background(), tc.in)
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
			assert.Equal(t, 0, f.orders.created)
		})
	}
}

func TestCheckout_StockAndMissingProduct(t *testing.T) {
	f := newFixture()
	base := CheckoutInput{Identity: domain.Guest(), Owner: cart.Owner{ProjectID: "proj"}, Delivery: guestDelivery()}

	in := base
	in.Lines = []LineInput{{ProductID: "P50", Quantity: 2}, {ProductID: "P50", Quantity: 1}}
	_, err := f.svc.Checkout(context.Background(), in)
	var stockErr *domain.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
	assert.Contains(t, err.Error(), "Fifty")

	in = base
	in.Lines = []LineInput{{ProductID: "P100", Quantity: 1}, {ProductID: "gone", Quantity: 1}}
	_, err = f.svc.Checkout(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	in = base
	in.Lines = []LineInput{{ProductID: "P100", Quantity: 1}, {ProductID: "EUR", Quantity: 1}}
	_, err = f.svc.Checkout(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, f.orders.created)
}

func TestCheckout_CustomerCartIsClearedAndContactFilled(t *testing.T) {
	f := newFixture()
	f.carts.cart = &domain.Cart{Lines: []domain.CartLine{{ProductID: "P50", Quantity: 2}}}

	o, err := f.svc.Checkout(context.Background(), CheckoutInput{
		Identity:      domain.Identity{AccountID: "cust-1", Role: domain.RoleCustomer},
		Owner:         cart.Owner{ProjectID: "proj", CustomerID: "cust-1"},
		PaymentMethod: "COD",
		Delivery:      DeliveryInput{City: "Tirana", Address: "Rr. Kavajes 10"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusNew, o.Status)
	assert.Equal(t, int64(100), o.TotalCents)
	assert.Equal(t, "Ana K", o.Contact.Name)
	assert.Equal(t, domain.SourceCart, o.Source)
	require.NotNil(t, o.CustomerID)
	assert.Equal(t, "cust-1", *o.CustomerID)
	assert.Equal(t, 1, f.carts.clears)
	assert.True(t, f.carts.cart.Empty())
}

func TestCheckout_ClearFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture()
	f.carts.cart = &domain.Cart{Lines: []domain.CartLine{{ProductID: "P100", Quantity: 1}}}
	f.carts.clearErr = errors.New("cookie jar full")

	o, err := f.svc.Checkout(context.Background(), CheckoutInput{
		Identity: domain.Guest(),
		Owner:    cart.Owner{ProjectID: "proj"},
		Delivery: guestDelivery(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 1, f.orders.created)
}

func TestCheckout_BuyNowLeavesCartAlone(t *testing.T) {
	f := newFixture()
	f.carts.cart = &domain.Cart{Lines: []domain.CartLine{{ProductID: "P50", Quantity: 1}}}

	o, err := f.svc.Checkout(context.Background(), CheckoutInput{
		Identity:      domain.Guest(),
		Owner:         cart.Owner{ProjectID: "proj"},
		ProductID:     "P100",
		PaymentMethod: "card",
		Card:          &CardInput{Holder: "G", Number: "4242 4242 4242 4242", Expiry: "12/29"},
		Delivery:      guestDelivery(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceBuyNow, o.Source)
	assert.Equal(t, 1, o.Lines[0].Quantity)
	require.NotNil(t, o.Card)
	assert.Equal(t, "4242", o.Card.Last4)
	assert.Equal(t, 0, f.carts.clears)
}

func TestCheckout_IdempotencyKeyReplays(t *testing.T) {
	f := newFixture()
	in := CheckoutInput{
		Identity:       domain.Guest(),
		Owner:          cart.Owner{ProjectID: "proj"},
		Lines:          []LineInput{{ProductID: "P100", Quantity: 1}},
		Delivery:       guestDelivery(),
		IdempotencyKey: "retry-1",
	}
	first, err := f.svc.Checkout(context.Background(), in)
	require.NoError(t, err)
	second, err := f.svc.Checkout(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.orders.created)
}

func TestCheckout_IdempotencyKeyIsScopedToCaller(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	guestOrder, err := f.svc.Checkout(ctx, CheckoutInput{
		Identity:       domain.Guest(),
		Owner:          cart.Owner{ProjectID: "proj"},
		Lines:          []LineInput{{ProductID: "P100", Quantity: 1}},
		Delivery:       guestDelivery(),
		IdempotencyKey: "1",
	})
	require.NoError(t, err)

	customerIn := CheckoutInput{
		Identity:       domain.Identity{AccountID: "cust-1", Role: domain.RoleCustomer},
		Owner:          cart.Owner{ProjectID: "proj", CustomerID: "cust-1"},
		Lines:          []LineInput{{ProductID: "P50", Quantity: 2}},
		Delivery:       DeliveryInput{City: "Tirana", Address: "Rr. Kavajes 10"},
		IdempotencyKey: "1",
	}
	mine, err := f.svc.Checkout(ctx, customerIn)
	require.NoError(t, err)
	assert.NotEqual(t, guestOrder.ID, mine.ID)
	assert.Equal(t, "Tirana", mine.Contact.City)
	require.Len(t, mine.Lines, 1)
	assert.Equal(t, "P50", mine.Lines[0].ProductID)
	assert.Equal(t, 2, f.orders.created)

	again, err := f.svc.Checkout(ctx, customerIn)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, again.ID)

	otherGuest := guestDelivery()
	otherGuest.Phone = "+355 68 111 2222"
	theirs, err := f.svc.Checkout(ctx, CheckoutInput{
		Identity:       domain.Guest(),
		Owner:          cart.Owner{ProjectID: "proj"},
		Lines:          []LineInput{{ProductID: "P100", Quantity: 1}},
		Delivery:       otherGuest,
		IdempotencyKey: "1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, guestOrder.ID, theirs.ID)
	assert.Equal(t, 3, f.orders.created)
}

func TestCheckout_IdempotencyKeyWithDifferentRequestIsRefused(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := CheckoutInput{
		Identity:       domain.Identity{AccountID: "cust-1", Role: domain.RoleCustomer},
		Owner:          cart.Owner{ProjectID: "proj", CustomerID: "cust-1"},
		Lines:          []LineInput{{ProductID: "P100", Quantity: 1}},
		Delivery:       DeliveryInput{City: "Tirana", Address: "Rr. Kavajes 10"},
		IdempotencyKey: "k-7",
	}
	_, err := f.svc.Checkout(ctx, in)
	require.NoError(t, err)

	in.Lines = []LineInput{{ProductID: "P100", Quantity: 3}}
	_, err = f.svc.Checkout(ctx, in)
	assert.ErrorIs(t, err, domain.ErrIdempotencyMismatch)
	assert.Equal(t, 1, f.orders.created)
}

func placed(t *testing.T, f *fixture) *domain.Order {
	t.Helper()
	o, err := f.svc.Checkout(context.Background(), CheckoutInput{
		Identity: domain.Guest(),
		Owner:    cart.Owner{ProjectID: "proj"},
		Lines:    []LineInput{{ProductID: "P100", Quantity: 1}},
		Delivery: guestDelivery(),
	})
	require.NoError(t, err)
	return o
}

var (
	moderator = domain.Identity{AccountID: "mod-1", Role: domain.RoleModerator}
	agent     = domain.Identity{AccountID: "agent-1", Role: domain.RoleDelivery}
	rival     = domain.Identity{AccountID: "agent-2", Role: domain.RoleDelivery}
)

func TestTransition_CompletedIsTerminal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := placed(t, f)

	_, err := f.svc.Transition(ctx, "proj", o.ID, domain.OrderStatusProcessing, moderator)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, "proj", o.ID, domain.OrderStatusCompleted, moderator)
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, "proj", o.ID, domain.OrderStatusProcessing, moderator)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := f.svc.Get(ctx, "proj", o.ID, moderator)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, stored.Status)
}

func TestTransition_RoleRefusal(t *testing.T) {
	f := newFixture()
	o := placed(t, f)

	_, err := f.svc.Transition(context.Background(), "proj", o.ID, domain.OrderStatusCancelled, agent)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	customer := domain.Identity{AccountID: "cust-1", Role: domain.RoleCustomer}
	_, err = f.svc.Transition(context.Background(), "proj", o.ID, domain.OrderStatusContacted, customer)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDelivery_AssignClaimAndDeliver(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := placed(t, f)

	_, err := f.svc.AssignDelivery(ctx, "proj", o.ID, "agent-1", "call first", agent)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assigned, err := f.svc.AssignDelivery(ctx, "proj", o.ID, "agent-1", "call first", moderator)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryAssigned, assigned.Delivery.Status)

	_, err = f.svc.Claim(ctx, "proj", o.ID, rival)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.UpdateDeliveryStatus(ctx, "proj", o.ID, domain.DeliveryDelivered, "", agent)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	out, err := f.svc.UpdateDeliveryStatus(ctx, "proj", o.ID, domain.DeliveryOutForDelivery, "", agent)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, out.Status)

	_, err = f.svc.UpdateDeliveryStatus(ctx, "proj", o.ID, domain.DeliveryFailed, "", rival)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	done, err := f.svc.UpdateDeliveryStatus(ctx, "proj", o.ID, domain.DeliveryDelivered, "left at door", agent)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, done.Status)
	assert.Equal(t, domain.DeliveryDelivered, done.Delivery.Status)
	assert.Equal(t, "left at door", done.Delivery.Notes)
}

func TestClaim_RequiresOperatorAssignment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := placed(t, f)

	_, err := f.svc.Claim(ctx, "proj", o.ID, agent)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	stored, err := f.svc.Get(ctx, "proj", o.ID, moderator)
	require.NoError(t, err)
	assert.Nil(t, stored.Delivery)
	assert.Equal(t, domain.OrderStatusNew, stored.Status)

	_, err = f.svc.AssignDelivery(ctx, "proj", o.ID, "agent-1", "", moderator)
	require.NoError(t, err)

	_, err = f.svc.Claim(ctx, "proj", o.ID, rival)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	claimed, err := f.svc.Claim(ctx, "proj", o.ID, agent)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, claimed.Status)
	assert.True(t, claimed.AssignedTo("agent-1"))

	again, err := f.svc.Claim(ctx, "proj", o.ID, agent)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, again.Status)

	_, err = f.svc.Claim(ctx, "proj", o.ID, moderator)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestVisibilityAndConsent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := placed(t, f)

	_, err := f.svc.Get(ctx, "proj", o.ID, domain.Guest())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.svc.Get(ctx, "proj", o.ID, domain.Identity{AccountID: "cust-9", Role: domain.RoleCustomer})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Get(ctx, "proj", o.ID, agent)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	list, _, err := f.svc.List(ctx, "proj", domain.OrderFilter{}, agent)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, _, err = f.svc.List(ctx, "proj", domain.OrderFilter{Status: "lost"}, moderator)
	assert.ErrorIs(t, err, domain.ErrValidation)

	updated, err := f.svc.SetContactConsent(ctx, "proj", o.ID, true, moderator)
	require.NoError(t, err)
	assert.True(t, updated.ContactConsent)
	_, err = f.svc.SetContactConsent(ctx, "proj", o.ID, false, agent)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
