package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-orders/internal/domain"
	cartrepo "storefront-orders/internal/repository/cart"
	"storefront-orders/internal/service/cart"
	customersvc "storefront-orders/internal/service/customer"
	"storefront-orders/internal/service/delivery"
	ordersvc "storefront-orders/internal/service/order"
	productsvc "storefront-orders/internal/service/product"
	"storefront-orders/internal/staffauth"
)

const testProjectKey = "demo"

var testProject = &domain.Project{ID: "proj-1", Key: testProjectKey, Name: "Demo"}

type catalogStub struct {
	products map[string]domain.Product
}

func (s *catalogStub) GetByID(_ context.Context, _, id string) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func newCatalog() *catalogStub {
	return &catalogStub{products: map[string]domain.Product{
		"P1": {ID: "P1", Name: "Mug", SKU: "MUG", ListPriceCents: 1000, DiscountPercent: 10, Currency: "EUR", Stock: 5},
		"P2": {ID: "P2", Name: "Cap", SKU: "CAP", ListPriceCents: 500, Currency: "EUR", Stock: 5},
	}}
}

type memCartRepo struct {
	mu     sync.Mutex
	lines  map[string]cartrepo.MergeLine
	merged map[cartrepo.GuestRef]bool
}

func (m *memCartRepo) Get(_ context.Context, projectID, customerID string) (*cartrepo.StoredCart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &cartrepo.StoredCart{ProjectID: projectID, CustomerID: customerID}
	ids := make([]string, 0, len(m.lines))
	for id := range m.lines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		l := m.lines[id]
		out.Lines = append(out.Lines, cartrepo.StoredLine{ProductID: id, Quantity: l.Quantity, Snapshot: l.Snapshot})
	}
	return out, nil
}

func (m *memCartRepo) AddLine(_ context.Context, _, _ string, line cartrepo.MergeLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	line.Quantity += m.lines[line.ProductID].Quantity
	m.lines[line.ProductID] = line
	return nil
}

func (m *memCartRepo) SetLineQuantity(_ context.Context, _, _, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[productID]
	if !ok {
		return domain.ErrNotFound
	}
	l.Quantity = quantity
	m.lines[productID] = l
	return nil
}

func (m *memCartRepo) RemoveLine(_ context.Context, _, _, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, productID)
	return nil
}

func (m *memCartRepo) Clear(context.Context, string, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = map[string]cartrepo.MergeLine{}
	return nil
}

func (m *memCartRepo) Merge(ctx context.Context, projectID, customerID string, guest cartrepo.GuestRef, lines []cartrepo.MergeLine) (bool, error) {
	m.mu.Lock()
	if m.merged[guest] {
		m.mu.Unlock()
		return false, nil
	}
	m.merged[guest] = true
	m.mu.Unlock()
	for _, l := range lines {
		if err := m.AddLine(ctx, projectID, customerID, l); err != nil {
			return false, err
		}
	}
	return true, nil
}

type stubCustomers struct {
	customer *domain.Customer
	revoked  []string
}

func (s *stubCustomers) Signup(_ context.Context, _ string, in customersvc.SignupInput) (*domain.Customer, customersvc.Session, error) {
	if in.Email == "" {
		return nil, customersvc.Session{}, domain.Invalid("email", "is required")
	}
	return s.customer, customersvc.Session{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresIn: 3600}, nil
}

func (s *stubCustomers) Login(_ context.Context, _, email, password string) (*domain.Customer, customersvc.Session, error) {
	if password != "secret-pass" {
		return nil, customersvc.Session{}, customersvc.ErrInvalidCredentials
	}
	return s.customer, customersvc.Session{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresIn: 3600}, nil
}

func (s *stubCustomers) LookupByToken(_ context.Context, _, token string) (*domain.Customer, error) {
	if token != "access-1" {
		return nil, customersvc.ErrInvalidToken
	}
	return s.customer, nil
}

func (s *stubCustomers) Refresh(_ context.Context, _, refreshToken string) (*domain.Customer, customersvc.Session, error) {
	if refreshToken != "refresh-1" {
		return nil, customersvc.Session{}, customersvc.ErrInvalidToken
	}
	return s.customer, customersvc.Session{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 3600}, nil
}

func (s *stubCustomers) Logout(_ context.Context, _ string, tokens ...string) error {
	s.revoked = append(s.revoked, tokens...)
	return nil
}

func (s *stubCustomers) UpdateContact(_ context.Context, _, customerID string, in customersvc.ContactInput) (*domain.Customer, error) {
	c := *s.customer
	if in.City != nil {
		c.City = *in.City
	}
	return &c, nil
}

type stubOrders struct {
	mu       sync.Mutex
	order    *domain.Order
	err      error
	checkout ordersvc.CheckoutInput
	lastWho  domain.Identity
	filter   domain.OrderFilter
}

func (s *stubOrders) Checkout(_ context.Context, in ordersvc.CheckoutInput) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkout = in
	return s.order, s.err
}

func (s *stubOrders) Get(_ context.Context, _, id string, who domain.Identity) (*domain.Order, error) {
	s.lastWho = who
	if s.err != nil {
		return nil, s.err
	}
	if s.order == nil || s.order.ID != id {
		return nil, domain.ErrNotFound
	}
	return s.order, nil
}

func (s *stubOrders) List(_ context.Context, _ string, filter domain.OrderFilter, who domain.Identity) ([]domain.Order, int, error) {
	s.lastWho, s.filter = who, filter
	if s.err != nil {
		return nil, 0, s.err
	}
	if s.order == nil || filter.Offset > 0 {
		return nil, 1, nil
	}
	return []domain.Order{*s.order}, 1, nil
}

func (s *stubOrders) Transition(_ context.Context, _, _ string, to domain.OrderStatus, who domain.Identity) (*domain.Order, error) {
	s.lastWho = who
	if s.err != nil {
		return nil, s.err
	}
	o := *s.order
	o.Status = to
	return &o, nil
}

func (s *stubOrders) AssignDelivery(_ context.Context, _, _, agentID, notes string, who domain.Identity) (*domain.Order, error) {
	s.lastWho = who
	o := *s.order
	o.Delivery = &domain.DeliveryAssignment{AgentID: agentID, Status: domain.DeliveryAssigned, Notes: notes}
	return &o, s.err
}

func (s *stubOrders) UpdateDeliveryStatus(_ context.Context, _, _ string, to domain.DeliveryStatus, _ string, who domain.Identity) (*domain.Order, error) {
	s.lastWho = who
	if s.err != nil {
		return nil, s.err
	}
	o := *s.order
	o.Delivery = &domain.DeliveryAssignment{AgentID: who.AccountID, Status: to}
	return &o, nil
}

func (s *stubOrders) SetContactConsent(_ context.Context, _, _ string, consent bool, who domain.Identity) (*domain.Order, error) {
	s.lastWho = who
	o := *s.order
	o.ContactConsent = consent
	return &o, s.err
}

type stubDelivery struct {
	res delivery.Resolution
	err error
}

func (s *stubDelivery) Resolve(_ context.Context, _, identifier string, _ domain.Identity) (delivery.Resolution, error) {
	res := s.res
	res.Identifier = identifier
	return res, s.err
}

func (s *stubDelivery) Claim(_ context.Context, _, _ string, _ domain.Identity) (*domain.Order, error) {
	return s.res.Order, s.err
}

type harness struct {
	router    *gin.Engine
	customers *stubCustomers
	cartRepo  *memCartRepo
	orders    *stubOrders
	delivery  *stubDelivery
	staff     *staffauth.Authority
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := newCatalog()
	repo := &memCartRepo{lines: map[string]cartrepo.MergeLine{}, merged: map[cartrepo.GuestRef]bool{}}
	staff, err := staffauth.New("test-secret", time.Hour)
	require.NoError(t, err)
	h := &harness{
		customers: &stubCustomers{customer: &domain.Customer{ID: "cust-1", ProjectID: testProject.ID, Email: "ana@example.com"}},
		cartRepo:  repo,
		orders:    &stubOrders{order: sampleOrder()},
		delivery:  &stubDelivery{},
		staff:     staff,
	}
	router, err := buildRouter(nil, nil, Deps{
		ProjectRepo: &stubProjectRepo{project: testProject},
		CustomerSvc: h.customers,
		StaffAuth:   staff,
		ProductSvc:  productsvc.New(nil),
		CartSvc:     cart.New(repo, catalog, nil),
		OrderSvc:    h.orders,
		DeliverySvc: h.delivery,
		GuestCookie: "guest_cart",
	})
	require.NoError(t, err)
	h.router = router
	return h
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:            "01JBX4Z3Q7M8N9P2P5R6S8T0WX",
		ProjectID:     testProject.ID,
		Contact:       domain.Contact{Name: "Ana", Phone: "+3859111222", City: "Zagreb", Address: "Ilica 1"},
		Lines:         []domain.OrderLine{{ProductID: "P1", Name: "Mug", Quantity: 2, UnitPriceCents: 900, LineTotalCents: 1800}},
		Currency:      "EUR",
		TotalCents:    1800,
		PaymentMethod: domain.PaymentCash,
		Source:        domain.SourceCart,
		Status:        domain.OrderStatusNew,
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (h *harness) do(method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/"+testProjectKey+path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) staffToken(t *testing.T, subject string, role domain.Role) func(*http.Request) {
	t.Helper()
	token, _, err := h.staff.Issue(subject, role, testProjectKey)
	require.NoError(t, err)
	return bearer(token)
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func withCookies(cookies []*http.Cookie, more ...func(*http.Request)) func(*http.Request) {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
		for _, m := range more {
			m(r)
		}
	}
}

func guestCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "guest_cart_"+testProjectKey {
			return c
		}
	}
	t.Fatalf("guest cookie not set")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestGuestCart_PersistsInCookie(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/cart/lines", `{"productId":"P1","quantity":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := guestCookie(t, rec)
	assert.True(t, cookie.HttpOnly)

	rec = h.do(http.MethodGet, "/cart", "", withCookies([]*http.Cookie{cookie}))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[cartResponse](t, rec)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Guest)
	assert.Equal(t, 2, got.Lines[0].Quantity)
	assert.Equal(t, int64(1800), got.TotalCents)
	assert.Empty(t, h.cartRepo.lines, "guest lines never reach the server")
}

func TestGuestCart_ValidationMapsTo400(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/cart/lines", `{"productId":"","quantity":1}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "validation_failed", body.Error)
	assert.Equal(t, "productId", body.Field)
}

func TestLogin_MergesGuestCart(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/cart/lines", `{"productId":"P1","quantity":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := guestCookie(t, rec)
	h.cartRepo.lines["P1"] = cartrepo.MergeLine{ProductID: "P1", Quantity: 1}

	rec = h.do(http.MethodPost, "/me/login", `{"email":"ana@example.com","password":"secret-pass"}`, withCookies([]*http.Cookie{cookie}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[sessionResponse](t, rec)
	assert.Equal(t, "access-1", resp.AccessToken)
	assert.Equal(t, 1, resp.MergedLines)
	assert.False(t, resp.MergePending)
	assert.Equal(t, 3, h.cartRepo.lines["P1"].Quantity)

	cleared := guestCookie(t, rec)
	assert.True(t, cleared.MaxAge < 0 || cleared.Value == "", "guest cookie should be dropped after merge")
}

func TestLogin_ResentGuestCookieIsNotMergedTwice(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/cart/lines", `{"productId":"P1","quantity":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := guestCookie(t, rec)

	// The client never saw the cleared cookie and logs in again with the old one.
	for i := 0; i < 2; i++ {
		rec = h.do(http.MethodPost, "/me/login", `{"email":"ana@example.com","password":"secret-pass"}`, withCookies([]*http.Cookie{cookie}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, 0, decode[sessionResponse](t, rec).MergedLines)

	rec = h.do(http.MethodGet, "/cart", "", withCookies([]*http.Cookie{cookie}, bearer("access-1")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, h.cartRepo.lines["P1"].Quantity)
}

func TestLogin_BadCredentials(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/me/login", `{"email":"ana@example.com","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/me/refresh", `{"refreshToken":"refresh-1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "access-2", decode[sessionResponse](t, rec).AccessToken)

	rec = h.do(http.MethodPost, "/me/refresh", `{"refreshToken":"stale"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/me/logout", `{"refreshToken":"refresh-1"}`, bearer("access-1"))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"access-1", "refresh-1"}, h.customers.revoked)

	rec = h.do(http.MethodPost, "/me/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateMe(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPut, "/me", `{"city":"Rijeka"}`, bearer("access-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"city":"Rijeka"`)

	rec = h.do(http.MethodPut, "/me", `{"city":"Rijeka"}`, h.staffToken(t, "mod-1", domain.RoleModerator))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCustomerCart_LazyMergeOnRead(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/cart/lines", `{"productId":"P2","quantity":1}`, nil)
	cookie := guestCookie(t, rec)

	rec = h.do(http.MethodGet, "/cart", "", withCookies([]*http.Cookie{cookie}, bearer("access-1")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[cartResponse](t, rec)
	assert.False(t, got.MergePending)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "P2", got.Lines[0].ProductID)
	assert.False(t, got.Guest)
}

func TestIdentity_UnknownCustomerTokenIs401(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/cart", "", bearer("not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentity_StaffTokenForOtherProjectIs401(t *testing.T) {
	h := newHarness(t)
	token, _, err := h.staff.Issue("mod-1", domain.RoleModerator, "elsewhere")
	require.NoError(t, err)
	rec := h.do(http.MethodGet, "/orders", "", bearer(token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaffCannotUseCart(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/cart", "", h.staffToken(t, "mod-1", domain.RoleModerator))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCheckout_PassesInputAndReturnsTrackingCode(t *testing.T) {
	h := newHarness(t)

	body := `{"source":"buy_now","productId":"P1","quantity":2,"paymentMethod":"cash",
		"delivery":{"name":"Ana","phone":"+385 91 111 222","city":"Zagreb","address":"Ilica 1"},"totalCents":1}`
	rec := h.do(http.MethodPost, "/checkout", body, func(r *http.Request) {
		r.Header.Set("Idempotency-Key", "key-1")
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[orderResponse](t, rec)
	assert.Equal(t, "P2P5R6S8T0WX", got.TrackingCode)
	in := h.orders.checkout
	assert.Equal(t, "key-1", in.IdempotencyKey)
	assert.Equal(t, domain.SourceBuyNow, in.Source)
	assert.Equal(t, "P1", in.ProductID)
	assert.True(t, in.Owner.IsGuest())
	require.NotNil(t, in.ClientTotalCents)
	assert.Equal(t, int64(1), *in.ClientTotalCents)
}

func TestCheckout_StockErrorIs409(t *testing.T) {
	h := newHarness(t)
	h.orders.err = &domain.StockError{ProductID: "P1", Name: "Mug", Requested: 9, Available: 5}

	rec := h.do(http.MethodPost, "/checkout", `{"productId":"P1","quantity":9}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "out_of_stock", decode[errorBody](t, rec).Error)
}

func TestOrders_StaffListCarriesIdentity(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/orders?status=new&limit=10", "", h.staffToken(t, "mod-1", domain.RoleModerator))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[listResponse[orderResponse]](t, rec)
	assert.Equal(t, 1, got.Total)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, domain.Identity{AccountID: "mod-1", Role: domain.RoleModerator}, h.orders.lastWho)
	assert.Equal(t, domain.OrderStatusNew, h.orders.filter.Status)
}

func TestOrders_BadPaging(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/orders?limit=abc", "", h.staffToken(t, "mod-1", domain.RoleModerator))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMyOrders_ScopesToCustomer(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/me/orders?customerId=someone-else", "", bearer("access-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cust-1", h.orders.filter.CustomerID)

	rec = h.do(http.MethodGet, "/me/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransition_RoleRefusalIs403(t *testing.T) {
	h := newHarness(t)
	h.orders.err = fmt.Errorf("%w: %w: role delivery may not move order", domain.ErrInvalidTransition, domain.ErrForbidden)

	rec := h.do(http.MethodPost, "/orders/"+sampleOrder().ID+"/transitions", `{"status":"cancelled"}`, h.staffToken(t, "agent-1", domain.RoleDelivery))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	h.orders.err = fmt.Errorf("%w: order is completed and cannot change", domain.ErrInvalidTransition)
	rec = h.do(http.MethodPost, "/orders/"+sampleOrder().ID+"/transitions", `{"status":"cancelled"}`, h.staffToken(t, "mod-1", domain.RoleModerator))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeliveryStatus_UsesCallerAsAgent(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/orders/"+sampleOrder().ID+"/delivery-status", `{"status":"out_for_delivery"}`, h.staffToken(t, "agent-1", domain.RoleDelivery))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[orderResponse](t, rec)
	require.NotNil(t, got.Delivery)
	assert.Equal(t, domain.DeliveryOutForDelivery, got.Delivery.Status)
	assert.Equal(t, "agent-1", got.Delivery.AgentID)
}

func TestDeliveryResolve_AmbiguousIsNotAnError(t *testing.T) {
	h := newHarness(t)
	h.delivery.res = delivery.Resolution{Outcome: delivery.Ambiguous, Matches: 2}

	rec := h.do(http.MethodGet, "/delivery/resolve/6S8T0W", "", h.staffToken(t, "agent-1", domain.RoleDelivery))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[resolutionResponse](t, rec)
	assert.Equal(t, delivery.Ambiguous, got.Outcome)
	assert.Equal(t, "6S8T0W", got.Identifier)
	assert.Nil(t, got.Order)

	o := sampleOrder()
	h.delivery.res = delivery.Resolution{Outcome: delivery.Found, Matches: 1, Order: o}
	rec = h.do(http.MethodPost, "/delivery/resolve", `{"identifier":"P2P5R6S8T0WX"}`, h.staffToken(t, "agent-1", domain.RoleDelivery))
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[resolutionResponse](t, rec)
	require.NotNil(t, got.Order)
	assert.Equal(t, o.ID, got.Order.ID)
	assert.Equal(t, "P2P5R6S8T0WX", got.Order.TrackingCode)
}

func TestDeliveryResolve_ForbiddenAndValidation(t *testing.T) {
	h := newHarness(t)

	h.delivery.err = domain.ErrForbidden
	rec := h.do(http.MethodPost, "/delivery/resolve", `{"identifier":"P2P5R6S8T0WX"}`, bearer("access-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	h.delivery.err = domain.Invalid("identifier", "too short")
	rec = h.do(http.MethodPost, "/delivery/resolve", `{"identifier":"AB"}`, h.staffToken(t, "agent-1", domain.RoleDelivery))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderQR_ReturnsPNG(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/orders/"+sampleOrder().ID+"/qr.png?size=128", "", h.staffToken(t, "mod-1", domain.RoleModerator))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = h.do(http.MethodGet, "/orders/"+sampleOrder().ID+"/qr.png?size=5", "", h.staffToken(t, "mod-1", domain.RoleModerator))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportOrders(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/orders/export.xlsx", "", h.staffToken(t, "admin-1", domain.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment; filename=orders-demo-"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	rec = h.do(http.MethodGet, "/orders/export.xlsx", "", h.staffToken(t, "agent-1", domain.RoleDelivery))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodGet, "/orders/export.xlsx", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.Invalid("phone", "bad"), http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: %w", domain.ErrInvalidTransition, domain.ErrForbidden), http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{&domain.StockError{ProductID: "P1"}, http.StatusConflict},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrAmbiguousIdentifier, http.StatusConflict},
		{domain.ErrMergeConflict, http.StatusConflict},
		{fmt.Errorf("%w: key \"1\"", domain.ErrIdempotencyMismatch), http.StatusConflict},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := statusFor(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}
