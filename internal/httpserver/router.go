package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/events"
	"storefront-orders/internal/logging"
	"storefront-orders/internal/service/cart"
	customersvc "storefront-orders/internal/service/customer"
	"storefront-orders/internal/service/delivery"
	ordersvc "storefront-orders/internal/service/order"
	productsvc "storefront-orders/internal/service/product"
	requestsvc "storefront-orders/internal/service/request"
)

type projectRepo interface {
	GetByKey(ctx context.Context, key string) (*domain.Project, error)
}

type customerService interface {
	Signup(ctx context.Context, projectID string, in customersvc.SignupInput) (*domain.Customer, customersvc.Session, error)
	Login(ctx context.Context, projectID, email, password string) (*domain.Customer, customersvc.Session, error)
	LookupByToken(ctx context.Context, projectID, token string) (*domain.Customer, error)
	Refresh(ctx context.Context, projectID, refreshToken string) (*domain.Customer, customersvc.Session, error)
	Logout(ctx context.Context, projectID string, tokens ...string) error
	UpdateContact(ctx context.Context, projectID, customerID string, in customersvc.ContactInput) (*domain.Customer, error)
}

type staffVerifier interface {
	Verify(raw, projectKey string) (domain.Identity, error)
}

type productService interface {
	List(ctx context.Context, projectID string) ([]productsvc.View, error)
	Get(ctx context.Context, projectID, id string) (*productsvc.View, error)
}

type cartService interface {
	Get(ctx context.Context, owner cart.Owner) (*domain.Cart, error)
	AddLine(ctx context.Context, owner cart.Owner, productID string, quantity int) (*domain.Cart, error)
	SetLineQuantity(ctx context.Context, owner cart.Owner, productID string, quantity int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, owner cart.Owner, productID string) (*domain.Cart, error)
	Clear(ctx context.Context, owner cart.Owner) error
	Merge(ctx context.Context, owner cart.Owner) (int, error)
	HasGuestLines(ctx context.Context, local cart.LocalStorage) bool
}

type orderService interface {
	Checkout(ctx context.Context, in ordersvc.CheckoutInput) (*domain.Order, error)
	Get(ctx context.Context, projectID, id string, who domain.Identity) (*domain.Order, error)
	List(ctx context.Context, projectID string, filter domain.OrderFilter, who domain.Identity) ([]domain.Order, int, error)
	Transition(ctx context.Context, projectID, id string, to domain.OrderStatus, who domain.Identity) (*domain.Order, error)
	AssignDelivery(ctx context.Context, projectID, id, agentID, notes string, who domain.Identity) (*domain.Order, error)
	UpdateDeliveryStatus(ctx context.Context, projectID, id string, to domain.DeliveryStatus, notes string, who domain.Identity) (*domain.Order, error)
	SetContactConsent(ctx context.Context, projectID, id string, consent bool, who domain.Identity) (*domain.Order, error)
}

type requestService interface {
	CreateOrderRequest(ctx context.Context, projectID string, who domain.Identity, in requestsvc.OrderRequestInput) (*domain.Request, error)
	CreateInquiry(ctx context.Context, projectID string, who domain.Identity, in requestsvc.InquiryInput) (*domain.Request, error)
	Get(ctx context.Context, projectID, id string, who domain.Identity) (*domain.Request, error)
	List(ctx context.Context, projectID string, filter domain.RequestFilter, who domain.Identity) ([]domain.Request, int, error)
	Transition(ctx context.Context, projectID, id string, to domain.RequestStatus, who domain.Identity) (*domain.Request, error)
	AssignDelivery(ctx context.Context, projectID, id, agentID, notes string, who domain.Identity) (*domain.Request, error)
}

type deliveryService interface {
	Resolve(ctx context.Context, projectID, identifier string, who domain.Identity) (delivery.Resolution, error)
	Claim(ctx context.Context, projectID, identifier string, who domain.Identity) (*domain.Order, error)
}

type eventSource interface {
	Subscribe(projectID string, buffer int) (<-chan events.Event, func())
}

// Deps are the collaborators the router dispatches to.
type Deps struct {
	ProjectRepo  projectRepo
	CustomerSvc  customerService
	StaffAuth    staffVerifier
	ProductSvc   productService
	CartSvc      cartService
	OrderSvc     orderService
	RequestSvc   requestService
	DeliverySvc  deliveryService
	Events       eventSource
	CORSOrigins  []string
	GuestCookie  string
	CookieSecure bool
}

type handlers struct {
	Deps
	logger *zap.Logger
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.ProjectRepo == nil {
		return nil, errors.New("project repository is required")
	}
	if deps.GuestCookie == "" {
		deps.GuestCookie = "guest_cart"
	}
	logger = logging.OrNop(logger)

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
			ExposeHeaders:    []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &handlers{Deps: deps, logger: logger.Named("http")}
	p := router.Group("/:projectKey", projectMiddleware(deps.ProjectRepo), identityMiddleware(deps.CustomerSvc, deps.StaffAuth))

	p.POST("/me/signup", h.signup)
	p.POST("/me/login", h.login)
	p.POST("/me/refresh", h.refresh)
	p.POST("/me/logout", h.logout)
	p.GET("/me", h.me)
	p.PUT("/me", h.updateMe)
	p.GET("/me/orders", h.myOrders)

	p.GET("/products", h.listProducts)
	p.GET("/products/:id", h.getProduct)

	p.GET("/cart", h.getCart)
	p.POST("/cart/lines", h.addCartLine)
	p.PUT("/cart/lines/:productId", h.setCartLine)
	p.DELETE("/cart/lines/:productId", h.removeCartLine)
	p.DELETE("/cart", h.clearCart)

	p.POST("/checkout", h.checkout)

	p.GET("/orders", h.listOrders)
	p.GET("/orders/export.xlsx", h.exportOrders)
	p.GET("/orders/feed", h.orderFeed)
	p.GET("/orders/:id", h.getOrder)
	p.GET("/orders/:id/qr.png", h.orderQR)
	p.POST("/orders/:id/transitions", h.transitionOrder)
	p.PUT("/orders/:id/delivery", h.assignOrderDelivery)
	p.POST("/orders/:id/delivery-status", h.updateDeliveryStatus)
	p.PUT("/orders/:id/consent", h.setOrderConsent)

	p.POST("/order-requests", h.createOrderRequest)
	p.POST("/inquiries", h.createInquiry)
	p.GET("/requests", h.listRequests)
	p.GET("/requests/:id", h.getRequest)
	p.POST("/requests/:id/transitions", h.transitionRequest)
	p.PUT("/requests/:id/delivery", h.assignRequestDelivery)

	p.POST("/delivery/resolve", h.resolveDelivery)
	p.GET("/delivery/resolve/:identifier", h.resolveDelivery)
	p.POST("/delivery/claim", h.claimDelivery)

	return router, nil
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Error("request", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
