package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"storefront-orders/internal/config"
	"storefront-orders/internal/db"
	"storefront-orders/internal/events"
	"storefront-orders/internal/httpserver"
	"storefront-orders/internal/logging"
	cartrepo "storefront-orders/internal/repository/cart"
	customerrepo "storefront-orders/internal/repository/customer"
	orderrepo "storefront-orders/internal/repository/order"
	productrepo "storefront-orders/internal/repository/product"
	projectrepo "storefront-orders/internal/repository/project"
	requestrepo "storefront-orders/internal/repository/request"
	tokenrepo "storefront-orders/internal/repository/token"
	cartsvc "storefront-orders/internal/service/cart"
	customersvc "storefront-orders/internal/service/customer"
	deliverysvc "storefront-orders/internal/service/delivery"
	ordersvc "storefront-orders/internal/service/order"
	productsvc "storefront-orders/internal/service/product"
	requestsvc "storefront-orders/internal/service/request"
	"storefront-orders/internal/staffauth"
)

const tokenSweepInterval = time.Hour

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.Named("api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	staff, err := staffauth.New(cfg.StaffJWTSecret, cfg.StaffTokenTTL)
	if err != nil {
		logger.Fatal("init staff auth", zap.Error(err))
	}

	hub := events.NewHub(logger)

	projectRepo := projectrepo.NewPostgres(dbpool)
	productRepo := productrepo.NewPostgres(dbpool, logger)
	customerRepo := customerrepo.NewPostgres(dbpool, logger)
	tokenRepo := tokenrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	requestRepo := requestrepo.NewPostgres(dbpool, logger)

	cartService := cartsvc.New(cartrepo.NewPostgres(dbpool), productRepo, logger)
	customerService := customersvc.New(customerRepo, tokenRepo, logger)
	orderService := ordersvc.New(orderRepo, productRepo, customerRepo, cartService, hub, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		ProjectRepo:  projectRepo,
		CustomerSvc:  customerService,
		StaffAuth:    staff,
		ProductSvc:   productsvc.New(productRepo),
		CartSvc:      cartService,
		OrderSvc:     orderService,
		RequestSvc:   requestsvc.New(requestRepo, productRepo, hub, logger),
		DeliverySvc:  deliverysvc.New(orderRepo, orderService, logger),
		Events:       hub,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		GuestCookie:  cfg.GuestCartCookie,
		CookieSecure: cfg.CookieSecure,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	go sweepTokens(ctx, tokenRepo, logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

// sweepTokens drops expired customer tokens until ctx is cancelled.
func sweepTokens(ctx context.Context, tokens tokenrepo.Repository, logger *zap.Logger) {
	ticker := time.NewTicker(tokenSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := tokens.DeleteExpired(ctx, now)
			if err != nil {
				logger.Warn("sweep expired tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired tokens removed", zap.Int64("count", n))
			}
		}
	}
}
