package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"storefront-orders/internal/config"
	"storefront-orders/internal/db"
	"storefront-orders/internal/logging"
	custrepo "storefront-orders/internal/repository/customer"
	"storefront-orders/internal/repository/product"
	"storefront-orders/internal/repository/project"
	tokenrepo "storefront-orders/internal/repository/token"
	"storefront-orders/internal/seed"
	customersvc "storefront-orders/internal/service/customer"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.Named("seed")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	customers := customersvc.New(custrepo.NewPostgres(pool, logger), tokenrepo.NewPostgres(pool), logger)
	proj, err := seed.Apply(ctx, project.NewPostgres(pool), product.NewPostgres(pool, logger), customers, logger)
	if err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}

	logger.Info("seed applied", zap.String("project", proj.Key), zap.String("customer", seed.DemoCustomerEmail))
}
