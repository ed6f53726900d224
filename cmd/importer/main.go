package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"storefront-orders/internal/config"
	"storefront-orders/internal/db"
	"storefront-orders/internal/importer"
	"storefront-orders/internal/logging"
	"storefront-orders/internal/repository/product"
	"storefront-orders/internal/repository/project"
)

func main() {
	var (
		filePath   string
		projectKey string
	)
	flag.StringVar(&filePath, "file", "", "Path to catalog CSV")
	flag.StringVar(&projectKey, "project", "", "Project key to import into")
	flag.Parse()

	if filePath == "" || projectKey == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.Named("importer")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	proj, err := project.NewPostgres(pool).Ensure(ctx, projectKey, projectKey)
	if err != nil {
		logger.Fatal("ensure project", zap.String("project", projectKey), zap.Error(err))
	}

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, product.NewPostgres(pool, logger), proj.ID, logger)

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}

	logger.Info("import finished", zap.Int("products", count), zap.String("project", projectKey),
		zap.Duration("took", time.Since(start).Truncate(time.Millisecond)))
}
